package cart

import (
	"errors"

	"github.com/Skotchmaster/nolmart/internal/models"
)

var (
	ErrInvalidProduct  = models.ErrInvalidProduct
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrStorageCorrupt is logged when the persisted record cannot be decoded. It is never
	// returned to callers; the cart starts empty instead.
	ErrStorageCorrupt = errors.New("cart storage corrupt")
)
