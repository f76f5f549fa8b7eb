package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/nolmart/internal/transport"
)

func TestValidator(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(transport.AddCartItemRequest{ProductID: "p1", Quantity: 2}))
	assert.NoError(t, v.Validate(transport.AddCartItemRequest{ProductID: "p1"}))

	err := v.Validate(transport.AddCartItemRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "ProductID is a required field")

	err = v.Validate(transport.AddCartItemRequest{ProductID: "p1", Quantity: -1})
	assert.ErrorIs(t, err, ErrInvalid)

	err = v.Validate(transport.AddCartItemRequest{ProductID: "p1", Quantity: 10000})
	assert.ErrorIs(t, err, ErrInvalid)

	big := 1 << 40
	assert.ErrorIs(t, v.Validate(transport.UpdateCartItemRequest{Quantity: &big}), ErrInvalid)
	zero := 0
	assert.NoError(t, v.Validate(transport.UpdateCartItemRequest{Quantity: &zero}))

	err = v.Validate(transport.LoginRequest{Username: "admin"})
	assert.ErrorContains(t, err, "Password")
}
