package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

func init() {
	// products.json and the cart record carry prices as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          string          `gorm:"primaryKey"                 json:"id"`
	Name        string          `gorm:"not null"                   json:"name"`
	Price       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"price"`
	Description string          `json:"description"`
	Category    string          `gorm:"index"                      json:"category"`
	Subcategory string          `json:"subcategory"`
	ImageURLs   []string        `gorm:"serializer:json"            json:"imageUrls"`
	VideoURL    string          `json:"videoUrl"`
	VideoLink   string          `json:"videoLink,omitempty"`
	CreatedAt   *time.Time      `gorm:"index"                      json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// Validate reports whether p can safely be shown in the catalog or snapshotted into a cart line.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required (id %s)", ErrInvalidProduct, p.ID)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative (id %s)", ErrInvalidProduct, p.ID)
	}
	return nil
}

// Thumbnail returns the first image of the product, as stored, or fallback when there is none.
func (p Product) Thumbnail(fallback string) string {
	if len(p.ImageURLs) > 0 {
		return p.ImageURLs[0]
	}
	return fallback
}

type CartLine struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	ThumbnailURL string          `json:"thumbnailUrl"`
	Quantity     int             `json:"quantity"`
}

func (l CartLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
