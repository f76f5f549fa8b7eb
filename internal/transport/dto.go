package transport

import "github.com/shopspring/decimal"

type AddCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"  validate:"omitempty,min=1,max=9999"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=9999"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateProductRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	ImageURLs   []string        `json:"imageUrls"   validate:"dive,required"`
	VideoURL    string          `json:"videoUrl"`
	VideoLink   string          `json:"videoLink"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Subcategory *string          `json:"subcategory"`
	ImageURLs   *[]string        `json:"imageUrls"`
	VideoURL    *string          `json:"videoUrl"`
	VideoLink   *string          `json:"videoLink"`
}
