package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/nolmart/internal/models"
	"github.com/Skotchmaster/nolmart/internal/transport"
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		return nil, err
	}
	return &GormRepo{DB: db}, nil
}

// Fetch returns every product, newest first. It lets the repo act as a catalog source.
func (r *GormRepo) Fetch(ctx context.Context) ([]models.Product, error) {
	return r.ProductsByCategory(ctx, "")
}

// ProductsByCategory filters server side; an empty category or "all" returns everything.
func (r *GormRepo) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{})
	if category != "" && category != "all" {
		q = q.Where("category = ?", category)
	}

	var items []models.Product
	if err := q.Order("created_at DESC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var items []models.Product
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).
		Order("created_at DESC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) (*models.Product, error) {
	now := time.Now().UTC()
	if prod.CreatedAt == nil {
		prod.CreatedAt = &now
	}
	prod.UpdatedAt = &now

	if err := r.DB.WithContext(ctx).Create(prod).Error; err != nil {
		return nil, err
	}
	return prod, nil
}

func (r *GormRepo) PatchProduct(ctx context.Context, req transport.PatchProductRequest, id string) (*models.Product, error) {
	prod, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		prod.Name = *req.Name
	}
	if req.Price != nil {
		prod.Price = *req.Price
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Category != nil {
		prod.Category = *req.Category
	}
	if req.Subcategory != nil {
		prod.Subcategory = *req.Subcategory
	}
	if req.ImageURLs != nil {
		prod.ImageURLs = *req.ImageURLs
	}
	if req.VideoURL != nil {
		prod.VideoURL = *req.VideoURL
	}
	if req.VideoLink != nil {
		prod.VideoLink = *req.VideoLink
	}
	if err := prod.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	prod.UpdatedAt = &now
	if err := r.DB.WithContext(ctx).Save(prod).Error; err != nil {
		return nil, err
	}
	return prod, nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
