package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/nolmart/internal/hash"
	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/models"
	"github.com/Skotchmaster/nolmart/internal/mykafka"
	"github.com/Skotchmaster/nolmart/internal/tokens"
	"github.com/Skotchmaster/nolmart/internal/transport"
)

const accessTTL = 12 * time.Hour

type ProductRepo interface {
	GetProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, prod *models.Product) (*models.Product, error)
	PatchProduct(ctx context.Context, req transport.PatchProductRequest, id string) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Indexer mirrors product changes into the search index.
type Indexer interface {
	IndexProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type Reloader interface {
	Reload(ctx context.Context) ([]models.Product, error)
}

type AdminService struct {
	Repo      ProductRepo
	Indexer   Indexer
	Publisher mykafka.Publisher
	Catalog   Reloader

	Username     string
	PasswordHash string
	JWTSecret    []byte
}

type LoginResult struct {
	AccessToken string
	AccessExp   time.Time
}

func (s *AdminService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "admin.login", "username", username)

	if username != s.Username || !hash.CheckPassword(s.PasswordHash, password) {
		l.Warn("login failed", "status", 401, "reason", "invalid username or password")
		return nil, ErrUnauthorized
	}

	token, exp, err := tokens.NewAccessToken(username, tokens.RoleAdmin, s.JWTSecret, accessTTL)
	if err != nil {
		l.Error("login failed", "status", 500, "error", err)
		return nil, err
	}
	return &LoginResult{AccessToken: token, AccessExp: exp}, nil
}

func (s *AdminService) ListProducts(ctx context.Context, offset, limit int) (int64, []models.Product, error) {
	return s.Repo.GetProducts(ctx, offset, limit)
}

func (s *AdminService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return p, nil
}

func (s *AdminService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := s.Repo.GetProduct(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: product %s already exists", ErrValidation, id)
	}

	prod := &models.Product{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Price:       req.Price,
		Description: req.Description,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		ImageURLs:   req.ImageURLs,
		VideoURL:    req.VideoURL,
		VideoLink:   req.VideoLink,
	}
	if prod.ImageURLs == nil {
		prod.ImageURLs = []string{}
	}
	if err := prod.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	created, err := s.Repo.CreateProduct(ctx, prod)
	if err != nil {
		return nil, err
	}
	s.propagate(ctx, mykafka.EventProductCreated, created.ID, created)
	return created, nil
}

func (s *AdminService) PatchProduct(ctx context.Context, id string, req transport.PatchProductRequest) (*models.Product, error) {
	updated, err := s.Repo.PatchProduct(ctx, req, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.propagate(ctx, mykafka.EventProductUpdated, updated.ID, updated)
	return updated, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.propagate(ctx, mykafka.EventProductDeleted, id, nil)
	return nil
}

// propagate syncs the search index, publishes the event and refreshes the local catalog.
// Failures are logged; the store write already succeeded.
func (s *AdminService) propagate(ctx context.Context, kind, id string, p *models.Product) {
	l := logging.FromContext(ctx).With("svc", "admin.propagate", "product_id", id, "event", kind)

	if s.Indexer != nil {
		var err error
		if p == nil {
			err = s.Indexer.DeleteProduct(ctx, id)
		} else {
			err = s.Indexer.IndexProduct(ctx, *p)
		}
		if err != nil {
			l.Warn("search index sync failed", "error", err)
		}
	}

	if s.Publisher != nil {
		ev := mykafka.ProductEvent{Type: kind, ID: id, Product: p, At: time.Now().UTC()}
		if err := s.Publisher.PublishEvent(ctx, mykafka.TopicProductEvents, id, ev); err != nil {
			l.Warn("publish product event failed", "error", err)
		}
	}

	if s.Catalog != nil {
		if _, err := s.Catalog.Reload(ctx); err != nil {
			l.Warn("catalog reload failed", "error", err)
		}
	}
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, models.ErrInvalidProduct):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	default:
		return err
	}
}
