// Package catalog keeps the product list in memory and answers listing, filtering and search
// queries from it without going back to the source.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/models"
)

var ErrCatalogUnavailable = errors.New("catalog unavailable")

// All matches every category or subcategory.
const All = "all"

const DefaultRelatedLimit = 4

type Source interface {
	Fetch(ctx context.Context) ([]models.Product, error)
}

type SourceFunc func(ctx context.Context) ([]models.Product, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]models.Product, error) {
	return f(ctx)
}

type Option func(*Cache)

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.timeout = d
	}
}

type Cache struct {
	source  Source
	log     *slog.Logger
	timeout time.Duration

	group singleflight.Group

	mu       sync.RWMutex
	loaded   bool
	products []models.Product
	byID     map[string]int
	loadedAt time.Time
}

func New(source Source, opts ...Option) *Cache {
	c := &Cache{source: source}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the cached products, fetching them on first use. A failed fetch yields an empty
// list and an error wrapping ErrCatalogUnavailable.
func (c *Cache) Load(ctx context.Context) ([]models.Product, error) {
	c.mu.RLock()
	if c.loaded {
		out := copyProducts(c.products)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	return c.fetch(ctx, false)
}

// Reload refetches unconditionally. On failure the previous list is kept.
func (c *Cache) Reload(ctx context.Context) ([]models.Product, error) {
	return c.fetch(ctx, true)
}

func (c *Cache) fetch(ctx context.Context, force bool) ([]models.Product, error) {
	key := "load"
	if force {
		key = "reload"
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if !force {
			c.mu.RLock()
			products, done := c.products, c.loaded
			c.mu.RUnlock()
			if done {
				return products, nil
			}
		}

		fctx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		raw, err := c.source.Fetch(fctx)
		if err != nil {
			return nil, err
		}
		products := c.sanitize(ctx, raw)

		c.mu.Lock()
		c.products = products
		c.byID = indexByID(products)
		c.loaded = true
		c.loadedAt = time.Now()
		c.mu.Unlock()

		c.logger(ctx).Info("catalog loaded", "products", len(products), "dropped", len(raw)-len(products))
		return products, nil
	})
	if err != nil {
		c.logger(ctx).Warn("catalog fetch failed", "error", err)
		return []models.Product{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return copyProducts(v.([]models.Product)), nil
}

func (c *Cache) logger(ctx context.Context) *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return logging.FromContext(ctx)
}

func (c *Cache) sanitize(ctx context.Context, raw []models.Product) []models.Product {
	l := c.logger(ctx)

	out := make([]models.Product, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		if err := p.Validate(); err != nil {
			l.Warn("dropping product", "error", err)
			continue
		}
		if _, dup := seen[p.ID]; dup {
			l.Warn("dropping duplicate product", "id", p.ID)
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}

func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// FilterByCategory returns the products in category, optionally narrowed to subcategory.
// An empty value or "all" disables that filter. Cache order is preserved.
func (c *Cache) FilterByCategory(category, subcategory string) []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []models.Product{}
	for _, p := range c.products {
		if !matches(category, p.Category) || !matches(subcategory, p.Subcategory) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(filter, value string) bool {
	return filter == "" || strings.EqualFold(filter, All) || filter == value
}

func (c *Cache) Product(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, false
	}
	return c.products[i], true
}

// Related returns up to limit other products from the same category as id.
func (c *Cache) Related(id string, limit int) []models.Product {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []models.Product{}
	i, ok := c.byID[id]
	if !ok {
		return out
	}
	category := c.products[i].Category
	for _, p := range c.products {
		if len(out) == limit {
			break
		}
		if p.ID != id && p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the first limit products, newest first. limit <= 0 returns everything.
func (c *Cache) Latest(limit int) []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if limit <= 0 || limit > len(c.products) {
		limit = len(c.products)
	}
	return copyProducts(c.products[:limit])
}

func (c *Cache) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return uniqueSorted(c.products, func(p models.Product) (string, bool) {
		return p.Category, true
	})
}

func (c *Cache) Subcategories(category string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return uniqueSorted(c.products, func(p models.Product) (string, bool) {
		return p.Subcategory, matches(category, p.Category)
	})
}

func uniqueSorted(products []models.Product, pick func(models.Product) (string, bool)) []string {
	set := map[string]struct{}{}
	for _, p := range products {
		v, ok := pick(p)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func indexByID(products []models.Product) map[string]int {
	m := make(map[string]int, len(products))
	for i, p := range products {
		m[p.ID] = i
	}
	return m
}

func copyProducts(products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	copy(out, products)
	return out
}
