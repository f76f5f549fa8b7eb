// Package cart owns the visitor's cart: its lines, their persistence under a single storage key
// and the change notifications renderers subscribe to.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/models"
	"github.com/Skotchmaster/nolmart/internal/storage"
)

const (
	DefaultKey         = "nolmart_cart"
	DefaultPlaceholder = "img/placeholder-image.png"

	// MaxQuantity caps a single line. Adds that would pass it are rejected.
	MaxQuantity = 9999
)

type Option func(*Store)

// WithPlaceholder sets the thumbnail used for products that have no images.
func WithPlaceholder(path string) Option {
	return func(s *Store) {
		if path != "" {
			s.placeholder = path
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

type Store struct {
	kv          storage.KV
	key         string
	placeholder string
	log         *slog.Logger

	mu    sync.Mutex
	lines []models.CartLine
	// rev orders commits. It starts at the open time so a reopened cart keeps counting upwards.
	rev uint64

	notifier notifier
}

// Open reads key once and returns a store holding its lines. A missing or corrupt record yields
// an empty cart; any other read failure is returned.
func Open(ctx context.Context, kv storage.KV, key string, opts ...Option) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		kv:          kv,
		key:         key,
		placeholder: DefaultPlaceholder,
		log:         logging.FromContext(ctx),
		rev:         uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("cart_key", key)

	raw, err := kv.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	s.lines = s.decode(raw)
	return s, nil
}

func (s *Store) decode(raw []byte) []models.CartLine {
	var stored []models.CartLine
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.log.Warn("discarding persisted cart", "error", fmt.Errorf("%w: %v", ErrStorageCorrupt, err))
		return nil
	}

	lines := make([]models.CartLine, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, l := range stored {
		if _, dup := seen[l.ProductID]; dup || l.ProductID == "" || l.Quantity < 1 || l.Quantity > MaxQuantity || l.UnitPrice.IsNegative() {
			s.log.Warn("dropping invalid cart line", "product_id", l.ProductID, "quantity", l.Quantity)
			continue
		}
		seen[l.ProductID] = struct{}{}
		lines = append(lines, l)
	}
	return lines
}

func (s *Store) Key() string {
	return s.key
}

// AddItem snapshots p into the cart, incrementing the quantity when the product is already there.
func (s *Store) AddItem(ctx context.Context, p models.Product, quantity int) ([]models.CartLine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > MaxQuantity {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}

	return s.mutate(ctx, func(lines []models.CartLine) ([]models.CartLine, error) {
		if i := indexOf(lines, p.ID); i >= 0 {
			if lines[i].Quantity > MaxQuantity-quantity {
				return nil, fmt.Errorf("%w: %d more of %s would exceed %d", ErrInvalidQuantity, quantity, p.ID, MaxQuantity)
			}
			lines[i].Quantity += quantity
			return lines, nil
		}
		return append(lines, models.CartLine{
			ProductID:    p.ID,
			Name:         p.Name,
			UnitPrice:    p.Price,
			ThumbnailURL: p.Thumbnail(s.placeholder),
			Quantity:     quantity,
		}), nil
	})
}

// RemoveItem deletes the line for productID. Removing an absent id still persists and notifies.
func (s *Store) RemoveItem(ctx context.Context, productID string) ([]models.CartLine, error) {
	return s.mutate(ctx, func(lines []models.CartLine) ([]models.CartLine, error) {
		return without(lines, productID), nil
	})
}

// UpdateQuantity overwrites the quantity of productID. n <= 0 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, n int) ([]models.CartLine, error) {
	if n > MaxQuantity {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, n)
	}
	return s.mutate(ctx, func(lines []models.CartLine) ([]models.CartLine, error) {
		if n <= 0 {
			return without(lines, productID), nil
		}
		if i := indexOf(lines, productID); i >= 0 {
			lines[i].Quantity = n
		}
		return lines, nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.mutate(ctx, func([]models.CartLine) ([]models.CartLine, error) {
		return nil, nil
	})
	return err
}

func (s *Store) Lines() []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, l := range s.lines {
		total = total.Add(l.Total())
	}
	return total
}

func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// ItemCount is the number of distinct products in the cart.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// OnChange registers l for every successful mutation and returns its unsubscribe func.
func (s *Store) OnChange(l Listener) func() {
	return s.notifier.subscribe(func(_ uint64, lines []models.CartLine) { l(lines) })
}

// OnCommit is OnChange with the revision of the commit. Notifications run outside the store lock,
// so two commits can reach a listener out of order; the revision tells which one is newer.
func (s *Store) OnCommit(l CommitListener) func() {
	return s.notifier.subscribe(l)
}

// Revision is the revision of the last commit.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

func (s *Store) listenerCount() int {
	return s.notifier.len()
}

// mutate applies fn to a copy of the lines, persists the result with one write and, only if the
// write succeeded, swaps it in and emits one notification. An error from fn leaves everything
// untouched.
func (s *Store) mutate(ctx context.Context, fn func([]models.CartLine) ([]models.CartLine, error)) ([]models.CartLine, error) {
	s.mu.Lock()

	next, err := fn(copyLines(s.lines))
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if next == nil {
		next = []models.CartLine{}
	}

	raw, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		s.mu.Unlock()
		s.log.Error("persist cart failed", "error", err)
		return nil, fmt.Errorf("persist cart %s: %w", s.key, err)
	}

	s.lines = next
	s.rev++
	rev := s.rev
	snapshot := copyLines(next)
	s.mu.Unlock()

	s.notifier.emit(rev, snapshot)
	return snapshot, nil
}

func indexOf(lines []models.CartLine, productID string) int {
	for i, l := range lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func without(lines []models.CartLine, productID string) []models.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	return out
}

func copyLines(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, len(lines))
	copy(out, lines)
	return out
}
