package mykafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/nolmart/internal/cart"
	"github.com/Skotchmaster/nolmart/internal/models"
)

const (
	EventCartUpdated    = "cart_updated"
	EventProductCreated = "product_created"
	EventProductUpdated = "product_updated"
	EventProductDeleted = "product_deleted"
)

type CartEvent struct {
	Type          string            `json:"type"`
	SessionID     string            `json:"session_id"`
	// Revision grows with every commit of the session's cart. Consumers keep the highest one seen.
	Revision      uint64            `json:"revision"`
	Lines         []models.CartLine `json:"lines"`
	TotalQuantity int               `json:"total_quantity"`
	TotalPrice    decimal.Decimal   `json:"total_price"`
	At            time.Time         `json:"at"`
}

type ProductEvent struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Product *models.Product `json:"product,omitempty"`
	At      time.Time       `json:"at"`
}

func NewCartEvent(sessionID string, rev uint64, lines []models.CartLine) CartEvent {
	total := decimal.Zero
	qty := 0
	for _, l := range lines {
		total = total.Add(l.Total())
		qty += l.Quantity
	}
	return CartEvent{
		Type:          EventCartUpdated,
		SessionID:     sessionID,
		Revision:      rev,
		Lines:         lines,
		TotalQuantity: qty,
		TotalPrice:    total,
		At:            time.Now().UTC(),
	}
}

// CartForwarder returns a registry hook that publishes every change of an opened cart to
// cart_events, keyed by session id. Publishing runs off the mutating goroutine; a revision older
// than the last one sent for the session is dropped instead of published.
func CartForwarder(ctx context.Context, pub Publisher, log *slog.Logger) cart.Hook {
	return func(sessionID string, s *cart.Store) {
		f := &cartForwarder{pub: pub, log: log, sessionID: sessionID}
		s.OnCommit(func(rev uint64, lines []models.CartLine) {
			go f.forward(ctx, rev, lines)
		})
	}
}

type cartForwarder struct {
	pub       Publisher
	log       *slog.Logger
	sessionID string

	mu   sync.Mutex
	sent uint64
}

func (f *cartForwarder) forward(ctx context.Context, rev uint64, lines []models.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rev <= f.sent {
		f.log.Debug("skipping stale cart event", "session_id", f.sessionID, "revision", rev, "sent", f.sent)
		return
	}
	f.sent = rev

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := f.pub.PublishEvent(pctx, TopicCartEvents, f.sessionID, NewCartEvent(f.sessionID, rev, lines)); err != nil {
		f.log.Warn("publish cart event failed", "session_id", f.sessionID, "revision", rev, "error", err)
	}
}
