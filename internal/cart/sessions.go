package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/nolmart/internal/storage"
)

var ErrNoSession = errors.New("session id is required")

// Hook runs once for every store the registry opens.
type Hook func(sessionID string, s *Store)

type entry struct {
	store    *Store
	lastUsed time.Time
	// hookSubs is the listener count the open hooks left behind. More than that means a
	// renderer is still subscribed.
	hookSubs int
}

// Registry hands out one Store per visitor session, all backed by the same storage. Stores that
// sit idle are dropped by EvictIdle and reopened from storage on the next Get.
type Registry struct {
	kv   storage.KV
	opts []Option
	now  func() time.Time

	mu     sync.Mutex
	stores map[string]*entry
	hooks  []Hook
}

func NewRegistry(kv storage.KV, opts ...Option) *Registry {
	return &Registry{
		kv:     kv,
		opts:   opts,
		now:    time.Now,
		stores: make(map[string]*entry),
	}
}

func SessionKey(sessionID string) string {
	return DefaultKey + ":" + sessionID
}

// OnOpen registers h for stores opened after the call.
func (r *Registry) OnOpen(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Get returns the session's store, opening it from storage on first use.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	r.mu.Lock()
	if e, ok := r.stores[sessionID]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.store, nil
	}
	r.mu.Unlock()

	s, err := Open(ctx, r.kv, SessionKey(sessionID), r.opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a concurrent Get for the same session may have won the race
	if e, ok := r.stores[sessionID]; ok {
		e.lastUsed = r.now()
		return e.store, nil
	}
	for _, h := range r.hooks {
		h(sessionID, s)
	}
	r.stores[sessionID] = &entry{store: s, lastUsed: r.now(), hookSubs: s.listenerCount()}
	return s, nil
}

// EvictIdle drops stores unused for longer than ttl and returns how many went. Stores with a
// live subscriber (an open event stream) stay.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for sid, e := range r.stores {
		if e.lastUsed.After(cutoff) || e.store.listenerCount() > e.hookSubs {
			continue
		}
		delete(r.stores, sid)
		n++
	}
	return n
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, ttl, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.EvictIdle(ttl)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
