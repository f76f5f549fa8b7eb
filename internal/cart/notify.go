package cart

import (
	"sync"

	"github.com/Skotchmaster/nolmart/internal/models"
)

// Listener receives the cart snapshot after a mutation. Listeners should treat it as a signal to
// re-read the whole cart.
type Listener func(lines []models.CartLine)

// CommitListener receives the revision of the commit along with the snapshot.
type CommitListener func(rev uint64, lines []models.CartLine)

type notifier struct {
	mu        sync.Mutex
	next      uint64
	listeners map[uint64]CommitListener
	order     []uint64
}

func (n *notifier) subscribe(l CommitListener) func() {
	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[uint64]CommitListener)
	}
	id := n.next
	n.next++
	n.listeners[id] = l
	n.order = append(n.order, id)
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners, id)
			for i, v := range n.order {
				if v == id {
					n.order = append(n.order[:i], n.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (n *notifier) emit(rev uint64, lines []models.CartLine) {
	n.mu.Lock()
	ls := make([]CommitListener, 0, len(n.order))
	for _, id := range n.order {
		ls = append(ls, n.listeners[id])
	}
	n.mu.Unlock()

	for _, l := range ls {
		l(rev, copyLines(lines))
	}
}

func (n *notifier) len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.order)
}
