package remote

import (
	"sync"

	"github.com/connectbox/console/pkg/repositories/lms"
)

// deleteHooks lets dependent caches drop what they hold about a deleted entity.
type deleteHooks struct {
	mu  sync.Mutex
	fns []func(lms.ID)
}

// OnDelete registers fn to run after an entity is deleted through the repository.
func (h *deleteHooks) OnDelete(fn func(lms.ID)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *deleteHooks) deleted(id lms.ID) {
	h.mu.Lock()
	fns := append(([]func(lms.ID))(nil), h.fns...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

type deleteNotifier interface {
	OnDelete(fn func(lms.ID))
}

// onDelete registers fn when repo reports deletions.
func onDelete(repo any, fn func(lms.ID)) {
	if n, ok := repo.(deleteNotifier); ok {
		n.OnDelete(fn)
	}
}
