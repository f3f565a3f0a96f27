package remote

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/connectbox/console/pkg/repositories/lms"
)

// collection is the lazily loaded, sorted copy of one LMS entity set.
// Entries are never modified in place: writes replace the whole entry.
type collection[T any] struct {
	mu     sync.RWMutex
	items  []*T
	loaded bool
	flight singleflight.Group

	id    func(*T) lms.ID
	label func(*T) string
	fetch func(ctx context.Context) ([]*T, error)
}

func newCollection[T any](id func(*T) lms.ID, label func(*T) string, fetch func(ctx context.Context) ([]*T, error)) *collection[T] {
	return &collection[T]{id: id, label: label, fetch: fetch}
}

// load returns a snapshot of the collection, fetching it on first use.
// Concurrent first calls share a single fetch.
func (c *collection[T]) load(ctx context.Context) ([]*T, error) {
	c.mu.RLock()
	if c.loaded {
		out := c.snapshotLocked()
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	ch := c.flight.DoChan("load", func() (any, error) {
		c.mu.RLock()
		done := c.loaded
		c.mu.RUnlock()
		if !done {
			items, err := c.fetch(context.WithoutCancel(ctx))
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			if !c.loaded {
				c.items = items
				c.sortLocked()
				c.loaded = true
			}
			c.mu.Unlock()
		}
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked(), nil
}

func (c *collection[T]) find(ctx context.Context, id lms.ID) (*T, error) {
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if c.id(it) == id {
			return it, nil
		}
	}
	return nil, nil
}

func (c *collection[T]) findByIDs(ctx context.Context, ids []lms.ID) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[lms.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]*T, 0, len(ids))
	for _, it := range items {
		if _, ok := want[c.id(it)]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// put stores item, replacing any entry with the same id.
func (c *collection[T]) put(item *T) {
	cp := *item
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(c.id(&cp))
	c.items = append(c.items, &cp)
	c.sortLocked()
}

func (c *collection[T]) remove(id lms.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

func (c *collection[T]) removeLocked(id lms.ID) {
	kept := c.items[:0]
	for _, it := range c.items {
		if c.id(it) != id {
			kept = append(kept, it)
		}
	}
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = nil
	}
	c.items = kept
}

func (c *collection[T]) sortLocked() {
	sort.SliceStable(c.items, func(i, j int) bool {
		return strings.Compare(c.label(c.items[i]), c.label(c.items[j])) < 0
	})
}

// snapshotLocked copies the entries so callers cannot reach cached values.
func (c *collection[T]) snapshotLocked() []*T {
	out := make([]*T, 0, len(c.items))
	for _, it := range c.items {
		cp := *it
		out = append(out, &cp)
	}
	return out
}
