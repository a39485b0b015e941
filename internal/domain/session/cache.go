// Package session holds per-user dataset caches and the registry that owns them.
package session

import (
	"sync"

	"github.com/secondvote/trends/internal/domain/model"
)

// Ticket identifies one reload attempt against a Cache.
type Ticket uint64

// Cache is a single-slot holder for a session's dataset. The dataset is
// immutable once stored; readers share it without copying.
type Cache struct {
	mu  sync.Mutex
	ds  *model.Dataset
	gen uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Begin starts a reload. The slot is cleared so selections made while the
// reload runs see ErrNotLoaded.
func (c *Cache) Begin() Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.ds = nil
	return Ticket(c.gen)
}

// Commit installs ds if t is still the latest reload. It reports whether ds
// was installed; a superseded reload is discarded.
func (c *Cache) Commit(t Ticket, ds *model.Dataset) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if uint64(t) != c.gen || ds == nil {
		return false
	}
	c.ds = ds
	return true
}

// Abort ends a failed reload. The slot stays empty until the next reload.
func (c *Cache) Abort(t Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if uint64(t) == c.gen {
		c.ds = nil
	}
}

// Set replaces the dataset outright, superseding any reload in flight.
func (c *Cache) Set(ds *model.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.ds = ds
}

// Get returns the current dataset or ErrNotLoaded.
func (c *Cache) Get() (*model.Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ds == nil {
		return nil, ErrNotLoaded
	}
	return c.ds, nil
}

// Invalidate drops the dataset.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.ds = nil
}
