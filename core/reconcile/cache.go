package reconcile

import (
	"context"
	"sync"
	"time"

	"marvin-sync/core/model"

	"golang.org/x/sync/singleflight"
)

// IndexCache holds the desktop library index between syncs.
type IndexCache struct {
	ttl time.Duration

	mu    sync.RWMutex
	index *model.LibraryIndex
	sf    singleflight.Group
}

// NewIndexCache creates a cache. A zero ttl keeps the index until the library
// identity changes.
func NewIndexCache(ttl time.Duration) *IndexCache {
	return &IndexCache{ttl: ttl}
}

// BuildFunc builds a fresh index.
type BuildFunc func(ctx context.Context) (*model.LibraryIndex, error)

// Get returns the cached index while identity matches the one it was built for
// and the ttl has not elapsed. Otherwise it rebuilds. Concurrent callers share
// one build.
func (c *IndexCache) Get(ctx context.Context, identity model.LibraryIdentity, build BuildFunc) (*model.LibraryIndex, error) {
	if idx := c.fresh(identity); idx != nil {
		return idx, nil
	}

	result, err, _ := c.sf.Do(identity.UUID, func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		if idx := c.fresh(identity); idx != nil {
			return idx, nil
		}

		idx, err := build(ctx)
		if err != nil {
			return nil, err
		}
		idx.Identity = identity
		if idx.Built.IsZero() {
			idx.Built = time.Now()
		}

		c.mu.Lock()
		c.index = idx
		c.mu.Unlock()

		return idx, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.LibraryIndex), nil
}

// Current returns the cached index without checking freshness, or nil.
func (c *IndexCache) Current() *model.LibraryIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Invalidate drops the cached index so the next Get rebuilds it.
func (c *IndexCache) Invalidate() {
	c.mu.Lock()
	c.index = nil
	c.mu.Unlock()
}

func (c *IndexCache) fresh(identity model.LibraryIdentity) *model.LibraryIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.index == nil || !c.index.Identity.Same(identity) {
		return nil
	}
	if c.ttl > 0 && time.Since(c.index.Built) > c.ttl {
		return nil
	}
	return c.index
}
