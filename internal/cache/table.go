package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tably/tably/internal/catalog"
)

// TableCache holds the immutable restaurant table for the process lifetime.
// The load is single-flight: when concurrent first requests race, one load
// proceeds and the rest wait for its result. There is no invalidation path;
// a restart reloads.
type TableCache struct {
	source catalog.Source
	group  singleflight.Group

	mu    sync.RWMutex
	table *catalog.Table
}

// NewTableCache creates a table cache over the given source. The table is
// not loaded until the first Get; callers wanting fail-fast startup call
// Get eagerly.
func NewTableCache(source catalog.Source) *TableCache {
	return &TableCache{source: source}
}

// Get returns the loaded table, loading it on first use. All callers
// receive the same *catalog.Table; concurrent reads need no locking because
// the table never changes after load.
func (c *TableCache) Get(ctx context.Context) (*catalog.Table, error) {
	c.mu.RLock()
	table := c.table
	c.mu.RUnlock()
	if table != nil {
		return table, nil
	}

	v, err, _ := c.group.Do("table", func() (any, error) {
		// Another flight may have finished between the read and Do.
		c.mu.RLock()
		loaded := c.table
		c.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		restaurants, err := c.source.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading restaurant table: %w", err)
		}
		if len(restaurants) == 0 {
			return nil, fmt.Errorf("restaurant table loaded empty")
		}

		t := catalog.NewTable(restaurants)
		c.mu.Lock()
		c.table = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*catalog.Table), nil
}
