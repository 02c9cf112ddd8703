package cache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// Snapshots caches each wiki entry's ordered snapshot list. Concurrent
// misses for the same entry share one load. A load that overlaps an
// Invalidate is returned to its callers but not cached, so an appended
// snapshot is never hidden by a fill that started before it.
type Snapshots struct {
	lru   *LRU[string, []entities.WikiSnapshot]
	group singleflight.Group
	epoch atomic.Uint64
}

// NewSnapshots creates a cache holding up to capacity entries.
func NewSnapshots(capacity int) *Snapshots {
	return &Snapshots{
		lru: NewLRU[string, []entities.WikiSnapshot](capacity),
	}
}

// GetOrLoad returns the cached snapshots of entryID, calling load on a miss.
// The shared load does not inherit the caller's cancellation; a caller
// whose ctx ends stops waiting while the others still get the result.
func (c *Snapshots) GetOrLoad(ctx context.Context, entryID string, load func(context.Context) ([]entities.WikiSnapshot, error)) ([]entities.WikiSnapshot, error) {
	if snapshots, ok := c.lru.Get(entryID); ok {
		return snapshots, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	results := c.group.DoChan(entryID, func() (any, error) {
		epoch := c.epoch.Load()
		snapshots, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if c.epoch.Load() == epoch {
			c.lru.Set(entryID, snapshots)
		}
		return snapshots, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]entities.WikiSnapshot), nil
	}
}

// Invalidate drops the cached snapshots of entryID.
func (c *Snapshots) Invalidate(entryID string) {
	c.epoch.Add(1)
	c.lru.Delete(entryID)
	c.group.Forget(entryID)
}

// Stats returns the cache counters.
func (c *Snapshots) Stats() Stats {
	return c.lru.Stats()
}
