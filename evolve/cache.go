package evolve

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes fitness values by genome content. Evaluations are
// deterministic, so a cached value is interchangeable with a fresh one.
type Cache struct {
	lru    *lru.Cache[string, float64]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache holding at most size genomes.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New[string, float64](max(size, 1))
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Wrap returns a fitness function that consults the cache before calling f.
// Errors are not cached. Concurrent misses on the same genome may both
// evaluate it.
func (c *Cache) Wrap(f FitnessFunc) FitnessFunc {
	return func(ctx context.Context, g Genome) (float64, error) {
		key := g.String()
		if v, ok := c.lru.Get(key); ok {
			c.hits.Add(1)
			return v, nil
		}
		c.misses.Add(1)
		v, err := f(ctx, g)
		if err != nil {
			return 0, err
		}
		c.lru.Add(key, v)
		return v, nil
	}
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached genomes.
func (c *Cache) Len() int { return c.lru.Len() }
