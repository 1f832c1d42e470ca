package probe

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"cudadoctor/internal/logging"
)

// DefaultCacheSize is the number of strategy outcomes kept per process.
const DefaultCacheSize = 128

// CachingExecutor memoises strategy outcomes within one process. Several
// capabilities share strategies (the python import probes, nvidia-smi
// queries), so a sweep runs each distinct command at most once.
type CachingExecutor struct {
	next   Executor
	cache  *lru.Cache[string, Result]
	logger *logging.Logger
	hits   atomic.Int64
}

// NewCachingExecutor wraps next with an LRU cache of the given size.
// A size of zero or less disables caching and returns next unchanged.
func NewCachingExecutor(next Executor, size int, logger *logging.Logger) (Executor, error) {
	if size <= 0 {
		return next, nil
	}
	cache, err := lru.New[string, Result](size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &CachingExecutor{next: next, cache: cache, logger: logger}, nil
}

// Execute returns a cached outcome when the same strategy already ran.
// Outcomes of cancelled attempts are not stored.
func (c *CachingExecutor) Execute(ctx context.Context, s Strategy) Result {
	key, cacheable := s.cacheKey()
	if !cacheable {
		return c.next.Execute(ctx, s)
	}

	if res, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		c.logger.Debug("probe.cache.hit", "Reusing strategy outcome", map[string]interface{}{
			"strategy": s.Label(),
		})
		return res
	}

	res := c.next.Execute(ctx, s)
	if ctx.Err() == nil {
		c.cache.Add(key, res)
	}
	return res
}

// Hits returns the number of cache hits so far.
func (c *CachingExecutor) Hits() int64 {
	return c.hits.Load()
}
