package analyzer

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Interface is satisfied by Analyzer and Cache.
type Interface interface {
	Analyze(ctx context.Context, path string) (Analysis, error)
}

type cacheKey struct {
	size  int64
	mtime time.Time
}

type cacheEntry struct {
	key      cacheKey
	analysis Analysis
}

// Cache memoizes analyses for the lifetime of the process. An entry is
// reused only while the file's size and modification time are unchanged.
// Failures are never cached.
type Cache struct {
	inner Interface
	log   *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

// NewCache wraps inner with a cache.
func NewCache(inner Interface, logger *slog.Logger) *Cache {
	return &Cache{
		inner:   inner,
		log:     logger.With("component", "analysis_cache"),
		entries: make(map[string]cacheEntry),
	}
}

// Analyze returns a cached analysis or delegates to the wrapped analyzer.
func (c *Cache) Analyze(ctx context.Context, path string) (Analysis, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Let the analyzer produce the error in its usual form.
		return c.inner.Analyze(ctx, path)
	}
	key := cacheKey{size: info.Size(), mtime: info.ModTime()}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok && e.key == key {
		c.hits++
		c.mu.Unlock()
		return e.analysis, nil
	}
	c.misses++
	c.mu.Unlock()

	analysis, err := c.inner.Analyze(ctx, path)
	if err != nil {
		return analysis, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{key: key, analysis: analysis}
	c.mu.Unlock()
	return analysis, nil
}

// Stats returns hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
