// Package cache stores encoded portfolio results. Concurrent lookups of one key share a single fill.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// DefaultTTL matches how often a portfolio page is regenerated.
const DefaultTTL = time.Hour

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Cacher allows callers to substitute their own cache.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache holds encoded portfolio results in memory, optionally backed by disk.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	flights map[string]*flight
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
	mu      sync.Mutex
}

// flight tracks concurrent Lookups of one key.
type flight struct {
	refs  int
	fills atomic.Int64
}

// New opens a Cache persisted under the user cache directory.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "folio"))
}

// NewNull opens a memory-only Cache. Results expire after ttl and are lost on exit.
func NewNull(ttl time.Duration) (*Cache, error) {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte](), sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// NewWithPath opens a Cache persisted in dir. Entries written by earlier runs are
// served until ttl elapses.
func NewWithPath(ttl time.Duration, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("folio", dir)
	if err != nil {
		return nil, fmt.Errorf("open disk store: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL is how long a stored result stays fresh.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Stats returns the hits and misses recorded by Lookup.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) record(hit bool) {
	if hit {
		c.hits.Add(1)
		return
	}
	c.misses.Add(1)
}

func (c *Cache) join(key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flights == nil {
		c.flights = make(map[string]*flight)
	}
	f, ok := c.flights[key]
	if !ok {
		f = &flight{}
		c.flights[key] = f
	}
	f.refs++
	return f
}

func (c *Cache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.refs--
	if f.refs == 0 {
		delete(c.flights, key)
	}
}

type tracker interface {
	join(key string) *flight
	leave(key string, f *flight)
	record(hit bool)
}

// Lookup returns the value stored under key, calling fetch to fill it on a miss.
// hit is true only when the value was already stored before this call began: a call
// that shares a concurrent fill reports a miss. Errors from fetch are returned and
// never stored.
func Lookup(ctx context.Context, c Cacher, key string, fetch func(context.Context) ([]byte, error)) (data []byte, hit bool, err error) {
	t, tracked := c.(tracker)
	var f *flight
	var before int64
	if tracked {
		f = t.join(key)
		defer t.leave(key, f)
		before = f.fills.Load()
	}

	var fetched bool
	data, err = c.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
		fetched = true
		b, err := fetch(ctx)
		if err == nil && f != nil {
			f.fills.Add(1)
		}
		return b, err
	}, c.TTL())
	if err != nil {
		return nil, false, err
	}

	hit = !fetched && (f == nil || f.fills.Load() == before)
	if tracked {
		t.record(hit)
	}
	return data, hit, nil
}
