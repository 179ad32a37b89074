package registry

import (
	"errors"
	"log/slog"
	"maps"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/voicetyped/voicequery/internal/transcription/engine"
)

// DefaultCacheSize bounds how many backend/model engines stay alive. Model
// names come from requests, so the set is not closed.
const DefaultCacheSize = 16

type cacheKey struct {
	backend string
	model   string
}

// Cache lazily creates engines and keeps the most recently used ones. An
// evicted engine is closed.
type Cache struct {
	reg  *Registry
	base map[string]string
	size int

	// mu serialises creation so one key is never built twice.
	mu      sync.Mutex
	engines *lru.Cache[cacheKey, engine.Engine]
}

// CacheOption configures a Cache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	size int
}

// WithCacheSize overrides DefaultCacheSize.
func WithCacheSize(n int) CacheOption {
	return func(o *cacheOptions) {
		if n > 0 {
			o.size = n
		}
	}
}

// NewCache returns a cache backed by reg. base is the config map passed to
// every factory; the model key is set per call.
func NewCache(reg *Registry, base map[string]string, opts ...CacheOption) *Cache {
	o := cacheOptions{size: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Cache{
		reg:  reg,
		base: maps.Clone(base),
		size: o.size,
	}
	c.engines = c.newLRU()
	return c
}

func (c *Cache) newLRU() *lru.Cache[cacheKey, engine.Engine] {
	engines, err := lru.NewWithEvict(c.size, closeEvicted)
	if err != nil {
		// Only a non-positive size fails, which the options rule out.
		panic(err)
	}
	return engines
}

func closeEvicted(key cacheKey, e engine.Engine) {
	if err := e.Close(); err != nil {
		slog.Warn("close evicted engine",
			slog.String("backend", key.backend),
			slog.String("model", key.model),
			slog.String("error", err.Error()))
	}
}

// Get returns the engine for backend and model, creating it on first use.
func (c *Cache) Get(backend, model string) (engine.Engine, error) {
	key := cacheKey{backend: backend, model: model}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.engines.Get(key); ok {
		return e, nil
	}

	cfg := maps.Clone(c.base)
	if cfg == nil {
		cfg = make(map[string]string)
	}
	if model != "" {
		cfg["model"] = model
	}
	e, err := c.reg.Create(backend, cfg)
	if err != nil {
		return nil, err
	}
	c.engines.Add(key, e)
	return e, nil
}

// Len reports how many engines are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engines.Len()
}

// Backends lists the backends the cache can create.
func (c *Cache) Backends() []string {
	return c.reg.List()
}

// Close closes every cached engine.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, key := range c.engines.Keys() {
		e, ok := c.engines.Peek(key)
		if !ok {
			continue
		}
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	// Purge would run closeEvicted and close each engine a second time.
	c.engines = c.newLRU()
	return errors.Join(errs...)
}
