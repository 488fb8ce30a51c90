package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robertarktes/bus-booking-gateway/internal/domain"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

type Inventory interface {
	Buses(ctx context.Context, token string) ([]domain.Bus, error)
	Bus(ctx context.Context, token string, id int64) (domain.Bus, error)
	Route(ctx context.Context, token string, id int64) (domain.Route, error)
}

// Cache stores JSON-encodable values for a bounded time.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Catalog resolves bus and route ids to display labels, cache-aside.
type Catalog struct {
	inv    Inventory
	cache  Cache
	ttl    time.Duration
	logger observability.Logger
}

func NewCatalog(inv Inventory, cache Cache, ttl time.Duration, logger observability.Logger) *Catalog {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Catalog{inv: inv, cache: cache, ttl: ttl, logger: logger}
}

func cached[T any](ctx context.Context, c *Catalog, key string, load func() (T, error)) (T, error) {
	var v T
	hit, err := c.cache.Get(ctx, key, &v)
	if err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("label cache read failed")
	}
	if hit {
		return v, nil
	}
	v, err = load()
	if err != nil {
		return v, err
	}
	if err := c.cache.Set(ctx, key, v, c.ttl); err != nil {
		c.logger.WithField("key", key).WithError(err).Warn("label cache write failed")
	}
	return v, nil
}

func (c *Catalog) Buses(ctx context.Context, token string) ([]domain.Bus, error) {
	return cached(ctx, c, "buses", func() ([]domain.Bus, error) { return c.inv.Buses(ctx, token) })
}

func (c *Catalog) Bus(ctx context.Context, token string, id int64) (domain.Bus, error) {
	return cached(ctx, c, fmt.Sprintf("bus:%d", id), func() (domain.Bus, error) { return c.inv.Bus(ctx, token, id) })
}

func (c *Catalog) Route(ctx context.Context, token string, id int64) (domain.Route, error) {
	return cached(ctx, c, fmt.Sprintf("route:%d", id), func() (domain.Route, error) { return c.inv.Route(ctx, token, id) })
}

func BusLabel(b *domain.Bus) string {
	if b == nil {
		return "Unknown Bus"
	}
	return fmt.Sprintf("%s (%s)", b.BusNumber, b.BusType)
}

func RouteLabel(r *domain.Route) string {
	if r == nil {
		return "Unknown Route"
	}
	return fmt.Sprintf("%s → %s", r.Source, r.Destination)
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.data, dst)
}

func (m *MemoryCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}
