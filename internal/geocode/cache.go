package geocode

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// Key prefixes separate the full-postcode and outcode keyspaces. A malformed
// full postcode can parse as a valid outcode string, so the literal value
// alone is not a safe key.
const (
	keyPostcode = "pc:"
	keyOutcode  = "oc:"
)

// KV is the persistent backing for the geocode cache. A nil KV leaves the
// cache memory-only.
type KV interface {
	GetGeocode(ctx context.Context, key string) (*model.Coordinates, error)
	PutGeocode(ctx context.Context, key string, c model.Coordinates) error
}

// Cache is a write-through geocode cache: an in-process map in front of an
// optional persistent KV. Entries never expire. A KV write failure is logged
// and the entry stays memory-only for the run.
type Cache struct {
	mu  sync.RWMutex
	mem map[string]model.Coordinates
	kv  KV
}

// NewCache creates a cache backed by the given KV. kv may be nil.
func NewCache(kv KV) *Cache {
	return &Cache{
		mem: make(map[string]model.Coordinates),
		kv:  kv,
	}
}

// Get returns the cached coordinates for key, consulting memory first and
// falling back to the KV. A KV hit is promoted into memory.
func (c *Cache) Get(ctx context.Context, key string) (*model.Coordinates, bool) {
	c.mu.RLock()
	v, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return &v, true
	}

	if c.kv == nil {
		return nil, false
	}
	stored, err := c.kv.GetGeocode(ctx, key)
	if err != nil {
		zap.L().Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if stored == nil {
		return nil, false
	}

	c.mu.Lock()
	c.mem[key] = *stored
	c.mu.Unlock()
	return stored, true
}

// Put stores coordinates under key in memory and writes through to the KV.
func (c *Cache) Put(ctx context.Context, key string, coords model.Coordinates) {
	c.mu.Lock()
	c.mem[key] = coords
	c.mu.Unlock()

	if c.kv == nil {
		return
	}
	if err := c.kv.PutGeocode(ctx, key, coords); err != nil {
		zap.L().Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
}
