package geocode

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// outcodeRe matches the leading postal-district prefix of a normalized
// postcode, e.g. "IP1", "SW1A", "B1".
var outcodeRe = regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z0-9]?`)

// Normalize uppercases the input and strips all whitespace.
func Normalize(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// Resolver turns postcodes into coordinates via the cache and provider.
// Resolution never fails: provider errors are logged and the input is
// reported unresolved.
type Resolver struct {
	provider Provider
	cache    *Cache
	logger   *zap.Logger
}

// NewResolver creates a resolver over the given provider and cache.
func NewResolver(provider Provider, cache *Cache) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    cache,
		logger:   zap.L().With(zap.String("component", "geocode")),
	}
}

// Resolve resolves a single postcode or outcode. Lookup order: cache, full
// postcode, then the derived outcode (independently cached). Returns nil
// when unresolved.
func (r *Resolver) Resolve(ctx context.Context, raw string) *model.Coordinates {
	pc := Normalize(raw)
	if pc == "" {
		return nil
	}

	if c, ok := r.cache.Get(ctx, keyPostcode+pc); ok {
		return c
	}

	coords, err := r.provider.Postcode(ctx, pc)
	if err != nil {
		r.logger.Warn("postcode lookup failed", zap.String("postcode", pc), zap.Error(err))
	}
	if coords != nil {
		r.cache.Put(ctx, keyPostcode+pc, *coords)
		return coords
	}

	outcode := outcodeRe.FindString(pc)
	if outcode == "" {
		return nil
	}
	if c, ok := r.cache.Get(ctx, keyOutcode+outcode); ok {
		return c
	}

	coords, err = r.provider.Outcode(ctx, outcode)
	if err != nil {
		r.logger.Warn("outcode lookup failed", zap.String("outcode", outcode), zap.Error(err))
	}
	if coords != nil {
		r.cache.Put(ctx, keyOutcode+outcode, *coords)
		return coords
	}
	return nil
}

// ResolveBulk resolves many postcodes at once. Cache hits are satisfied
// without a provider call; the misses are deduplicated and batched into
// fixed-size chunks for bulk lookup. Every resolved entry is cached before
// the result map, keyed by normalized postcode, is returned.
func (r *Resolver) ResolveBulk(ctx context.Context, raws []string) map[string]model.Coordinates {
	out := make(map[string]model.Coordinates)

	var misses []string
	seen := make(map[string]bool)
	for _, raw := range raws {
		pc := Normalize(raw)
		if pc == "" || seen[pc] {
			continue
		}
		seen[pc] = true

		if c, ok := r.cache.Get(ctx, keyPostcode+pc); ok {
			out[pc] = *c
			continue
		}
		misses = append(misses, pc)
	}

	for start := 0; start < len(misses); start += BulkChunkSize {
		end := start + BulkChunkSize
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[start:end]

		resolved, err := r.provider.Bulk(ctx, chunk)
		if err != nil {
			r.logger.Warn("bulk lookup failed", zap.Int("size", len(chunk)), zap.Error(err))
			continue
		}
		for pc, coords := range resolved {
			r.cache.Put(ctx, keyPostcode+pc, coords)
			out[pc] = coords
		}
	}
	return out
}
