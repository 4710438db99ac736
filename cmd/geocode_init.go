package main

import (
	"net/http"
	"time"

	"github.com/miriamhowe1992-eng/smilemap/internal/geocode"
	"github.com/miriamhowe1992-eng/smilemap/internal/store"
)

// initResolver builds the postcode resolver with its store-backed cache.
func initResolver(st store.Store) *geocode.Resolver {
	opts := []geocode.Option{
		geocode.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
		}),
	}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.RateRPS > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RateRPS))
	}

	client := geocode.NewClient(opts...)
	return geocode.NewResolver(client, geocode.NewCache(st))
}
