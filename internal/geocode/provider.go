// Package geocode resolves UK postcodes and outcodes to coordinates using
// the postcodes.io API, with a write-through cache persisted between runs.
package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// BulkChunkSize is the provider's maximum postcodes per bulk lookup call.
const BulkChunkSize = 100

// Provider is the geocoding provider boundary. Lookups return (nil, nil)
// when the provider has no match for the query.
type Provider interface {
	// Postcode resolves a full postcode.
	Postcode(ctx context.Context, pc string) (*model.Coordinates, error)

	// Outcode resolves an outcode (postal district).
	Outcode(ctx context.Context, oc string) (*model.Coordinates, error)

	// Bulk resolves up to BulkChunkSize postcodes in one call. The returned
	// map is keyed by the provider's echo of each query, uppercased.
	Bulk(ctx context.Context, pcs []string) (map[string]model.Coordinates, error)
}

// Option configures the provider client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithRateLimit sets the requests-per-second rate limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// Client implements Provider against the postcodes.io HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a postcodes.io client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    "https://api.postcodes.io",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// singleResponse is the JSON envelope for single postcode/outcode lookups.
type singleResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"result"`
}

// bulkResponse is the JSON envelope for bulk postcode lookups.
type bulkResponse struct {
	Status int `json:"status"`
	Result []struct {
		Query  string `json:"query"`
		Result *struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"result"`
	} `json:"result"`
}

func (c *Client) Postcode(ctx context.Context, pc string) (*model.Coordinates, error) {
	return c.lookup(ctx, "/postcodes/"+url.PathEscape(pc))
}

func (c *Client) Outcode(ctx context.Context, oc string) (*model.Coordinates, error) {
	return c.lookup(ctx, "/outcodes/"+url.PathEscape(oc))
}

func (c *Client) lookup(ctx context.Context, path string) (*model.Coordinates, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var sr singleResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}
	if sr.Result == nil || sr.Result.Latitude == nil || sr.Result.Longitude == nil {
		return nil, nil
	}
	return &model.Coordinates{Lat: *sr.Result.Latitude, Lon: *sr.Result.Longitude}, nil
}

func (c *Client) Bulk(ctx context.Context, pcs []string) (map[string]model.Coordinates, error) {
	if len(pcs) == 0 {
		return nil, nil
	}
	if len(pcs) > BulkChunkSize {
		return nil, eris.Errorf("geocode: bulk chunk exceeds %d postcodes", BulkChunkSize)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: bulk rate limit")
	}

	payload, err := json.Marshal(map[string][]string{"postcodes": pcs})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: marshal bulk payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/postcodes", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build bulk request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: bulk request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: bulk returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read bulk body")
	}

	var br bulkResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, eris.Wrap(err, "geocode: parse bulk response")
	}

	out := make(map[string]model.Coordinates, len(br.Result))
	for _, r := range br.Result {
		if r.Query == "" || r.Result == nil || r.Result.Latitude == nil || r.Result.Longitude == nil {
			continue
		}
		out[Normalize(r.Query)] = model.Coordinates{Lat: *r.Result.Latitude, Lon: *r.Result.Longitude}
	}
	return out, nil
}
