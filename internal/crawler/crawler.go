// Package crawler fetches directory practice pages with bounded concurrency,
// polite pacing, and per-URL retry. A failed page is recorded, never raised;
// the crawl always completes for every other seed.
package crawler

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

const maxBodyBytes = 1 << 20 // 1MB per page

// Options configures the crawler.
type Options struct {
	// Concurrency caps the number of in-flight fetches. Default: 6.
	Concurrency int
	// Timeout applies per HTTP fetch. Default: 15s.
	Timeout time.Duration
	// MaxAttempts is the total tries per URL, including the first. Default: 3.
	MaxAttempts int
	// RetryBackoff is the base delay; attempt n sleeps n×RetryBackoff. Default: 400ms.
	RetryBackoff time.Duration
	// Pacing is the mandatory delay between successive dispatches. Default: 250ms.
	Pacing time.Duration
	// UserAgent identifies the bot.
	UserAgent string
	// DirectoryHost, when set, rewrites matching seed URLs to their
	// /appointments page before fetching.
	DirectoryHost string
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 6
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 400 * time.Millisecond
	}
	if o.Pacing <= 0 {
		o.Pacing = 250 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = "Mozilla/5.0 (compatible; SmileMapBot/1.0; +https://www.smilemap.co.uk)"
	}
	return o
}

// Result is the terminal outcome for one seed. Failed results carry the last
// error; successful ones carry decoded page markup.
type Result struct {
	Seed       model.Seed
	FetchedURL string
	HTML       string
	Attempts   int
	Err        error
}

// Failed reports whether the seed exhausted its retries.
func (r Result) Failed() bool { return r.Err != nil }

// Crawler fetches practice pages.
type Crawler struct {
	client *http.Client
	opts   Options
	pacer  *rate.Limiter
}

// New creates a Crawler with the given options.
func New(opts Options) *Crawler {
	opts = opts.withDefaults()
	return &Crawler{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		pacer:  rate.NewLimiter(rate.Every(opts.Pacing), 1),
	}
}

// Run fetches every seed and returns one Result per seed. Output ordering is
// not guaranteed to match input ordering. Cancelling the context stops new
// dispatches; in-flight fetches finish or time out, and every result gathered
// so far is still returned.
func (c *Crawler) Run(ctx context.Context, seeds []model.Seed) []Result {
	log := zap.L().With(zap.String("component", "crawler"))

	results := make(chan Result, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

dispatch:
	for _, seed := range seeds {
		// Pacing applies to dispatch, not completion, so effective
		// concurrency can still exceed one.
		if err := c.pacer.Wait(ctx); err != nil {
			break dispatch
		}
		select {
		case <-ctx.Done():
			break dispatch
		default:
		}

		g.Go(func() error {
			results <- c.fetchSeed(gctx, seed)
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	out := make([]Result, 0, len(seeds))
	var failed int
	for r := range results {
		if r.Failed() {
			failed++
		}
		out = append(out, r)
	}
	log.Info("crawl finished",
		zap.Int("seeds", len(seeds)),
		zap.Int("fetched", len(out)-failed),
		zap.Int("failed", failed),
	)
	return out
}

// fetchSeed drives the retry state machine for one URL: an attempt counter
// loop with linearly increasing backoff between attempts.
func (c *Crawler) fetchSeed(ctx context.Context, seed model.Seed) Result {
	target := c.AppointmentsURL(seed.URL)
	res := Result{Seed: seed, FetchedURL: target}

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		res.Attempts = attempt

		page, err := c.fetchOnce(ctx, target)
		if err == nil {
			res.HTML = page
			return res
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt == c.opts.MaxAttempts {
			break
		}

		zap.L().Warn("fetch failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(time.Duration(attempt) * c.opts.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = lastErr
			return res
		case <-timer.C:
		}
	}

	zap.L().Warn("fetch abandoned",
		zap.String("url", target),
		zap.Int("attempts", res.Attempts),
		zap.Error(lastErr),
	)
	res.Err = lastErr
	return res
}

func (c *Crawler) fetchOnce(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "crawler: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "crawler: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", eris.Errorf("crawler: status %d from %s", resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "crawler: read body")
	}

	return decodeBody(body, resp.Header.Get("Content-Type"))
}

// decodeBody converts a response body to UTF-8 using the charset declared in
// the Content-Type header. Unknown or absent charsets pass through unchanged.
func decodeBody(body []byte, contentType string) (string, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body), nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" {
		return string(body), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrapf(err, "crawler: decode charset %q", charset)
	}
	return string(decoded), nil
}

// AppointmentsURL rewrites a directory practice URL to its /appointments
// page, which carries the availability statement. Non-directory URLs pass
// through untouched.
func (c *Crawler) AppointmentsURL(raw string) string {
	if c.opts.DirectoryHost == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !strings.HasSuffix(u.Hostname(), c.opts.DirectoryHost) {
		return raw
	}
	if strings.HasSuffix(u.Path, "/appointments") {
		return raw
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/appointments"
	return u.String()
}
