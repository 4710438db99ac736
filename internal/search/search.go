// Package search merges, filters, and ranks practice records for queries.
package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
	"github.com/miriamhowe1992-eng/smilemap/internal/store"
)

const (
	// DefaultLimit applies when the query names no limit.
	DefaultLimit = 500
	// MaxLimit is the hard result-count ceiling.
	MaxLimit = 1000

	milesToKm = 1.609344
)

// facilityKeywords maps each facility filter to the substrings that satisfy
// it in a record's facilities text.
var facilityKeywords = map[string][]string{
	"wheelchair": {"wheelchair", "accessible"},
	"toilet":     {"toilet", "disabled toilet"},
	"parking":    {"car park", "car parking", "parking"},
}

// Params is one search query.
type Params struct {
	Postcode     string
	Availability string // "" or "All" means no filter
	PracticeType string // "" or "All" means no filter
	Wheelchair   bool
	Toilet       bool
	Parking      bool
	RadiusMiles  float64
	Sort         string // "distance" enables distance ordering
	Limit        int
}

// Result is one ranked practice with its query-relative annotations.
type Result struct {
	model.PracticeRecord
	Featured   bool     `json:"featured"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Response is a capped result page plus the pre-cap total.
type Response struct {
	Total int      `json:"total"`
	Items []Result `json:"items"`
}

// Directory lists the merged practice dataset.
type Directory interface {
	ListPractices(ctx context.Context, filter store.PracticeFilter) ([]model.PracticeRecord, error)
}

// Geocoder resolves postcodes to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, raw string) *model.Coordinates
	ResolveBulk(ctx context.Context, raws []string) map[string]model.Coordinates
}

// Promotions answers which practices hold an active featured boost.
type Promotions interface {
	ActiveSet(ctx context.Context, now time.Time) (map[string]bool, error)
}

// Engine executes search queries. It is stateless per request.
type Engine struct {
	directory  Directory
	geocoder   Geocoder
	promotions Promotions
	now        func() time.Time
	logger     *zap.Logger
}

// NewEngine creates an Engine over the given collaborators.
func NewEngine(directory Directory, geocoder Geocoder, promotions Promotions) *Engine {
	return &Engine{
		directory:  directory,
		geocoder:   geocoder,
		promotions: promotions,
		now:        time.Now,
		logger:     zap.L().With(zap.String("component", "search")),
	}
}

// Search runs one query. Total counts the filtered set before the limit cap.
func (e *Engine) Search(ctx context.Context, p Params) (*Response, error) {
	recs, err := e.directory.ListPractices(ctx, store.PracticeFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "search: list practices")
	}

	recs = applyFilters(recs, p)

	active, err := e.promotions.ActiveSet(ctx, e.now())
	if err != nil {
		return nil, eris.Wrap(err, "search: featured lookup")
	}

	results := make([]Result, 0, len(recs))
	for _, rec := range recs {
		results = append(results, Result{
			PracticeRecord: rec,
			Featured:       active[rec.CanonicalURL],
		})
	}

	var origin *model.Coordinates
	if p.Postcode != "" {
		origin = e.geocoder.Resolve(ctx, p.Postcode)
		if origin == nil {
			e.logger.Debug("origin postcode unresolved", zap.String("postcode", p.Postcode))
		}
	}
	if origin != nil {
		e.annotateDistances(ctx, results, *origin)

		if p.RadiusMiles > 0 {
			radiusKm := p.RadiusMiles * milesToKm
			kept := results[:0]
			for _, r := range results {
				if r.DistanceKm != nil && *r.DistanceKm <= radiusKm {
					kept = append(kept, r)
				}
			}
			results = kept
		}
	}

	sortResults(results, p.Sort)

	total := len(results)
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return &Response{Total: total, Items: results}, nil
}

// annotateDistances fills DistanceKm for every result, bulk-resolving
// missing record coordinates by stored postcode.
func (e *Engine) annotateDistances(ctx context.Context, results []Result, origin model.Coordinates) {
	var missing []string
	for _, r := range results {
		if r.Coordinates == nil && r.Postcode != "" {
			missing = append(missing, r.Postcode)
		}
	}

	var resolved map[string]model.Coordinates
	if len(missing) > 0 {
		resolved = e.geocoder.ResolveBulk(ctx, missing)
	}

	for i := range results {
		coords := results[i].Coordinates
		if coords == nil && results[i].Postcode != "" {
			if c, ok := resolved[normalizeKey(results[i].Postcode)]; ok {
				coords = &c
				results[i].Coordinates = &c
			}
		}
		if coords == nil {
			continue
		}
		d := HaversineKm(origin, *coords)
		results[i].DistanceKm = &d
	}
}

func applyFilters(recs []model.PracticeRecord, p Params) []model.PracticeRecord {
	out := recs[:0:0]
	availability := strings.ToLower(strings.TrimSpace(p.Availability))
	practiceType := strings.ToLower(strings.TrimSpace(p.PracticeType))

	for _, rec := range recs {
		if availability != "" && availability != "all" &&
			strings.ToLower(string(rec.Availability)) != availability {
			continue
		}
		if practiceType != "" && practiceType != "all" &&
			strings.ToLower(rec.PracticeType) != practiceType {
			continue
		}
		if p.Wheelchair && !hasFacility(rec.FacilitiesText, "wheelchair") {
			continue
		}
		if p.Toilet && !hasFacility(rec.FacilitiesText, "toilet") {
			continue
		}
		if p.Parking && !hasFacility(rec.FacilitiesText, "parking") {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func hasFacility(facilitiesText, facility string) bool {
	text := strings.ToLower(facilitiesText)
	for _, kw := range facilityKeywords[facility] {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// sortResults orders featured results first, then by ascending distance when
// the sort mode asks for it. Unresolved distances sort last.
func sortResults(results []Result, sortMode string) {
	byDistance := strings.TrimSpace(sortMode) == "distance"
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Featured != results[j].Featured {
			return results[i].Featured
		}
		if !byDistance {
			return false
		}
		di, dj := distanceOrInf(results[i]), distanceOrInf(results[j])
		return di < dj
	})
}

func distanceOrInf(r Result) float64 {
	if r.DistanceKm == nil {
		return math.Inf(1)
	}
	return *r.DistanceKm
}

func normalizeKey(postcode string) string {
	return strings.ToUpper(strings.Join(strings.Fields(postcode), ""))
}
