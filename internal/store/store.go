// Package store persists practice records, featured promotions, and the
// geocode cache behind a backend-neutral interface.
package store

import (
	"context"
	"time"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// PracticeFilter specifies criteria for listing practices.
type PracticeFilter struct {
	SourceKind   model.SourceKind   `json:"source_kind,omitempty"`
	PracticeType string             `json:"practice_type,omitempty"`
	Availability model.Availability `json:"availability,omitempty"`
	Limit        int                `json:"limit,omitempty"`
}

// Store defines the persistence interface for the directory pipeline.
type Store interface {
	// Practices
	UpsertPractice(ctx context.Context, rec *model.PracticeRecord) error
	GetPractice(ctx context.Context, canonicalURL string) (*model.PracticeRecord, error)
	ListPractices(ctx context.Context, filter PracticeFilter) ([]model.PracticeRecord, error)

	// Featured promotions
	UpsertFeatured(ctx context.Context, p *model.FeaturedPromotion) error
	GetFeatured(ctx context.Context, canonicalURL string) (*model.FeaturedPromotion, error)
	ListFeatured(ctx context.Context, activeAt time.Time) ([]model.FeaturedPromotion, error)

	// Geocode cache
	GetGeocode(ctx context.Context, key string) (*model.Coordinates, error)
	PutGeocode(ctx context.Context, key string, c model.Coordinates) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
