// Package featured manages paid promotion windows keyed by canonical URL.
// Promotions are written only by the payment activation handler; the ranking
// engine treats them as read-only.
package featured

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// PromotionWindow is how long one activation keeps a practice featured.
const PromotionWindow = 30 * 24 * time.Hour

// Store is the persistence surface the service needs.
type Store interface {
	UpsertFeatured(ctx context.Context, p *model.FeaturedPromotion) error
	GetFeatured(ctx context.Context, canonicalURL string) (*model.FeaturedPromotion, error)
	ListFeatured(ctx context.Context, activeAt time.Time) ([]model.FeaturedPromotion, error)
}

// ActivationEvent is the payment collaborator's signal that a promotion was
// bought or renewed. Optional fields update the stored display metadata only
// when present.
type ActivationEvent struct {
	CanonicalURL string `json:"canonical_url"`
	DisplayName  string `json:"display_name,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// Service applies activation events and answers active-promotion lookups.
type Service struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a Service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		logger: zap.L().With(zap.String("component", "featured")),
	}
}

// Activate upserts the promotion for the event's practice with a fresh
// expiry window. Metadata fields absent from the event keep their prior
// stored values.
func (s *Service) Activate(ctx context.Context, ev ActivationEvent) (*model.FeaturedPromotion, error) {
	raw := strings.TrimSpace(ev.CanonicalURL)
	if raw == "" {
		return nil, eris.New("featured: activation without practice url")
	}
	url, err := model.CanonicalURL(raw)
	if err != nil {
		return nil, eris.Wrap(err, "featured: activation url")
	}

	promo := &model.FeaturedPromotion{
		CanonicalURL: url,
		DisplayName:  strings.TrimSpace(ev.DisplayName),
		Postcode:     model.NormalizePostcode(ev.Postcode),
		ContactEmail: strings.TrimSpace(ev.ContactEmail),
		ExpiresAt:    s.now().UTC().Add(PromotionWindow),
	}

	prior, err := s.store.GetFeatured(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "featured: load prior promotion")
	}
	if prior != nil {
		if promo.DisplayName == "" {
			promo.DisplayName = prior.DisplayName
		}
		if promo.Postcode == "" {
			promo.Postcode = prior.Postcode
		}
		if promo.ContactEmail == "" {
			promo.ContactEmail = prior.ContactEmail
		}
	}

	if err := s.store.UpsertFeatured(ctx, promo); err != nil {
		return nil, eris.Wrap(err, "featured: upsert promotion")
	}

	s.logger.Info("promotion activated",
		zap.String("url", url),
		zap.Time("expires_at", promo.ExpiresAt))
	return promo, nil
}

// ActiveSet returns the canonical URLs with a live promotion at the given
// instant.
func (s *Service) ActiveSet(ctx context.Context, now time.Time) (map[string]bool, error) {
	promos, err := s.store.ListFeatured(ctx, now)
	if err != nil {
		return nil, eris.Wrap(err, "featured: list active")
	}
	active := make(map[string]bool, len(promos))
	for _, p := range promos {
		if p.Active(now) {
			active[p.CanonicalURL] = true
		}
	}
	return active, nil
}
