package featured

import (
	"context"
	"testing"
	"time"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// memStore is an in-memory promotion store.
type memStore struct {
	promos map[string]model.FeaturedPromotion
}

func newMemStore() *memStore {
	return &memStore{promos: make(map[string]model.FeaturedPromotion)}
}

func (m *memStore) UpsertFeatured(_ context.Context, p *model.FeaturedPromotion) error {
	m.promos[p.CanonicalURL] = *p
	return nil
}

func (m *memStore) GetFeatured(_ context.Context, url string) (*model.FeaturedPromotion, error) {
	if p, ok := m.promos[url]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *memStore) ListFeatured(_ context.Context, activeAt time.Time) ([]model.FeaturedPromotion, error) {
	var out []model.FeaturedPromotion
	for _, p := range m.promos {
		if p.ExpiresAt.After(activeAt) {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestService(store Store, now time.Time) *Service {
	s := NewService(store)
	s.now = func() time.Time { return now }
	return s
}

func TestActivate_SetsWindowAndNormalizes(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, now)

	promo, err := svc.Activate(context.Background(), ActivationEvent{
		CanonicalURL: "https://X.Example/Practice/",
		DisplayName:  "Smile Dental",
		Postcode:     "ip13qh",
	})
	if err != nil {
		t.Fatal(err)
	}

	if promo.CanonicalURL != "https://x.example/practice" {
		t.Errorf("url = %s", promo.CanonicalURL)
	}
	if promo.Postcode != "IP1 3QH" {
		t.Errorf("postcode = %s", promo.Postcode)
	}
	want := now.Add(PromotionWindow)
	if !promo.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", promo.ExpiresAt, want)
	}
}

func TestActivate_RenewalPreservesMetadata(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, now)

	if _, err := svc.Activate(context.Background(), ActivationEvent{
		CanonicalURL: "https://x.example/a",
		DisplayName:  "Smile Dental",
		Postcode:     "IP1 3QH",
		ContactEmail: "owner@smile.example",
	}); err != nil {
		t.Fatal(err)
	}

	// Renewal event carries only the URL; metadata must survive.
	later := newTestService(store, now.Add(20*24*time.Hour))
	promo, err := later.Activate(context.Background(), ActivationEvent{CanonicalURL: "https://x.example/a"})
	if err != nil {
		t.Fatal(err)
	}

	if promo.DisplayName != "Smile Dental" || promo.Postcode != "IP1 3QH" || promo.ContactEmail != "owner@smile.example" {
		t.Errorf("metadata lost: %+v", promo)
	}
	want := now.Add(20*24*time.Hour + PromotionWindow)
	if !promo.ExpiresAt.Equal(want) {
		t.Errorf("expires_at = %v, want %v", promo.ExpiresAt, want)
	}
}

func TestActivate_RejectsEmptyURL(t *testing.T) {
	svc := newTestService(newMemStore(), time.Now())
	if _, err := svc.Activate(context.Background(), ActivationEvent{CanonicalURL: "  "}); err == nil {
		t.Error("expected error for blank url")
	}
}

func TestActiveSet(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store.promos["https://x.example/live"] = model.FeaturedPromotion{
		CanonicalURL: "https://x.example/live",
		ExpiresAt:    now.Add(time.Hour),
	}
	store.promos["https://x.example/lapsed"] = model.FeaturedPromotion{
		CanonicalURL: "https://x.example/lapsed",
		ExpiresAt:    now.Add(-time.Hour),
	}

	svc := newTestService(store, now)
	active, err := svc.ActiveSet(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if !active["https://x.example/live"] {
		t.Error("live promotion missing from active set")
	}
	if active["https://x.example/lapsed"] {
		t.Error("lapsed promotion in active set")
	}
}
