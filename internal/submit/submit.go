// Package submit handles self-submitted practice records from the public
// form.
package submit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// Submission is the form payload. Company is a honeypot field: humans never
// see it, so a non-empty value marks a bot.
type Submission struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Postcode     string `json:"postcode"`
	Phone        string `json:"phone"`
	URL          string `json:"url,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Facilities   string `json:"facilities,omitempty"`
	PracticeType string `json:"practice_type,omitempty"`
	Availability string `json:"nhs_accepting,omitempty"`
	Company      string `json:"company,omitempty"`
}

// ValidationError reports the required fields missing from a submission.
type ValidationError struct {
	Fields []string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Store is the persistence surface the service needs.
type Store interface {
	UpsertPractice(ctx context.Context, rec *model.PracticeRecord) error
}

// Geocoder resolves the submitted postcode so the practice appears on the
// map immediately.
type Geocoder interface {
	Resolve(ctx context.Context, raw string) *model.Coordinates
}

// Service validates and persists self-submissions.
type Service struct {
	store    Store
	geocoder Geocoder
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a submission Service.
func NewService(store Store, geocoder Geocoder) *Service {
	return &Service{
		store:    store,
		geocoder: geocoder,
		now:      time.Now,
		logger:   zap.L().With(zap.String("component", "submit")),
	}
}

// Accept validates sub and writes a new self-submitted record. A honeypot
// hit returns (nil, nil): the caller reports success without writing
// anything. Validation failures return a *ValidationError and write nothing.
func (s *Service) Accept(ctx context.Context, sub Submission) (*model.PracticeRecord, error) {
	if strings.TrimSpace(sub.Company) != "" {
		s.logger.Info("honeypot submission dropped")
		return nil, nil
	}

	name := strings.TrimSpace(sub.Name)
	address := strings.TrimSpace(sub.Address)
	postcode := model.NormalizePostcode(sub.Postcode)
	phone := strings.TrimSpace(sub.Phone)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if address == "" {
		missing = append(missing, "address")
	}
	if postcode == "" {
		missing = append(missing, "postcode")
	}
	if phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	canonical, err := canonicalKey(sub.URL)
	if err != nil {
		return nil, &ValidationError{Fields: []string{"url"}}
	}

	practiceType := strings.TrimSpace(sub.PracticeType)
	if practiceType == "" {
		practiceType = "private"
	}

	rec := &model.PracticeRecord{
		SourceKind:       model.SourceSelfSubmitted,
		CanonicalURL:     canonical,
		Name:             name,
		AddressText:      address,
		Postcode:         postcode,
		Phone:            phone,
		Website:          strings.TrimSpace(sub.Website),
		Email:            strings.TrimSpace(sub.Email),
		PracticeType:     practiceType,
		Availability:     model.ParseAvailability(sub.Availability),
		AvailabilityNote: "Self-reported by the practice",
		FacilitiesText:   strings.TrimSpace(sub.Facilities),
		Coordinates:      s.geocoder.Resolve(ctx, postcode),
		LastChecked:      s.now().UTC(),
	}

	if err := s.store.UpsertPractice(ctx, rec); err != nil {
		return nil, eris.Wrap(err, "submit: persist practice")
	}

	s.logger.Info("practice submitted",
		zap.String("url", rec.CanonicalURL),
		zap.String("postcode", rec.Postcode))
	return rec, nil
}

// canonicalKey derives the record identity. Submissions without a URL get a
// synthetic key so they can never collide with a crawled practice.
func canonicalKey(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "https://smilemap.invalid/submitted/" + uuid.New().String(), nil
	}
	canonical, err := model.CanonicalURL(raw)
	if err != nil {
		return "", eris.Wrap(err, "submit: canonicalize url")
	}
	return canonical, nil
}
