// Package model defines the practice record types shared across the pipeline.
package model

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SourceKind identifies where a practice record came from.
type SourceKind string

const (
	SourceDirectory     SourceKind = "directory"
	SourceSelfSubmitted SourceKind = "self_submitted"
)

// Availability is the derived NHS patient-acceptance status.
type Availability string

const (
	AvailabilityAccepting    Availability = "accepting"
	AvailabilityLimited      Availability = "limited"
	AvailabilityNotAccepting Availability = "not_accepting"
	AvailabilityUnknown      Availability = "unknown"
)

// ParseAvailability maps a query/form value onto an Availability. Empty and
// unrecognized values map to AvailabilityUnknown.
func ParseAvailability(s string) Availability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accepting", "yes", "green":
		return AvailabilityAccepting
	case "limited", "amber":
		return AvailabilityLimited
	case "not_accepting", "no", "red":
		return AvailabilityNotAccepting
	default:
		return AvailabilityUnknown
	}
}

// Coordinates is a WGS84 lat/lon pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PracticeRecord is one directory entry. CanonicalURL is the sole identity
// key across snapshots and across the merge of directory and self-submitted
// sources.
type PracticeRecord struct {
	SourceKind       SourceKind   `json:"source_kind"`
	CanonicalURL     string       `json:"canonical_url"`
	Name             string       `json:"name"`
	AddressText      string       `json:"address,omitempty"`
	Postcode         string       `json:"postcode,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	Website          string       `json:"website,omitempty"`
	Email            string       `json:"email,omitempty"`
	PracticeType     string       `json:"practice_type,omitempty"`
	Availability     Availability `json:"availability"`
	AvailabilityNote string       `json:"availability_note"`
	FacilitiesText   string       `json:"facilities,omitempty"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	LastChecked      time.Time    `json:"last_checked"`
}

// Seed is one crawl input entry. The optional fields carry forward when the
// page itself yields nothing better.
type Seed struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// Snapshot is an immutable point-in-time dataset produced by one crawl run.
type Snapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Total       int              `json:"total"`
	Items       []PracticeRecord `json:"items"`
}

// ByURL indexes the snapshot items by canonical URL.
func (s *Snapshot) ByURL() map[string]PracticeRecord {
	m := make(map[string]PracticeRecord, len(s.Items))
	for _, it := range s.Items {
		m[it.CanonicalURL] = it
	}
	return m
}

// StatusChange records one availability transition between snapshots.
type StatusChange struct {
	URL      string       `json:"url"`
	Name     string       `json:"name"`
	Postcode string       `json:"postcode"`
	From     Availability `json:"from"`
	To       Availability `json:"to"`
}

// ChangeSet is the derived difference between two snapshots.
type ChangeSet struct {
	Added         []PracticeRecord `json:"added"`
	Removed       []PracticeRecord `json:"removed"`
	StatusChanged []StatusChange   `json:"status_changed"`
}

// FeaturedPromotion is a paid, time-boxed ranking boost keyed by canonical URL.
type FeaturedPromotion struct {
	CanonicalURL string    `json:"canonical_url"`
	DisplayName  string    `json:"display_name,omitempty"`
	Postcode     string    `json:"postcode,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Active reports whether the promotion is live at the given instant.
func (f FeaturedPromotion) Active(now time.Time) bool {
	return now.Before(f.ExpiresAt)
}

// CanonicalURL normalizes a practice URL into the dedup key: lower-cased
// scheme+host+path with the query, fragment, and any trailing slash stripped.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("empty url")
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "parse url %q", raw)
	}
	if u.Host == "" {
		return "", eris.Errorf("url %q has no host", raw)
	}
	path := strings.TrimRight(strings.ToLower(u.Path), "/")
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path, nil
}

// ukPostcodeRe matches a UK postcode (outward + inward part) anywhere in text.
var ukPostcodeRe = regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d{1,2}[A-Z]?)\s*(\d[A-Z]{2})\b`)

// NormalizePostcode pulls a UK postcode out of free text and returns it in
// canonical "AB1 2CD" form, or "" when no postcode is present. Idempotent.
func NormalizePostcode(s string) string {
	m := ukPostcodeRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1]) + " " + strings.ToUpper(m[2])
}
