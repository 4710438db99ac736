package model

import (
	"testing"
	"time"
)

func TestCanonicalURL_TrailingSlash(t *testing.T) {
	a, err := CanonicalURL("https://x.example/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := CanonicalURL("https://x.example/a/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("expected %q == %q", a, b)
	}
}

func TestCanonicalURL_StripsQueryAndCase(t *testing.T) {
	got, err := CanonicalURL("HTTPS://Www.Example.NHS.uk/Services/Dentist-1/?utm=x#frag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://www.example.nhs.uk/services/dentist-1"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCanonicalURL_AddsScheme(t *testing.T) {
	got, err := CanonicalURL("example.co.uk/dental")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://example.co.uk/dental" {
		t.Errorf("unexpected canonical url %q", got)
	}
}

func TestCanonicalURL_UppercaseScheme(t *testing.T) {
	// An uppercase scheme must not read as schemeless and get a second
	// scheme prepended.
	got, err := CanonicalURL("HTTP://X.Example/A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://x.example/a" {
		t.Errorf("unexpected canonical url %q", got)
	}
}

func TestCanonicalURL_Empty(t *testing.T) {
	if _, err := CanonicalURL("  "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestNormalizePostcode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"SW1A1AA", "SW1A 1AA"},
		{"sw1a 1aa", "SW1A 1AA"},
		{"12 High Street, Ipswich IP1 3QH, Suffolk", "IP1 3QH"},
		{"no postcode here", ""},
		{"B1 1AA", "B1 1AA"},
	}
	for _, c := range cases {
		if got := NormalizePostcode(c.in); got != c.want {
			t.Errorf("NormalizePostcode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePostcode_Idempotent(t *testing.T) {
	for _, pc := range []string{"SW1A 1AA", "IP12 1AB", "B1 1AA", "EH2 2BY"} {
		once := NormalizePostcode(pc)
		if NormalizePostcode(once) != once {
			t.Errorf("normalize not idempotent for %q", pc)
		}
	}
}

func TestParseAvailability(t *testing.T) {
	cases := map[string]Availability{
		"Accepting":     AvailabilityAccepting,
		"limited":       AvailabilityLimited,
		"not_accepting": AvailabilityNotAccepting,
		"":              AvailabilityUnknown,
		"garbage":       AvailabilityUnknown,
	}
	for in, want := range cases {
		if got := ParseAvailability(in); got != want {
			t.Errorf("ParseAvailability(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeaturedPromotion_Active(t *testing.T) {
	now := time.Now()
	p := FeaturedPromotion{ExpiresAt: now.Add(time.Hour)}
	if !p.Active(now) {
		t.Error("expected promotion active before expiry")
	}
	if p.Active(now.Add(2 * time.Hour)) {
		t.Error("expected promotion inactive after expiry")
	}
	if p.Active(p.ExpiresAt) {
		t.Error("promotion must not be active exactly at expiry")
	}
}

func TestSnapshot_ByURL(t *testing.T) {
	s := Snapshot{Items: []PracticeRecord{
		{CanonicalURL: "https://a.example/one"},
		{CanonicalURL: "https://a.example/two"},
	}}
	m := s.ByURL()
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if _, ok := m["https://a.example/one"]; !ok {
		t.Error("missing key for first record")
	}
}
