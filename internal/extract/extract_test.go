package extract

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Smile Dental</title></head>
<body>
<h1>Smile Dental Practice</h1>
<div data-test="address">12 High Street, Ipswich IP1 3QH</div>
<p data-test="telephone">01473 123456</p>
<a href="mailto:hello@smiledental.example">Email us</a>
<a href="https://www.smiledental.example">Visit our website</a>
<h2>Routine dental care</h2>
<p>This dentist does not currently accept new NHS patients for routine dental care.</p>
<ul><li>Contact the practice for private appointments.</li></ul>
<h2>Accessibility</h2>
<div class="accessibility">
  <ul>
    <li>Wheelchair access</li>
    <li>Disabled toilet</li>
    <li>Car parking</li>
  </ul>
</div>
<p>We also offer Invisalign and emergency appointments with sedation available.</p>
</body></html>`

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestPage_FullExtraction(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ex, err := Page(samplePage, "https://www.nhs.uk/services/dentist/smile-dental/X123/", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := ex.Record
	if rec.Name != "Smile Dental Practice" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.CanonicalURL != "https://www.nhs.uk/services/dentist/smile-dental/x123" {
		t.Errorf("canonical url = %q", rec.CanonicalURL)
	}
	if rec.Postcode != "IP1 3QH" {
		t.Errorf("postcode = %q", rec.Postcode)
	}
	if rec.Phone != "01473 123456" {
		t.Errorf("phone = %q", rec.Phone)
	}
	if rec.Email != "hello@smiledental.example" {
		t.Errorf("email = %q", rec.Email)
	}
	if rec.Website != "https://www.smiledental.example" {
		t.Errorf("website = %q", rec.Website)
	}
	if rec.SourceKind != model.SourceDirectory {
		t.Errorf("source kind = %q", rec.SourceKind)
	}
	if !rec.LastChecked.Equal(now) {
		t.Errorf("last checked = %v", rec.LastChecked)
	}

	for _, want := range []string{"Wheelchair access", "Disabled toilet", "Car parking", "invisalign", "sedation", "emergency"} {
		if !strings.Contains(rec.FacilitiesText, want) {
			t.Errorf("facilities %q missing %q", rec.FacilitiesText, want)
		}
	}

	// Routine section wins, next heading excluded.
	if !strings.Contains(ex.StatusText, "does not currently accept new NHS patients") {
		t.Errorf("status text = %q", ex.StatusText)
	}
	if strings.Contains(ex.StatusText, "Wheelchair") {
		t.Errorf("status text leaked past next heading: %q", ex.StatusText)
	}
	if !strings.Contains(ex.StatusText, "private appointments") {
		t.Errorf("status text should include sibling list items: %q", ex.StatusText)
	}
}

func TestStatusText_CandidateFallback(t *testing.T) {
	page := `<html><body>
	<h1>Elm Road Dental</h1>
	<p>Find out if this dentist accepts new NHS patients by calling the practice.</p>
	<p>We are currently accepting new NHS patients for routine dental care.</p>
	<p>Opening hours 9-5.</p>
	</body></html>`
	doc := parse(t, page)
	got := StatusText(doc, "fallback page text")
	if !strings.Contains(got, "currently accepting new NHS patients") {
		t.Errorf("expected scored candidate, got %q", got)
	}
}

func TestStatusText_BoilerplatePenalized(t *testing.T) {
	page := `<html><body>
	<p>Find out if this dentist accepts new NHS patients.</p>
	<li>NHS waiting list open for children</li>
	</body></html>`
	doc := parse(t, page)
	got := StatusText(doc, "")
	if strings.Contains(got, "Find out if") {
		t.Errorf("boilerplate should lose to real candidate, got %q", got)
	}
}

func TestStatusText_FullPageFallback(t *testing.T) {
	doc := parse(t, `<html><body><p>A lovely local practice.</p></body></html>`)
	got := StatusText(doc, "whole page text")
	if got != "whole page text" {
		t.Errorf("expected full-page fallback, got %q", got)
	}
}

func TestPage_MissingFieldsAreBlank(t *testing.T) {
	ex, err := Page("<html><body><p>nothing here</p></body></html>", "https://x.example/a", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := ex.Record
	if rec.Name != "" || rec.Phone != "" || rec.Email != "" || rec.Postcode != "" {
		t.Errorf("expected blank fields, got %+v", rec)
	}
}

func TestPage_BadURL(t *testing.T) {
	if _, err := Page("<html></html>", "", time.Now()); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestServices(t *testing.T) {
	got := Services("We offer Invisalign clear aligners, dental implants and a hygienist service.")
	want := map[string]bool{"invisalign": true, "implants": true, "hygiene": true}
	if len(got) != len(want) {
		t.Fatalf("services = %v", got)
	}
	for _, s := range got {
		if !want[s] {
			t.Errorf("unexpected service %q", s)
		}
	}
}
