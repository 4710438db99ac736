package main

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miriamhowe1992-eng/smilemap/internal/crawler"
	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

const practicePage = `<html><body>
<h1>Riverside Dental Care</h1>
<div data-test="address">12 Quay Street, Ipswich IP4 1BZ</div>
<div data-test="telephone">01473 222333</div>
<h2>Routine dental care</h2>
<p>This dentist is currently accepting new NHS patients.</p>
</body></html>`

func TestBuildSnapshot(t *testing.T) {
	runAt := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)

	results := []crawler.Result{
		{
			Seed: model.Seed{URL: "https://www.nhs.uk/services/dentist/riverside/X123"},
			HTML: practicePage,
		},
		{
			Seed:     model.Seed{URL: "https://www.nhs.uk/services/dentist/unreachable/X999"},
			Attempts: 3,
			Err:      eris.New("connect timeout"),
		},
	}

	snap, skipped, err := buildSnapshot(results, runAt)
	require.NoError(t, err)

	require.Equal(t, 1, snap.Total)
	rec := snap.Items[0]
	assert.Equal(t, "https://www.nhs.uk/services/dentist/riverside/x123", rec.CanonicalURL)
	assert.Equal(t, "Riverside Dental Care", rec.Name)
	assert.Equal(t, "IP4 1BZ", rec.Postcode)
	assert.Equal(t, model.AvailabilityAccepting, rec.Availability)
	assert.Equal(t, runAt, snap.GeneratedAt)

	assert.True(t, skipped["https://www.nhs.uk/services/dentist/unreachable/x999"])
}

func TestBuildSnapshot_SeedCarryForward(t *testing.T) {
	runAt := time.Now().UTC()

	// A near-empty page falls back to the index entry for name and address.
	results := []crawler.Result{
		{
			Seed: model.Seed{
				URL:     "https://www.nhs.uk/services/dentist/bare/X555",
				Name:    "Bare Minimum Dental",
				Address: "7 Mill Lane, Norwich NR2 1AA",
			},
			HTML: `<html><body><p>Nothing here.</p></body></html>`,
		},
	}

	snap, skipped, err := buildSnapshot(results, runAt)
	require.NoError(t, err)
	require.Empty(t, skipped)
	require.Equal(t, 1, snap.Total)

	rec := snap.Items[0]
	assert.Equal(t, "Bare Minimum Dental", rec.Name)
	assert.Equal(t, "7 Mill Lane, Norwich NR2 1AA", rec.AddressText)
	assert.Equal(t, "NR2 1AA", rec.Postcode)
	assert.Equal(t, model.AvailabilityUnknown, rec.Availability)
}

func TestBuildSnapshot_SortedByURL(t *testing.T) {
	runAt := time.Now().UTC()

	results := []crawler.Result{
		{Seed: model.Seed{URL: "https://www.nhs.uk/services/dentist/zeta/Z1"}, HTML: practicePage},
		{Seed: model.Seed{URL: "https://www.nhs.uk/services/dentist/alpha/A1"}, HTML: practicePage},
	}

	snap, _, err := buildSnapshot(results, runAt)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Total)
	assert.Less(t, snap.Items[0].CanonicalURL, snap.Items[1].CanonicalURL)
}
