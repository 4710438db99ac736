package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_UpsertPractice(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rec := testPractice("https://www.nhs.uk/services/dentist/smile/x1")

	mock.ExpectExec(`INSERT INTO practices`).
		WithArgs(rec.CanonicalURL, "directory", "nhs", "accepting", "IP1 3QH",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertPractice(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPractice_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM practices WHERE canonical_url = \$1`).
		WithArgs("https://unknown.example/none").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetPractice(context.Background(), "https://unknown.example/none")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPractice_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	record := []byte(`{"source_kind":"directory","canonical_url":"https://www.nhs.uk/services/dentist/a","name":"A Dental","availability":"accepting","availability_note":"Accepting new NHS patients","last_checked":"2026-08-01T12:00:00Z"}`)
	mock.ExpectQuery(`SELECT record FROM practices WHERE canonical_url = \$1`).
		WithArgs("https://www.nhs.uk/services/dentist/a").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(record))

	rec, err := s.GetPractice(context.Background(), "https://www.nhs.uk/services/dentist/a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "A Dental", rec.Name)
	assert.Equal(t, model.AvailabilityAccepting, rec.Availability)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPractices_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	record := []byte(`{"source_kind":"directory","canonical_url":"https://www.nhs.uk/services/dentist/a","name":"A Dental","availability":"accepting","availability_note":"","last_checked":"2026-08-01T12:00:00Z"}`)
	mock.ExpectQuery(`SELECT record FROM practices WHERE true AND source_kind = \$1 ORDER BY canonical_url`).
		WithArgs("directory").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(record))

	recs, err := s.ListPractices(context.Background(), PracticeFilter{SourceKind: model.SourceDirectory})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A Dental", recs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Featured_GetNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT canonical_url, display_name, postcode, contact_email, expires_at`).
		WithArgs("https://unknown.example/none").
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetFeatured(context.Background(), "https://unknown.example/none")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Featured_ListActive(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"canonical_url", "display_name", "postcode", "contact_email", "expires_at"}).
		AddRow("https://www.nhs.uk/services/dentist/live", "Live Dental", "IP1 3QH", "owner@live.example", now.Add(24*time.Hour))
	mock.ExpectQuery(`SELECT canonical_url, display_name, postcode, contact_email, expires_at`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	promos, err := s.ListFeatured(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assert.Equal(t, "Live Dental", promos[0].DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Geocode_RoundTrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs("pc:IP1 3QH", 52.06, 1.15).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT lat, lon FROM geocode_cache WHERE key = \$1`).
		WithArgs("pc:IP1 3QH").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon"}).AddRow(52.06, 1.15))

	require.NoError(t, s.PutGeocode(context.Background(), "pc:IP1 3QH", model.Coordinates{Lat: 52.06, Lon: 1.15}))

	c, err := s.GetGeocode(context.Background(), "pc:IP1 3QH")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.InDelta(t, 1.15, c.Lon, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Geocode_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT lat, lon FROM geocode_cache WHERE key = \$1`).
		WithArgs("oc:ZZ9").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetGeocode(context.Background(), "oc:ZZ9")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}
