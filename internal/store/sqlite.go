package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS practices (
	canonical_url TEXT PRIMARY KEY,
	source_kind   TEXT NOT NULL,
	practice_type TEXT NOT NULL DEFAULT '',
	availability  TEXT NOT NULL DEFAULT 'unknown',
	postcode      TEXT NOT NULL DEFAULT '',
	record        TEXT NOT NULL,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS featured_promotions (
	canonical_url TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	postcode      TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	expires_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       REAL NOT NULL,
	lon       REAL NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_practices_source_kind ON practices(source_kind);
CREATE INDEX IF NOT EXISTS idx_practices_availability ON practices(availability);
CREATE INDEX IF NOT EXISTS idx_practices_postcode ON practices(postcode);
CREATE INDEX IF NOT EXISTS idx_featured_expires_at ON featured_promotions(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPractice(ctx context.Context, rec *model.PracticeRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal practice")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO practices (canonical_url, source_kind, practice_type, availability, postcode, record, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (canonical_url) DO UPDATE SET
			source_kind = excluded.source_kind,
			practice_type = excluded.practice_type,
			availability = excluded.availability,
			postcode = excluded.postcode,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		rec.CanonicalURL, string(rec.SourceKind), rec.PracticeType,
		string(rec.Availability), rec.Postcode, string(recordJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert practice %s", rec.CanonicalURL)
}

func (s *SQLiteStore) GetPractice(ctx context.Context, canonicalURL string) (*model.PracticeRecord, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM practices WHERE canonical_url = ?`, canonicalURL,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get practice %s", canonicalURL)
	}

	var rec model.PracticeRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal practice")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListPractices(ctx context.Context, filter PracticeFilter) ([]model.PracticeRecord, error) {
	query := `SELECT record FROM practices WHERE 1=1`
	var args []any

	if filter.SourceKind != "" {
		query += ` AND source_kind = ?`
		args = append(args, string(filter.SourceKind))
	}
	if filter.PracticeType != "" {
		query += ` AND practice_type = ?`
		args = append(args, filter.PracticeType)
	}
	if filter.Availability != "" {
		query += ` AND availability = ?`
		args = append(args, string(filter.Availability))
	}
	query += ` ORDER BY canonical_url`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list practices")
	}
	defer rows.Close()

	var recs []model.PracticeRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan practice")
		}
		var rec model.PracticeRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal practice")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list practices iterate")
}

func (s *SQLiteStore) UpsertFeatured(ctx context.Context, p *model.FeaturedPromotion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO featured_promotions (canonical_url, display_name, postcode, contact_email, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (canonical_url) DO UPDATE SET
			display_name = excluded.display_name,
			postcode = excluded.postcode,
			contact_email = excluded.contact_email,
			expires_at = excluded.expires_at`,
		p.CanonicalURL, p.DisplayName, p.Postcode, p.ContactEmail, p.ExpiresAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert featured %s", p.CanonicalURL)
}

func (s *SQLiteStore) GetFeatured(ctx context.Context, canonicalURL string) (*model.FeaturedPromotion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT canonical_url, display_name, postcode, contact_email, expires_at
		 FROM featured_promotions WHERE canonical_url = ?`, canonicalURL,
	)

	var p model.FeaturedPromotion
	err := row.Scan(&p.CanonicalURL, &p.DisplayName, &p.Postcode, &p.ContactEmail, &p.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get featured %s", canonicalURL)
	}
	return &p, nil
}

func (s *SQLiteStore) ListFeatured(ctx context.Context, activeAt time.Time) ([]model.FeaturedPromotion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT canonical_url, display_name, postcode, contact_email, expires_at
		 FROM featured_promotions WHERE expires_at > ? ORDER BY canonical_url`,
		activeAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list featured")
	}
	defer rows.Close()

	var promos []model.FeaturedPromotion
	for rows.Next() {
		var p model.FeaturedPromotion
		if err := rows.Scan(&p.CanonicalURL, &p.DisplayName, &p.Postcode, &p.ContactEmail, &p.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan featured")
		}
		promos = append(promos, p)
	}
	return promos, eris.Wrap(rows.Err(), "sqlite: list featured iterate")
}

func (s *SQLiteStore) GetGeocode(ctx context.Context, key string) (*model.Coordinates, error) {
	var c model.Coordinates
	err := s.db.QueryRowContext(ctx,
		`SELECT lat, lon FROM geocode_cache WHERE key = ?`, key,
	).Scan(&c.Lat, &c.Lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get geocode %s", key)
	}
	return &c, nil
}

func (s *SQLiteStore) PutGeocode(ctx context.Context, key string, c model.Coordinates) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, lat, lon, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, cached_at = excluded.cached_at`,
		key, c.Lat, c.Lon, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put geocode %s", key)
}
