package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS practices (
	canonical_url TEXT PRIMARY KEY,
	source_kind   TEXT NOT NULL,
	practice_type TEXT NOT NULL DEFAULT '',
	availability  TEXT NOT NULL DEFAULT 'unknown',
	postcode      TEXT NOT NULL DEFAULT '',
	record        JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS featured_promotions (
	canonical_url TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL DEFAULT '',
	postcode      TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	expires_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       DOUBLE PRECISION NOT NULL,
	lon       DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_practices_source_kind ON practices(source_kind);
CREATE INDEX IF NOT EXISTS idx_practices_availability ON practices(availability);
CREATE INDEX IF NOT EXISTS idx_practices_postcode ON practices(postcode);
CREATE INDEX IF NOT EXISTS idx_featured_expires_at ON featured_promotions(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertPractice(ctx context.Context, rec *model.PracticeRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal practice")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO practices (canonical_url, source_kind, practice_type, availability, postcode, record, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (canonical_url) DO UPDATE SET
			source_kind = $2, practice_type = $3, availability = $4,
			postcode = $5, record = $6, updated_at = $7`,
		rec.CanonicalURL, string(rec.SourceKind), rec.PracticeType,
		string(rec.Availability), rec.Postcode, recordJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert practice %s", rec.CanonicalURL)
}

func (s *PostgresStore) GetPractice(ctx context.Context, canonicalURL string) (*model.PracticeRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM practices WHERE canonical_url = $1`, canonicalURL,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get practice %s", canonicalURL)
	}

	var rec model.PracticeRecord
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal practice")
	}
	return &rec, nil
}

func (s *PostgresStore) ListPractices(ctx context.Context, filter PracticeFilter) ([]model.PracticeRecord, error) {
	query := `SELECT record FROM practices WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SourceKind != "" {
		query += fmt.Sprintf(` AND source_kind = $%d`, argIdx)
		args = append(args, string(filter.SourceKind))
		argIdx++
	}
	if filter.PracticeType != "" {
		query += fmt.Sprintf(` AND practice_type = $%d`, argIdx)
		args = append(args, filter.PracticeType)
		argIdx++
	}
	if filter.Availability != "" {
		query += fmt.Sprintf(` AND availability = $%d`, argIdx)
		args = append(args, string(filter.Availability))
		argIdx++
	}
	query += ` ORDER BY canonical_url`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list practices")
	}
	defer rows.Close()

	var recs []model.PracticeRecord
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan practice")
		}
		var rec model.PracticeRecord
		if err := json.Unmarshal(recordJSON, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal practice")
		}
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list practices iterate")
}

func (s *PostgresStore) UpsertFeatured(ctx context.Context, p *model.FeaturedPromotion) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO featured_promotions (canonical_url, display_name, postcode, contact_email, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (canonical_url) DO UPDATE SET
			display_name = $2, postcode = $3, contact_email = $4, expires_at = $5`,
		p.CanonicalURL, p.DisplayName, p.Postcode, p.ContactEmail, p.ExpiresAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert featured %s", p.CanonicalURL)
}

func (s *PostgresStore) GetFeatured(ctx context.Context, canonicalURL string) (*model.FeaturedPromotion, error) {
	var p model.FeaturedPromotion
	err := s.pool.QueryRow(ctx,
		`SELECT canonical_url, display_name, postcode, contact_email, expires_at
		 FROM featured_promotions WHERE canonical_url = $1`, canonicalURL,
	).Scan(&p.CanonicalURL, &p.DisplayName, &p.Postcode, &p.ContactEmail, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get featured %s", canonicalURL)
	}
	return &p, nil
}

func (s *PostgresStore) ListFeatured(ctx context.Context, activeAt time.Time) ([]model.FeaturedPromotion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT canonical_url, display_name, postcode, contact_email, expires_at
		 FROM featured_promotions WHERE expires_at > $1 ORDER BY canonical_url`,
		activeAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list featured")
	}
	defer rows.Close()

	var promos []model.FeaturedPromotion
	for rows.Next() {
		var p model.FeaturedPromotion
		if err := rows.Scan(&p.CanonicalURL, &p.DisplayName, &p.Postcode, &p.ContactEmail, &p.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan featured")
		}
		promos = append(promos, p)
	}
	return promos, eris.Wrap(rows.Err(), "postgres: list featured iterate")
}

func (s *PostgresStore) GetGeocode(ctx context.Context, key string) (*model.Coordinates, error) {
	var c model.Coordinates
	err := s.pool.QueryRow(ctx,
		`SELECT lat, lon FROM geocode_cache WHERE key = $1`, key,
	).Scan(&c.Lat, &c.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get geocode %s", key)
	}
	return &c, nil
}

func (s *PostgresStore) PutGeocode(ctx context.Context, key string, c model.Coordinates) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (key, lat, lon, cached_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE SET lat = $2, lon = $3, cached_at = now()`,
		key, c.Lat, c.Lon,
	)
	return eris.Wrapf(err, "postgres: put geocode %s", key)
}
