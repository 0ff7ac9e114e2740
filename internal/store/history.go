// Package store records completed searches in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopvision/internal/config"
	"shopvision/internal/logger"
	"shopvision/internal/models"
)

// Storage errors.
var (
	ErrStorageDisabled  = errors.New("storage dsn not configured")
	ErrUnsafeIdentifier = errors.New("unsafe schema identifier")
	ErrNilResult        = errors.New("nil aggregation result")
)

const defaultMaxConns = 2

var safeIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// SearchRecord is one row of the searches table.
type SearchRecord struct {
	CreatedAt time.Time
	Mode      string
	UserQuery string
	Queries   []string
	Succeeded []string
	Failed    []string
	Listings  int
	Dropped   int
	LatencyMs int64
}

// ListingRow is one ranked listing belonging to a search.
type ListingRow struct {
	Price       *float64
	Currency    *string
	Rating      *float64
	ReviewCount *int
	Source      string
	Title       string
	Link        string
	Position    int
}

// BuildSearchRecord flattens a result into its searches row.
func BuildSearchRecord(mode, userQuery string, result *models.AggregationResult, at time.Time) SearchRecord {
	rec := SearchRecord{
		CreatedAt: at.UTC(),
		Mode:      mode,
		UserQuery: userQuery,
		Queries:   make([]string, 0, len(result.QueriesUsed)),
		Succeeded: append([]string{}, result.SourcesSucceeded...),
		Failed:    result.FailedSources(),
		Listings:  len(result.Listings),
		Dropped:   result.DroppedListings,
		LatencyMs: result.TotalLatencyMs,
	}

	for _, q := range result.QueriesUsed {
		rec.Queries = append(rec.Queries, q.Text)
	}

	return rec
}

// BuildListingRows converts ranked listings into rows keeping their position.
// Missing fields stay NULL.
func BuildListingRows(listings []models.CanonicalListing) []ListingRow {
	rows := make([]ListingRow, 0, len(listings))

	for i, l := range listings {
		row := ListingRow{
			Position:    i,
			Source:      l.Source,
			Title:       l.Title,
			Link:        l.Link,
			Rating:      l.Rating,
			ReviewCount: l.ReviewCount,
		}

		if l.Price != nil {
			amount := l.Price.Amount
			row.Price = &amount

			if l.Price.Currency != "" {
				currency := l.Price.Currency
				row.Currency = &currency
			}
		}

		rows = append(rows, row)
	}

	return rows
}

// SchemaDDL returns the statements creating the history tables in schema.
func SchemaDDL(schema string) (string, error) {
	if !safeIdent.MatchString(schema) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeIdentifier, schema)
	}

	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS "%[1]s";

CREATE TABLE IF NOT EXISTS "%[1]s".searches (
  id bigserial PRIMARY KEY,
  created_at timestamptz NOT NULL DEFAULT now(),
  mode text NOT NULL,
  user_query text,
  queries text[] NOT NULL,
  sources_succeeded text[] NOT NULL,
  sources_failed text[] NOT NULL,
  listing_count int NOT NULL,
  dropped_count int NOT NULL,
  latency_ms bigint NOT NULL
);

CREATE TABLE IF NOT EXISTS "%[1]s".search_listings (
  search_id bigint NOT NULL REFERENCES "%[1]s".searches(id) ON DELETE CASCADE,
  position int NOT NULL,
  source text NOT NULL,
  title text NOT NULL,
  link text NOT NULL,
  price numeric,
  currency text,
  rating real,
  review_count int,
  PRIMARY KEY (search_id, position)
);

CREATE INDEX IF NOT EXISTS searches_created_idx
  ON "%[1]s".searches (created_at DESC);
`, schema), nil
}

// HistoryStore writes search history through a connection pool.
type HistoryStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
	now    func() time.Time
	schema string
}

// Open connects to the configured database. The caller must Close the store.
func Open(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*HistoryStore, error) {
	if !cfg.Enabled() {
		return nil, ErrStorageDisabled
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	if !safeIdent.MatchString(schema) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeIdentifier, schema)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse storage dsn: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	poolCfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &HistoryStore{
		pool:   pool,
		logger: log.Component("store"),
		now:    time.Now,
		schema: schema,
	}, nil
}

// Close releases the pool.
func (s *HistoryStore) Close() error {
	s.pool.Close()

	return nil
}

// EnsureSchema creates the history tables if they do not exist.
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	ddl, err := SchemaDDL(s.schema)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}

	return nil
}

// Record stores result and its listings in one transaction.
func (s *HistoryStore) Record(ctx context.Context, mode, userQuery string, result *models.AggregationResult) error {
	if result == nil {
		return ErrNilResult
	}

	rec := BuildSearchRecord(mode, userQuery, result, s.now())
	rows := BuildListingRows(result.Listings)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var id int64

	err = tx.QueryRow(ctx,
		`INSERT INTO "`+s.schema+`".searches
		(created_at, mode, user_query, queries, sources_succeeded, sources_failed, listing_count, dropped_count, latency_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		rec.CreatedAt, rec.Mode, rec.UserQuery, rec.Queries, rec.Succeeded, rec.Failed, rec.Listings, rec.Dropped, rec.LatencyMs,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}

	if len(rows) > 0 {
		b := &pgx.Batch{}

		for _, r := range rows {
			b.Queue(
				`INSERT INTO "`+s.schema+`".search_listings
				(search_id, position, source, title, link, price, currency, rating, review_count)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				id, r.Position, r.Source, r.Title, r.Link, r.Price, r.Currency, r.Rating, r.ReviewCount,
			)
		}

		br := tx.SendBatch(ctx, b)

		for range rows {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()

				return fmt.Errorf("failed to insert listing: %w", err)
			}
		}

		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to flush listing batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}

	s.logger.Debug("search recorded", "id", id, "mode", mode, "listings", len(rows))

	return nil
}
