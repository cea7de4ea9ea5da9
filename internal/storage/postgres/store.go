package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pingwatch/internal/models"
	"pingwatch/internal/storage"
)

// PostgresStore implements the storage.Storer interface for PostgreSQL.
// Every operation borrows a connection from the pool and returns it before
// the call completes.
type PostgresStore struct {
	db *pgxpool.Pool
}

// New creates a connection pool and runs migrations to ensure the schema is up to date.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &PostgresStore{db: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Ping checks that a pooled connection can reach the server.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", storage.ErrStoreFault, err)
	}
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	statements := []string{`
	CREATE TABLE IF NOT EXISTS ping_results (
		url           TEXT PRIMARY KEY,
		response_time DOUBLE PRECISION,
		timestamp     TIMESTAMP
	)`,
		// Tables created by earlier deployments capped url at VARCHAR(255).
		`ALTER TABLE ping_results ALTER COLUMN url TYPE TEXT`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Upsert implements the Storer interface.
func (s *PostgresStore) Upsert(ctx context.Context, url string, responseTime null.Float, timestamp time.Time) error {
	query := `
	INSERT INTO ping_results (url, response_time, timestamp)
	VALUES ($1, $2, $3)
	ON CONFLICT (url) DO UPDATE SET
		response_time = EXCLUDED.response_time,
		timestamp     = EXCLUDED.timestamp`
	if _, err := s.db.Exec(ctx, query, url, responseTime, models.Truncate(timestamp)); err != nil {
		return fmt.Errorf("%w: failed to upsert result: %w", storage.ErrStoreFault, err)
	}
	return nil
}

// Get implements the Storer interface.
func (s *PostgresStore) Get(ctx context.Context, url string) (*models.Result, error) {
	query := `SELECT url, response_time, timestamp FROM ping_results WHERE url = $1`
	r, err := scanResult(s.db.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get result: %w", storage.ErrStoreFault, err)
	}
	return &r, nil
}

// ReadAll implements the Storer interface.
func (s *PostgresStore) ReadAll(ctx context.Context) ([]models.Result, error) {
	query := `SELECT url, response_time, timestamp FROM ping_results ORDER BY url`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query results: %w", storage.ErrStoreFault, err)
	}
	defer rows.Close()

	results := []models.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan result: %w", storage.ErrStoreFault, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreFault, err)
	}
	return results, nil
}

// ListKeys implements the Storer interface.
func (s *PostgresStore) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT url FROM ping_results ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list urls: %w", storage.ErrStoreFault, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan urls: %w", storage.ErrStoreFault, err)
	}
	return keys, nil
}

func scanResult(row pgx.Row) (models.Result, error) {
	var r models.Result
	var ts *time.Time
	if err := row.Scan(&r.URL, &r.ResponseTime, &ts); err != nil {
		return r, err
	}
	if ts != nil {
		r.Timestamp = ts.UTC()
	}
	return r, nil
}
