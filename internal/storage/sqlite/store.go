package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	_ "modernc.org/sqlite"

	"pingwatch/internal/models"
	"pingwatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database file and runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection serialises upserts instead of
	// surfacing SQLITE_BUSY to concurrent submitters.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func dsn(name string) string {
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", storage.ErrStoreFault, err)
	}
	return nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS ping_results (
	url           TEXT PRIMARY KEY,
	response_time REAL,
	timestamp     TEXT
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Upsert records the latest probe result for url.
func (s *SQLiteStore) Upsert(ctx context.Context, url string, responseTime null.Float, timestamp time.Time) error {
	query := `
INSERT INTO ping_results (url, response_time, timestamp)
VALUES (?, ?, ?)
ON CONFLICT(url) DO UPDATE SET
	response_time = excluded.response_time,
	timestamp     = excluded.timestamp`
	ts := models.Truncate(timestamp).Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query, url, responseTime, ts); err != nil {
		return fmt.Errorf("%w: failed to upsert result: %w", storage.ErrStoreFault, err)
	}
	return nil
}

// Get retrieves the result stored for url.
func (s *SQLiteStore) Get(ctx context.Context, url string) (*models.Result, error) {
	query := `SELECT url, response_time, timestamp FROM ping_results WHERE url = ?`
	r, err := scanResult(s.db.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get result: %w", storage.ErrStoreFault, err)
	}
	return &r, nil
}

// ReadAll retrieves every result, ordered by url.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]models.Result, error) {
	query := `SELECT url, response_time, timestamp FROM ping_results ORDER BY url`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query results: %w", storage.ErrStoreFault, err)
	}
	defer rows.Close()

	results := []models.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan result row: %w", storage.ErrStoreFault, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreFault, err)
	}
	return results, nil
}

// ListKeys retrieves every stored url.
func (s *SQLiteStore) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM ping_results ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list urls: %w", storage.ErrStoreFault, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("%w: failed to scan url: %w", storage.ErrStoreFault, err)
		}
		keys = append(keys, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreFault, err)
	}
	return keys, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (models.Result, error) {
	var r models.Result
	var ts sql.NullString
	if err := row.Scan(&r.URL, &r.ResponseTime, &ts); err != nil {
		return r, err
	}
	if ts.Valid {
		parsed, err := time.Parse(time.RFC3339, ts.String)
		if err != nil {
			return r, fmt.Errorf("invalid timestamp for %s: %w", r.URL, err)
		}
		r.Timestamp = parsed
	}
	return r, nil
}
