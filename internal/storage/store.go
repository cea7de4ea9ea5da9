package storage

import (
	"context"
	"errors"
	"time"

	"github.com/guregu/null/v5"

	"pingwatch/internal/models"
)

var (
	// ErrStoreFault wraps every failure of the underlying storage engine.
	ErrStoreFault = errors.New("store fault")
	// ErrNotFound is returned when no result exists for a url
	ErrNotFound = errors.New("not found")
)

// Storer defines the persistence contract for ping results: one row per url,
// written only through Upsert.
type Storer interface {
	// Upsert inserts the result for url, or overwrites response time and
	// timestamp of the existing row in a single atomic statement.
	Upsert(ctx context.Context, url string, responseTime null.Float, timestamp time.Time) error
	// Get returns the result stored for url.
	Get(ctx context.Context, url string) (*models.Result, error)
	// ReadAll returns every stored result.
	ReadAll(ctx context.Context) ([]models.Result, error)
	// ListKeys returns every stored url. The keys are fully materialised
	// before returning, so no cursor is held while callers work through them.
	ListKeys(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
