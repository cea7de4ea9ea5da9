package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guregu/null/v5"

	"pingwatch/internal/models"
	"pingwatch/internal/storage"
)

// Store is an in-process storage.Storer backed by a map.
type Store struct {
	mu      sync.RWMutex
	results map[string]models.Result
}

// New creates an empty Store.
func New() *Store {
	return &Store{results: make(map[string]models.Result)}
}

func (s *Store) Upsert(ctx context.Context, url string, responseTime null.Float, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[url] = models.Result{
		URL:          url,
		ResponseTime: responseTime,
		Timestamp:    models.Truncate(timestamp),
	}
	return nil
}

func (s *Store) Get(ctx context.Context, url string) (*models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[url]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ReadAll(ctx context.Context) ([]models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.Result, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].URL < results[j].URL })
	return results, nil
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.results))
	for url := range s.results {
		keys = append(keys, url)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }
