// Package savestate persists crawl progress so a broken run can resume.
// Records are keyed by (site, date, category) and (site, date, category,
// product id); each record is written only by the task that owns it.
package savestate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("save-state not found")

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Store loads and saves category and product states.
type Store interface {
	LoadCategory(ctx context.Context, site, date, category string) (*models.CategoryState, error)
	SaveCategory(ctx context.Context, state *models.CategoryState) error
	LoadProduct(ctx context.Context, site, date, category, productID string) (*models.ProductState, error)
	SaveProduct(ctx context.Context, state *models.ProductState) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	RedisAddr   string
	PostgresURL string
	// TTL bounds how long redis keeps records. Zero keeps them forever.
	TTL time.Duration
}

// Open returns the Store for opts.Backend, checking connectivity where
// the backend is remote.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir)
	case BackendRedis:
		s := NewRedisStore(opts.RedisAddr, opts.TTL)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis %s: %w", opts.RedisAddr, err)
		}
		return s, nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, opts.PostgresURL)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown save-state backend %q", opts.Backend)
	}
}

func validateCategory(s *models.CategoryState) error {
	if s == nil {
		return fmt.Errorf("category state is nil")
	}
	if s.Sitename == "" || s.Date == "" || s.Name == "" {
		return fmt.Errorf("category state needs site, date and name: %+v", *s)
	}
	return nil
}

func validateProduct(s *models.ProductState) error {
	if s == nil {
		return fmt.Errorf("product state is nil")
	}
	if s.Sitename == "" || s.Date == "" || s.ProductID == "" {
		return fmt.Errorf("product state needs site, date and product id: %+v", *s)
	}
	return nil
}
