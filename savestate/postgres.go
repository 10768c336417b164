package savestate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS category_states (
	sitename   TEXT NOT NULL,
	date       TEXT NOT NULL,
	name       TEXT NOT NULL,
	pageno     INTEGER NOT NULL DEFAULT 1,
	done       BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (sitename, date, name)
);
CREATE TABLE IF NOT EXISTS product_states (
	sitename      TEXT NOT NULL,
	date          TEXT NOT NULL,
	category_name TEXT NOT NULL,
	productid     TEXT NOT NULL,
	done          BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (sitename, date, category_name, productid)
);`

// PostgresStore keeps records in two upserted tables.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore opens a pool and verifies the connection.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the state tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create save-state schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadCategory(ctx context.Context, site, date, category string) (*models.CategoryState, error) {
	state := models.CategoryState{Sitename: site, Date: date, Name: category}
	err := s.db.QueryRow(ctx,
		`SELECT pageno, done FROM category_states WHERE sitename = $1 AND date = $2 AND name = $3`,
		site, date, category,
	).Scan(&state.PageNo, &state.Done)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load category state %s/%s: %w", site, category, err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveCategory(ctx context.Context, state *models.CategoryState) error {
	if err := validateCategory(state); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO category_states (sitename, date, name, pageno, done, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (sitename, date, name) DO UPDATE SET
			pageno = EXCLUDED.pageno,
			done = EXCLUDED.done,
			updated_at = NOW()`,
		state.Sitename, state.Date, state.Name, state.PageNo, state.Done,
	)
	if err != nil {
		return fmt.Errorf("save category state %s/%s: %w", state.Sitename, state.Name, err)
	}
	return nil
}

func (s *PostgresStore) LoadProduct(ctx context.Context, site, date, category, productID string) (*models.ProductState, error) {
	state := models.ProductState{Sitename: site, Date: date, CategoryName: category, ProductID: productID}
	err := s.db.QueryRow(ctx,
		`SELECT done FROM product_states
		 WHERE sitename = $1 AND date = $2 AND category_name = $3 AND productid = $4`,
		site, date, category, productID,
	).Scan(&state.Done)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product state %s/%s: %w", site, productID, err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveProduct(ctx context.Context, state *models.ProductState) error {
	if err := validateProduct(state); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO product_states (sitename, date, category_name, productid, done, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (sitename, date, category_name, productid) DO UPDATE SET
			done = EXCLUDED.done,
			updated_at = NOW()`,
		state.Sitename, state.Date, state.CategoryName, state.ProductID, state.Done,
	)
	if err != nil {
		return fmt.Errorf("save product state %s/%s: %w", state.Sitename, state.ProductID, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
