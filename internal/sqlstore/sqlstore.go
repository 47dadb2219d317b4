// Package sqlstore archives crawled records in a SQLite database. Rows are
// keyed by product id and never overwritten.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"shopcrawl/internal/model"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS products (
    id            TEXT PRIMARY KEY,
    family        TEXT NOT NULL,
    run_id        TEXT NOT NULL,
    name          TEXT NOT NULL,
    slug          TEXT NOT NULL,
    price         REAL NOT NULL,
    listed_price  REAL NOT NULL,
    category_slug TEXT NOT NULL,
    brand_slug    TEXT NOT NULL,
    doc           TEXT NOT NULL,
    created_at    INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_products_family ON products(family)`,
}

// Row is one archived product.
type Row struct {
	ID           string  `db:"id"`
	Family       string  `db:"family"`
	RunID        string  `db:"run_id"`
	Name         string  `db:"name"`
	Slug         string  `db:"slug"`
	Price        float64 `db:"price"`
	ListedPrice  float64 `db:"listed_price"`
	CategorySlug string  `db:"category_slug"`
	BrandSlug    string  `db:"brand_slug"`
	Doc          string  `db:"doc"`
	CreatedAt    int64   `db:"created_at"`
}

type Store struct {
	DB *sqlx.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// InsertIgnore archives recs in one transaction and reports how many ids
// were new.
func (s *Store) InsertIgnore(ctx context.Context, family, runID string, createdAt int64, recs []model.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
        INSERT OR IGNORE INTO products (
            id, family, run_id, name, slug, price, listed_price,
            category_slug, brand_slug, doc, created_at
        )
        VALUES (
            :id, :family, :run_id, :name, :slug, :price, :listed_price,
            :category_slug, :brand_slug, :doc, :created_at
        )
    `
	inserted := 0
	for _, r := range recs {
		doc, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("marshal %s: %w", r.ID, err)
		}
		res, err := tx.NamedExecContext(ctx, query, Row{
			ID:           r.ID,
			Family:       family,
			RunID:        runID,
			Name:         r.Name,
			Slug:         r.Slug,
			Price:        r.Price,
			ListedPrice:  r.ListedPrice,
			CategorySlug: r.CategorySlug,
			BrandSlug:    r.BrandSlug,
			Doc:          string(doc),
			CreatedAt:    createdAt,
		})
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", r.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Count returns the number of archived rows for family, or for all
// families when family is empty.
func (s *Store) Count(ctx context.Context, family string) (int, error) {
	var n int
	var err error
	if family == "" {
		err = s.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`)
	} else {
		err = s.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM products WHERE family = ?`, family)
	}
	return n, err
}

// FindByID returns nil when id is not archived.
func (s *Store) FindByID(ctx context.Context, id string) (*Row, error) {
	var row Row
	err := s.DB.GetContext(ctx, &row, `SELECT * FROM products WHERE id = ? LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
