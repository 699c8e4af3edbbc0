package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type brandStorePostgres struct {
	db *sqlx.DB
}

// NewBrandStore builds the store.BrandStore backed by db.
func NewBrandStore(db *sqlx.DB) store.BrandStore {
	return &brandStorePostgres{db: db}
}

func (s *brandStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

// FindOrCreate resolves a brand by slug, creating it on first sight (§4.2
// step 5). The insert races under concurrent writers; a unique-slug
// violation falls back to re-reading the row, the same race-loss pattern
// the Product Writer uses on fingerprint collisions.
func (s *brandStorePostgres) FindOrCreate(ctx context.Context, exec store.Querier, slug, name string) (*models.Brand, error) {
	q := s.exec(exec)
	var b models.Brand
	err := q.GetContext(ctx, &b, `SELECT id, slug, name, producer, created_at FROM brands WHERE slug = $1`, slug)
	if err == nil {
		return &b, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	b = models.Brand{ID: uuid.New(), Slug: slug, Name: name}
	_, insertErr := q.ExecContext(ctx, `INSERT INTO brands (id, slug, name) VALUES ($1,$2,$3) ON CONFLICT (slug) DO NOTHING`, b.ID, b.Slug, b.Name)
	if insertErr != nil {
		return nil, insertErr
	}
	if err := q.GetContext(ctx, &b, `SELECT id, slug, name, producer, created_at FROM brands WHERE slug = $1`, slug); err != nil {
		return nil, err
	}
	return &b, nil
}
