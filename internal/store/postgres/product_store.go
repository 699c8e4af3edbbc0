// Package postgres implements every internal/store interface against
// PostgreSQL with jmoiron/sqlx and the jackc/pgx/v5 stdlib driver, following
// the teacher's internal/store/postgres package: one struct per aggregate,
// an exec-or-fall-back-to-db Querier parameter on every method, and
// store.ErrNotFound mapped from sql.ErrNoRows.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type productStorePostgres struct {
	db *sqlx.DB
}

// NewProductStore builds the store.ProductStore backed by db.
func NewProductStore(db *sqlx.DB) store.ProductStore {
	return &productStorePostgres{db: db}
}

func (s *productStorePostgres) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, opts)
}

const productColumns = `id, name, brand_id, product_type, category, style, abv, age_statement,
	volume_ml, price, country, region, description, nose_description, palate_description,
	finish_description, primary_aromas, palate_flavors, finish_flavors, initial_taste,
	mid_palate_evolution, aroma_evolution, finish_evolution, final_notes, color_description,
	color_intensity, clarity, viscosity, mouthfeel, finish_length, food_pairings,
	flavor_intensity, complexity, warmth, dryness, balance, overall_complexity, uniqueness,
	drinkability, distillery, bottler, peat_ppm, peat_level, natural_color, non_chill_filtered,
	cask_strength, single_cask, peated, primary_cask, finishing_cask, wood_type, cask_treatment,
	maturation_notes, indication_age, harvest_year, producer_house, images, ratings, source_url,
	discovery_source, status, completeness_score, ecp_total, ecp_by_group, source_count,
	verified_fields, fingerprint, created_at, updated_at`

func (s *productStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

func (s *productStorePostgres) scanOne(ctx context.Context, exec store.Querier, query string, args ...interface{}) (*models.Product, error) {
	row := &productRow{}
	if err := s.exec(exec).GetContext(ctx, row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return row.toProduct(), nil
}

func (s *productStorePostgres) GetByURL(ctx context.Context, exec store.Querier, url string) (*models.Product, error) {
	return s.scanOne(ctx, exec, `SELECT `+productColumns+` FROM products WHERE source_url = $1`, url)
}

func (s *productStorePostgres) GetByFingerprint(ctx context.Context, exec store.Querier, fingerprint string) (*models.Product, error) {
	return s.scanOne(ctx, exec, `SELECT `+productColumns+` FROM products WHERE fingerprint = $1`, fingerprint)
}

func (s *productStorePostgres) GetByID(ctx context.Context, exec store.Querier, id uuid.UUID) (*models.Product, error) {
	return s.scanOne(ctx, exec, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// FindByNamePrefix narrows the fuzzy-match candidate set to products whose
// name contains the query prefix, case-insensitively (§4.2 step 4c).
func (s *productStorePostgres) FindByNamePrefix(ctx context.Context, exec store.Querier, pt models.ProductTypeEnum, prefix string, limit int) ([]store.ProductNameCandidate, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.exec(exec).QueryContext(ctx, `SELECT id, name FROM products WHERE product_type = $1 AND name ILIKE '%' || $2 || '%' LIMIT $3`, pt, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]store.ProductNameCandidate, 0, limit)
	for rows.Next() {
		var c store.ProductNameCandidate
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *productStorePostgres) ListSkeletons(ctx context.Context, exec store.Querier, limit int) ([]*models.Product, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []productRow
	err := s.exec(exec).SelectContext(ctx, &rows,
		`SELECT `+productColumns+` FROM products WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		models.ProductStatusSkeleton, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Product, len(rows))
	for i := range rows {
		out[i] = rows[i].toProduct()
	}
	return out, nil
}

func (s *productStorePostgres) Create(ctx context.Context, exec store.Querier, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := fromProduct(p)
	query := `INSERT INTO products (` + productColumns + `) VALUES (
		:id, :name, :brand_id, :product_type, :category, :style, :abv, :age_statement,
		:volume_ml, :price, :country, :region, :description, :nose_description, :palate_description,
		:finish_description, :primary_aromas, :palate_flavors, :finish_flavors, :initial_taste,
		:mid_palate_evolution, :aroma_evolution, :finish_evolution, :final_notes, :color_description,
		:color_intensity, :clarity, :viscosity, :mouthfeel, :finish_length, :food_pairings,
		:flavor_intensity, :complexity, :warmth, :dryness, :balance, :overall_complexity, :uniqueness,
		:drinkability, :distillery, :bottler, :peat_ppm, :peat_level, :natural_color, :non_chill_filtered,
		:cask_strength, :single_cask, :peated, :primary_cask, :finishing_cask, :wood_type, :cask_treatment,
		:maturation_notes, :indication_age, :harvest_year, :producer_house, :images, :ratings, :source_url,
		:discovery_source, :status, :completeness_score, :ecp_total, :ecp_by_group, :source_count,
		:verified_fields, :fingerprint, :created_at, :updated_at
	)`
	_, err := s.exec(exec).NamedExecContext(ctx, query, row)
	return err
}

// UpdateEmptyColumns writes patch values with COALESCE so an already
// populated column is never clobbered (§4.2 step 6).
func (s *productStorePostgres) UpdateEmptyColumns(ctx context.Context, exec store.Querier, id uuid.UUID, patch models.FieldMap) error {
	for column, value := range patch {
		if !models.KnownColumnFields[column] || models.ListValuedFields[column] {
			continue
		}
		query := `UPDATE products SET ` + column + ` = COALESCE(` + column + `, $1), updated_at = now() WHERE id = $2`
		if _, err := s.exec(exec).ExecContext(ctx, query, value, id); err != nil {
			return err
		}
	}
	return nil
}

// AppendListFields merges new list values into the stored array without
// introducing duplicates, using Postgres array concatenation plus a
// distinct-dedup pass (§4.2 step 6, §3 Child evidence invariant).
func (s *productStorePostgres) AppendListFields(ctx context.Context, exec store.Querier, id uuid.UUID, lists map[string][]string) error {
	for column, values := range lists {
		if !models.ListValuedFields[column] {
			continue
		}
		query := `UPDATE products SET ` + column + ` = (
			SELECT ARRAY(SELECT DISTINCT unnest(COALESCE(` + column + `, ARRAY[]::text[]) || $1::text[]))
		), updated_at = now() WHERE id = $2`
		if _, err := s.exec(exec).ExecContext(ctx, query, pq.Array(values), id); err != nil {
			return err
		}
	}
	return nil
}

func (s *productStorePostgres) UpdateStatusAndECP(ctx context.Context, exec store.Querier, id uuid.UUID, status models.ProductStatusEnum, completeness decimal.Decimal, ecpTotal decimal.Decimal, ecpByGroup []byte) error {
	_, err := s.exec(exec).ExecContext(ctx, `UPDATE products SET status = $1, completeness_score = $2, ecp_total = $3, ecp_by_group = $4, updated_at = now() WHERE id = $5`,
		status, completeness, ecpTotal, json.RawMessage(ecpByGroup), id)
	return err
}

func (s *productStorePostgres) AppendVerifiedFields(ctx context.Context, exec store.Querier, id uuid.UUID, fields []string) error {
	_, err := s.exec(exec).ExecContext(ctx, `UPDATE products SET verified_fields = (
		SELECT ARRAY(SELECT DISTINCT unnest(COALESCE(verified_fields, ARRAY[]::text[]) || $1::text[]))
	), updated_at = now() WHERE id = $2`, pq.Array(fields), id)
	return err
}

func (s *productStorePostgres) UpdateSourceCount(ctx context.Context, exec store.Querier, id uuid.UUID, count int) error {
	_, err := s.exec(exec).ExecContext(ctx, `UPDATE products SET source_count = $1, updated_at = now() WHERE id = $2`, count, id)
	return err
}

func (s *productStorePostgres) ListAwards(ctx context.Context, exec store.Querier, productID uuid.UUID) ([]models.Award, error) {
	var rows []models.Award
	err := s.exec(exec).SelectContext(ctx, &rows,
		`SELECT id, product_id, competition, year, medal, category, score, created_at FROM awards WHERE product_id = $1`, productID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *productStorePostgres) CreateAward(ctx context.Context, exec store.Querier, a *models.Award) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `INSERT INTO awards (id, product_id, competition, year, medal, category, score) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.ProductID, a.Competition, a.Year, a.Medal, a.Category, a.Score)
	return err
}

func (s *productStorePostgres) CreateRating(ctx context.Context, exec store.Querier, r *models.Rating) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `INSERT INTO ratings (id, product_id, source, score, max_score, reviewer) VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.ProductID, r.Source, r.Score, r.Max, r.Reviewer)
	return err
}

func (s *productStorePostgres) CreateImage(ctx context.Context, exec store.Querier, img *models.Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `INSERT INTO images (id, product_id, url, type_tag) VALUES ($1,$2,$3,$4)`,
		img.ID, img.ProductID, img.URL, img.TypeTag)
	return err
}

func (s *productStorePostgres) CreateProductSource(ctx context.Context, exec store.Querier, ps *models.ProductSource) error {
	if ps.ID == uuid.Nil {
		ps.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `INSERT INTO product_sources (id, product_id, url, source_type) VALUES ($1,$2,$3,$4)`,
		ps.ID, ps.ProductID, ps.URL, ps.SourceType)
	return err
}

func (s *productStorePostgres) CreateProductFieldSource(ctx context.Context, exec store.Querier, pfs *models.ProductFieldSource) error {
	if pfs.ID == uuid.Nil {
		pfs.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `INSERT INTO product_field_sources (id, product_id, url, field_name, confidence) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (product_id, url, field_name) DO UPDATE SET confidence = EXCLUDED.confidence`,
		pfs.ID, pfs.ProductID, pfs.URL, pfs.FieldName, pfs.Confidence)
	return err
}
