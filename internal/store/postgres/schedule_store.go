package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type scheduleStorePostgres struct {
	db *sqlx.DB
}

// NewScheduleStore builds the store.ScheduleStore backed by db.
func NewScheduleStore(db *sqlx.DB) store.ScheduleStore {
	return &scheduleStorePostgres{db: db}
}

func (s *scheduleStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

const scheduleColumns = `id, slug, category, frequency, base_url, product_type, enrich,
	is_active, next_run, last_run, description, total_runs, total_products_found,
	total_products_new, total_products_duplicate, total_products_verified,
	created_at, updated_at`

type scheduleRow struct {
	models.Schedule
	SearchTerms pq.StringArray `db:"search_terms"`
}

// ListDue returns every active schedule whose next_run has elapsed (§4.9
// "check_due_schedules", every 5 minutes).
func (s *scheduleStorePostgres) ListDue(ctx context.Context, exec store.Querier, now time.Time) ([]*models.Schedule, error) {
	var rows []scheduleRow
	query := `SELECT ` + scheduleColumns + `, search_terms FROM schedules
		WHERE is_active = true AND (next_run IS NULL OR next_run <= $1)`
	if err := s.exec(exec).SelectContext(ctx, &rows, query, now); err != nil {
		return nil, err
	}
	out := make([]*models.Schedule, 0, len(rows))
	for i := range rows {
		sch := rows[i].Schedule
		sch.SearchTerms = []string(rows[i].SearchTerms)
		out = append(out, &sch)
	}
	return out, nil
}

func (s *scheduleStorePostgres) GetBySlug(ctx context.Context, exec store.Querier, slug string) (*models.Schedule, error) {
	var row scheduleRow
	err := s.exec(exec).GetContext(ctx, &row, `SELECT `+scheduleColumns+`, search_terms FROM schedules WHERE slug = $1`, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sch := row.Schedule
	sch.SearchTerms = []string(row.SearchTerms)
	return &sch, nil
}

func (s *scheduleStorePostgres) Update(ctx context.Context, exec store.Querier, sch *models.Schedule) error {
	_, err := s.exec(exec).ExecContext(ctx, `
		UPDATE schedules SET category = $1, frequency = $2, base_url = $3, product_type = $4,
			enrich = $5, is_active = $6, next_run = $7, last_run = $8, description = $9,
			search_terms = $10, updated_at = now()
		WHERE id = $11`,
		sch.Category, sch.Frequency, sch.BaseURL, sch.ProductType, sch.Enrich, sch.IsActive,
		sch.NextRun, sch.LastRun, sch.Description, pq.Array(sch.SearchTerms), sch.ID)
	return err
}

// RecordRunStats increments a schedule's aggregate counters and advances
// next_run (§4.9 record_run_stats).
func (s *scheduleStorePostgres) RecordRunStats(ctx context.Context, exec store.Querier, slug string, stats models.RunStats, nextRun *time.Time) error {
	_, err := s.exec(exec).ExecContext(ctx, `
		UPDATE schedules SET
			total_runs = total_runs + 1,
			total_products_found = total_products_found + $1,
			total_products_new = total_products_new + $2,
			total_products_duplicate = total_products_duplicate + $3,
			total_products_verified = total_products_verified + $4,
			last_run = now(),
			next_run = $5,
			updated_at = now()
		WHERE slug = $6`,
		stats.ProductsFound, stats.ProductsNew, stats.ProductsDup, stats.ProductsVerified, nextRun, slug)
	return err
}
