package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type jobStorePostgres struct {
	db *sqlx.DB
}

// NewJobStore builds the store.JobStore backed by db.
func NewJobStore(db *sqlx.DB) store.JobStore {
	return &jobStorePostgres{db: db}
}

func (s *jobStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

const jobColumns = `id, schedule_id, status, created_at, started_at, completed_at,
	pages_processed, products_found, products_new, products_updated, products_duplicate,
	error_count, urls_found, urls_crawled, urls_skipped, serpapi_calls_used,
	scrapingbee_calls_used, ai_calls_used, error_message`

func (s *jobStorePostgres) Create(ctx context.Context, exec store.Querier, j *models.CrawlJob) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `
		INSERT INTO crawl_jobs (id, schedule_id, status, created_at)
		VALUES ($1,$2,$3, now())`, j.ID, j.ScheduleID, j.Status)
	return err
}

func (s *jobStorePostgres) GetByID(ctx context.Context, exec store.Querier, id uuid.UUID) (*models.CrawlJob, error) {
	var j models.CrawlJob
	err := s.exec(exec).GetContext(ctx, &j, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// UpdateStatus transitions a job's status, stamping started_at/completed_at
// as the transition crosses into running or a terminal state (§3 CrawlJob
// invariant: terminal statuses are irreversible, enforced by the caller).
func (s *jobStorePostgres) UpdateStatus(ctx context.Context, exec store.Querier, id uuid.UUID, status models.JobStatusEnum, errMsg *string) error {
	e := s.exec(exec)
	if status == models.JobStatusRunning {
		_, err := e.ExecContext(ctx, `UPDATE crawl_jobs SET status = $1, started_at = COALESCE(started_at, now()) WHERE id = $2`, status, id)
		return err
	}
	if status.IsTerminal() {
		_, err := e.ExecContext(ctx, `UPDATE crawl_jobs SET status = $1, completed_at = now(), error_message = $2 WHERE id = $3`, status, errMsg, id)
		return err
	}
	_, err := e.ExecContext(ctx, `UPDATE crawl_jobs SET status = $1, error_message = $2 WHERE id = $3`, status, errMsg, id)
	return err
}

func (s *jobStorePostgres) IncrementCounters(ctx context.Context, exec store.Querier, id uuid.UUID, deltas models.JobCounterDeltas) error {
	_, err := s.exec(exec).ExecContext(ctx, `
		UPDATE crawl_jobs SET
			pages_processed = pages_processed + $1,
			products_found = products_found + $2,
			products_new = products_new + $3,
			products_updated = products_updated + $4,
			products_duplicate = products_duplicate + $5,
			error_count = error_count + $6,
			urls_found = urls_found + $7,
			urls_crawled = urls_crawled + $8,
			urls_skipped = urls_skipped + $9,
			serpapi_calls_used = serpapi_calls_used + $10,
			scrapingbee_calls_used = scrapingbee_calls_used + $11,
			ai_calls_used = ai_calls_used + $12
		WHERE id = $13`,
		deltas.PagesProcessed, deltas.ProductsFound, deltas.ProductsNew, deltas.ProductsUpdated,
		deltas.ProductsDuplicate, deltas.ErrorCount, deltas.URLsFound, deltas.URLsCrawled, deltas.URLsSkipped,
		deltas.SerpAPICallsUsed, deltas.ScrapingBeeCallsUsed, deltas.AICallsUsed, id)
	return err
}
