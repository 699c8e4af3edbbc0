package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type discoveryResultStorePostgres struct {
	db *sqlx.DB
}

// NewDiscoveryResultStore builds the store.DiscoveryResultStore backed by db.
func NewDiscoveryResultStore(db *sqlx.DB) store.DiscoveryResultStore {
	return &discoveryResultStorePostgres{db: db}
}

func (s *discoveryResultStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

func (s *discoveryResultStorePostgres) Create(ctx context.Context, exec store.Querier, r *models.DiscoveryResult) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.exec(exec).ExecContext(ctx, `
		INSERT INTO discovery_results (id, job_id, term_id, source_url, domain, title,
			search_rank, extracted_data_snapshot, success, match_score, needs_review,
			status, error_message, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())`,
		r.ID, r.JobID, r.TermID, r.SourceURL, r.Domain, r.Title, r.SearchRank,
		r.ExtractedDataSnapshot, r.Success, r.MatchScore, r.NeedsReview, r.Status, r.ErrorMessage)
	return err
}

func (s *discoveryResultStorePostgres) UpdateStatus(ctx context.Context, exec store.Querier, id uuid.UUID, status models.DiscoveryResultStatusEnum, errMsg *string) error {
	_, err := s.exec(exec).ExecContext(ctx, `UPDATE discovery_results SET status = $1, error_message = $2 WHERE id = $3`, status, errMsg, id)
	return err
}
