package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

type crawledSourceStorePostgres struct {
	db *sqlx.DB
}

// NewCrawledSourceStore builds the store.CrawledSourceStore backed by db.
func NewCrawledSourceStore(db *sqlx.DB) store.CrawledSourceStore {
	return &crawledSourceStorePostgres{db: db}
}

func (s *crawledSourceStorePostgres) exec(exec store.Querier) store.Querier {
	if exec == nil {
		return s.db
	}
	return exec
}

const crawledSourceColumns = `url, raw_content, content_hash, title, source_type,
	extraction_status, last_error, created_at, updated_at`

func (s *crawledSourceStorePostgres) GetByURL(ctx context.Context, exec store.Querier, url string) (*models.CrawledSource, error) {
	var c models.CrawledSource
	err := s.exec(exec).GetContext(ctx, &c, `SELECT `+crawledSourceColumns+` FROM crawled_sources WHERE url = $1`, url)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Upsert stores or refreshes the cache row for a URL (§4.5 cache policy:
// re-crawl replaces the cached content and resets extraction status).
func (s *crawledSourceStorePostgres) Upsert(ctx context.Context, exec store.Querier, c *models.CrawledSource) error {
	_, err := s.exec(exec).ExecContext(ctx, `
		INSERT INTO crawled_sources (`+crawledSourceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now(), now())
		ON CONFLICT (url) DO UPDATE SET
			raw_content = EXCLUDED.raw_content,
			content_hash = EXCLUDED.content_hash,
			title = EXCLUDED.title,
			source_type = EXCLUDED.source_type,
			extraction_status = EXCLUDED.extraction_status,
			last_error = EXCLUDED.last_error,
			updated_at = now()`,
		c.URL, c.RawContent, c.ContentHash, c.Title, c.SourceType, c.ExtractionStatus, c.LastError)
	return err
}
