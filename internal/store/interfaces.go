// Package store defines the storage-facing interfaces every domain service
// depends on. Concrete implementations live in internal/store/postgres
// (sqlx/pgx). internal/store/cached is a process-scoped cache for field
// groups and the Quality Gate configuration; it implements none of these
// interfaces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/models"
)

// ErrNotFound is returned by Get-by-identity store methods when no row
// matches (teacher's internal/store's sentinel, mapped from sql.ErrNoRows).
var ErrNotFound = errors.New("not found")

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, letting every store
// method accept either a bare connection or an in-flight transaction
// (teacher's internal/store/interfaces.go Querier pattern).
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Transactor starts transactions scoped to a single atomic write (§4.2
// Concurrency: "the entire write must be atomic per product").
type Transactor interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// PaginatedResult wraps a page of rows with the total matching count, used
// by list endpoints across every store.
type PaginatedResult[T any] struct {
	Items      []T
	TotalCount int64
}

// ProductNameCandidate is the minimal projection FindByNamePrefix
// returns for fuzzy-name dedup (§4.2 step 4c).
type ProductNameCandidate struct {
	ID   uuid.UUID
	Name string
}

// ProductStore is the sole persistence surface the Product Writer touches
// (§4.2 "the only path that creates or updates a Product").
type ProductStore interface {
	Transactor

	GetByURL(ctx context.Context, exec Querier, url string) (*models.Product, error)
	GetByFingerprint(ctx context.Context, exec Querier, fingerprint string) (*models.Product, error)
	GetByID(ctx context.Context, exec Querier, id uuid.UUID) (*models.Product, error)
	FindByNamePrefix(ctx context.Context, exec Querier, productType models.ProductTypeEnum, prefix string, limit int) ([]ProductNameCandidate, error)
	// ListSkeletons returns the oldest skeleton-status products, used by
	// enrich_skeletons (§4.9) to pick the next batch to enrich.
	ListSkeletons(ctx context.Context, exec Querier, limit int) ([]*models.Product, error)

	Create(ctx context.Context, exec Querier, p *models.Product) error
	// UpdateEmptyColumns writes values from patch into columns that are
	// currently null/zero on the stored row, leaving populated columns
	// untouched (§4.2 step 6 "update only empty columns").
	UpdateEmptyColumns(ctx context.Context, exec Querier, id uuid.UUID, patch models.FieldMap) error
	// AppendListFields appends values to list-valued columns without
	// introducing duplicates (§4.2 step 6, §3 Child evidence invariant).
	AppendListFields(ctx context.Context, exec Querier, id uuid.UUID, lists map[string][]string) error
	UpdateStatusAndECP(ctx context.Context, exec Querier, id uuid.UUID, status models.ProductStatusEnum, completeness decimal.Decimal, ecpTotal decimal.Decimal, ecpByGroup []byte) error
	AppendVerifiedFields(ctx context.Context, exec Querier, id uuid.UUID, fields []string) error
	UpdateSourceCount(ctx context.Context, exec Querier, id uuid.UUID, count int) error

	// ListAwards returns every award row recorded for a product, used by the
	// Competition Orchestrator's {competition, year} dedup check (§4.8).
	ListAwards(ctx context.Context, exec Querier, productID uuid.UUID) ([]models.Award, error)
	CreateAward(ctx context.Context, exec Querier, a *models.Award) error
	CreateRating(ctx context.Context, exec Querier, r *models.Rating) error
	CreateImage(ctx context.Context, exec Querier, img *models.Image) error
	CreateProductSource(ctx context.Context, exec Querier, ps *models.ProductSource) error
	CreateProductFieldSource(ctx context.Context, exec Querier, pfs *models.ProductFieldSource) error
}

// BrandStore resolves and creates brands on demand (§4.2 step 5).
type BrandStore interface {
	FindOrCreate(ctx context.Context, exec Querier, slug, name string) (*models.Brand, error)
}

// CrawledSourceStore is the per-URL content cache (§3 CrawledSource, §4.5).
type CrawledSourceStore interface {
	GetByURL(ctx context.Context, exec Querier, url string) (*models.CrawledSource, error)
	Upsert(ctx context.Context, exec Querier, c *models.CrawledSource) error
}

// ScheduleStore persists Schedule entities (§3, §4.9).
type ScheduleStore interface {
	ListDue(ctx context.Context, exec Querier, now time.Time) ([]*models.Schedule, error)
	GetBySlug(ctx context.Context, exec Querier, slug string) (*models.Schedule, error)
	Update(ctx context.Context, exec Querier, s *models.Schedule) error
	RecordRunStats(ctx context.Context, exec Querier, slug string, stats models.RunStats, nextRun *time.Time) error
}

// JobStore persists CrawlJob entities (§3).
type JobStore interface {
	Create(ctx context.Context, exec Querier, j *models.CrawlJob) error
	GetByID(ctx context.Context, exec Querier, id uuid.UUID) (*models.CrawlJob, error)
	UpdateStatus(ctx context.Context, exec Querier, id uuid.UUID, status models.JobStatusEnum, errMsg *string) error
	IncrementCounters(ctx context.Context, exec Querier, id uuid.UUID, deltas models.JobCounterDeltas) error
}

// DiscoveryResultStore persists one row per URL processed within a job (§3).
type DiscoveryResultStore interface {
	Create(ctx context.Context, exec Querier, r *models.DiscoveryResult) error
	UpdateStatus(ctx context.Context, exec Querier, id uuid.UUID, status models.DiscoveryResultStatusEnum, errMsg *string) error
}

// QualityGateConfigStore loads admin-mutable configuration (§3
// QualityGateConfig, FieldGroup, ProductTypeConfig).
type QualityGateConfigStore interface {
	Load(ctx context.Context, exec Querier) (*models.QualityGateConfig, error)
}
