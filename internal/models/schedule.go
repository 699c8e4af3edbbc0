package models

import (
	"time"

	"github.com/google/uuid"
)

// SearchTermEntry is a structured search term, either inline on a Schedule
// (a bare string wrapped with an inferred product type, §4.7) or a stored
// SearchTerm row referenced by the schedule.
type SearchTermEntry struct {
	ID                 *uuid.UUID       `db:"id" json:"id,omitempty"`
	Term               string           `db:"term" json:"term"`
	ProductType        ProductTypeEnum  `db:"product_type" json:"product_type"`
	Category           *string          `db:"category" json:"category,omitempty"`
	Priority           int              `db:"priority" json:"priority"`
	MaxResults         int              `db:"max_results" json:"max_results"`
	SeasonalStartMonth *int             `db:"seasonal_start_month" json:"seasonal_start_month,omitempty"`
	SeasonalEndMonth   *int             `db:"seasonal_end_month" json:"seasonal_end_month,omitempty"`
	SearchCount        int              `db:"search_count" json:"search_count"`
	LastSearched       *time.Time       `db:"last_searched" json:"last_searched,omitempty"`
	ProductsDiscovered int              `db:"products_discovered" json:"products_discovered"`
}

// InSeason reports whether month (1-12) falls within the term's seasonal
// window, inclusive, wrapping across the year boundary (§4.7). A term with
// no configured window is always in season.
func (t SearchTermEntry) InSeason(month int) bool {
	if t.SeasonalStartMonth == nil || t.SeasonalEndMonth == nil {
		return true
	}
	start, end := *t.SeasonalStartMonth, *t.SeasonalEndMonth
	if start <= end {
		return month >= start && month <= end
	}
	// Wraps across year boundary, e.g. Nov(11)-Feb(2).
	return month >= start || month <= end
}

// Schedule is a scheduled workload definition (§3).
type Schedule struct {
	ID          uuid.UUID            `db:"id" json:"id"`
	Slug        string                `db:"slug" json:"slug" validate:"required,slug"`
	Category    ScheduleCategoryEnum  `db:"category" json:"category" validate:"required"`
	Frequency   time.Duration         `db:"frequency" json:"frequency"`
	BaseURL     *string               `db:"base_url" json:"base_url,omitempty"`
	SearchTerms []string              `db:"-" json:"search_terms,omitempty"` // inline terms; structured terms stored separately
	ProductType *ProductTypeEnum      `db:"product_type" json:"product_type,omitempty"`
	Enrich      bool                  `db:"enrich" json:"enrich"`
	IsActive    bool                  `db:"is_active" json:"is_active"`
	NextRun     *time.Time            `db:"next_run" json:"next_run,omitempty"`
	LastRun     *time.Time            `db:"last_run" json:"last_run,omitempty"`
	Description *string               `db:"description" json:"description,omitempty"`

	TotalRuns             int `db:"total_runs" json:"total_runs"`
	TotalProductsFound    int `db:"total_products_found" json:"total_products_found"`
	TotalProductsNew      int `db:"total_products_new" json:"total_products_new"`
	TotalProductsDup      int `db:"total_products_duplicate" json:"total_products_duplicate"`
	TotalProductsVerified int `db:"total_products_verified" json:"total_products_verified"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsDue reports whether the schedule is due for a run (§3 invariant):
// is_active AND (next_run is null OR next_run <= now).
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	return s.NextRun == nil || !s.NextRun.After(now)
}

// RunStats is the per-run increment applied to a Schedule's aggregate
// counters by record_run_stats (§4.9).
type RunStats struct {
	ProductsFound    int
	ProductsNew      int
	ProductsDup      int
	ProductsVerified int
}

// JobCounterDeltas is the per-call increment JobStore.IncrementCounters
// applies to a CrawlJob's running totals (§3 CrawlJob, §4.7/§4.9 "the
// scheduler aggregates counters as work happens"). Every field is additive:
// a zero field leaves the corresponding column untouched.
type JobCounterDeltas struct {
	PagesProcessed    int
	ProductsFound     int
	ProductsNew       int
	ProductsUpdated   int
	ProductsDuplicate int
	ErrorCount        int

	URLsFound   int
	URLsCrawled int
	URLsSkipped int

	SerpAPICallsUsed     int
	ScrapingBeeCallsUsed int
	AICallsUsed          int
}

// CrawlJob is one execution of a schedule's workload (§3).
type CrawlJob struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	ScheduleID *uuid.UUID    `db:"schedule_id" json:"schedule_id,omitempty"`
	Status     JobStatusEnum `db:"status" json:"status"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	PagesProcessed    int `db:"pages_processed" json:"pages_processed"`
	ProductsFound     int `db:"products_found" json:"products_found"`
	ProductsNew       int `db:"products_new" json:"products_new"`
	ProductsUpdated   int `db:"products_updated" json:"products_updated"`
	ProductsDuplicate int `db:"products_duplicate" json:"products_duplicate"`
	ErrorCount        int `db:"error_count" json:"error_count"`

	URLsFound     int `db:"urls_found" json:"urls_found"`
	URLsCrawled   int `db:"urls_crawled" json:"urls_crawled"`
	URLsSkipped   int `db:"urls_skipped" json:"urls_skipped"`

	SerpAPICallsUsed      int `db:"serpapi_calls_used" json:"serpapi_calls_used"`
	ScrapingBeeCallsUsed  int `db:"scrapingbee_calls_used" json:"scrapingbee_calls_used"`
	AICallsUsed           int `db:"ai_calls_used" json:"ai_calls_used"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	cancelRequested bool // checked between product boundaries, §5 Cancellation
}

// RequestCancel flags the job for cooperative cancellation at the next
// product boundary (§5).
func (j *CrawlJob) RequestCancel() { j.cancelRequested = true }

// CancelRequested reports whether a cancellation has been requested.
func (j *CrawlJob) CancelRequested() bool { return j.cancelRequested }

// DiscoveryResult is one row per URL processed in a discovery job (§3).
type DiscoveryResult struct {
	ID         uuid.UUID                 `db:"id" json:"id"`
	JobID      uuid.UUID                 `db:"job_id" json:"job_id"`
	TermID     *uuid.UUID                `db:"term_id" json:"term_id,omitempty"`
	SourceURL  string                    `db:"source_url" json:"source_url"`
	Domain     string                    `db:"domain" json:"domain"`
	Title      string                    `db:"title" json:"title"`
	SearchRank int                       `db:"search_rank" json:"search_rank"`
	ExtractedDataSnapshot []byte          `db:"extracted_data_snapshot" json:"-"`
	Success    bool                      `db:"success" json:"success"`
	MatchScore *float64                  `db:"match_score" json:"match_score,omitempty"`
	NeedsReview bool                     `db:"needs_review" json:"needs_review"`
	Status     DiscoveryResultStatusEnum `db:"status" json:"status"`
	ErrorMessage *string                 `db:"error_message" json:"error_message,omitempty"`
	CreatedAt  time.Time                 `db:"created_at" json:"created_at"`
}
