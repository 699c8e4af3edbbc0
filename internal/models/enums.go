// Package models holds the persisted entities of the discovery and
// enrichment pipeline: products and their child evidence, the crawled-page
// cache, schedules, jobs, discovery results, and the quality-gate
// configuration consulted by internal/qualitygate and internal/ecp.
package models

// ProductTypeEnum is the closed set of product types the pipeline accepts.
// @enum string
// @example whiskey
type ProductTypeEnum string

const (
	ProductTypeWhiskey  ProductTypeEnum = "whiskey"   // @enum whiskey
	ProductTypePortWine ProductTypeEnum = "port_wine" // @enum port_wine
)

// IsValid reports whether t is in the MVP-valid product type set.
func (t ProductTypeEnum) IsValid() bool {
	switch t {
	case ProductTypeWhiskey, ProductTypePortWine:
		return true
	default:
		return false
	}
}

// ProductStatusEnum is the quality ladder a product is classified on.
// The zero value is intentionally not a valid status; every product gets
// an explicit classification from internal/qualitygate.
// @enum string
// @example skeleton
type ProductStatusEnum string

const (
	ProductStatusRejected ProductStatusEnum = "rejected" // @enum rejected
	ProductStatusSkeleton ProductStatusEnum = "skeleton" // @enum skeleton
	ProductStatusPartial  ProductStatusEnum = "partial"  // @enum partial
	ProductStatusBaseline ProductStatusEnum = "baseline" // @enum baseline
	ProductStatusEnriched ProductStatusEnum = "enriched" // @enum enriched
	ProductStatusComplete ProductStatusEnum = "complete" // @enum complete
)

// rung returns the status's position on the ladder for ordering comparisons.
func (s ProductStatusEnum) rung() int {
	switch s {
	case ProductStatusRejected:
		return 0
	case ProductStatusSkeleton:
		return 1
	case ProductStatusPartial:
		return 2
	case ProductStatusBaseline:
		return 3
	case ProductStatusEnriched:
		return 4
	case ProductStatusComplete:
		return 5
	default:
		return -1
	}
}

// Less reports whether s is strictly below other on the ladder.
func (s ProductStatusEnum) Less(other ProductStatusEnum) bool { return s.rung() < other.rung() }

// AtLeast reports whether s is at or above other on the ladder.
func (s ProductStatusEnum) AtLeast(other ProductStatusEnum) bool { return s.rung() >= other.rung() }

// Max returns whichever of s and other is higher on the ladder. Used to
// enforce the monotone-non-decreasing status invariant (§3) on re-runs.
func (s ProductStatusEnum) Max(other ProductStatusEnum) ProductStatusEnum {
	if other.rung() > s.rung() {
		return other
	}
	return s
}

// DiscoverySourceEnum tags where a product was first seen.
type DiscoverySourceEnum string

const (
	DiscoverySourceSearch      DiscoverySourceEnum = "search"
	DiscoverySourceCompetition DiscoverySourceEnum = "competition"
	DiscoverySourceListPage    DiscoverySourceEnum = "list_page"
	DiscoverySourceManual      DiscoverySourceEnum = "manual"
)

// SourceTypeEnum classifies the domain a piece of content was crawled from.
type SourceTypeEnum string

const (
	SourceTypeOfficialBrand SourceTypeEnum = "official_brand"
	SourceTypeRetailer      SourceTypeEnum = "retailer"
	SourceTypeReview        SourceTypeEnum = "review"
	SourceTypeCompetition   SourceTypeEnum = "competition"
	SourceTypeOther         SourceTypeEnum = "other"
)

// ExtractionStatusEnum is the lifecycle of a CrawledSource cache row.
type ExtractionStatusEnum string

const (
	ExtractionStatusPending     ExtractionStatusEnum = "pending"
	ExtractionStatusProcessed   ExtractionStatusEnum = "processed"
	ExtractionStatusNeedsReview ExtractionStatusEnum = "needs_review"
	ExtractionStatusFailed      ExtractionStatusEnum = "failed"
)

// ScheduleCategoryEnum routes a Schedule to the matching queue (§4.9, §5).
type ScheduleCategoryEnum string

const (
	ScheduleCategoryDiscovery     ScheduleCategoryEnum = "discovery"
	ScheduleCategoryCompetition   ScheduleCategoryEnum = "competition"
	ScheduleCategorySingleProduct ScheduleCategoryEnum = "single_product"
)

// Queue returns the named queue (§5) a schedule of this category dispatches to.
func (c ScheduleCategoryEnum) Queue() string {
	switch c {
	case ScheduleCategoryDiscovery, ScheduleCategorySingleProduct:
		return "discovery"
	case ScheduleCategoryCompetition:
		return "crawl"
	default:
		return "default"
	}
}

// JobStatusEnum is the lifecycle of a CrawlJob.
type JobStatusEnum string

const (
	JobStatusPending   JobStatusEnum = "pending"
	JobStatusRunning   JobStatusEnum = "running"
	JobStatusCompleted JobStatusEnum = "completed"
	JobStatusFailed    JobStatusEnum = "failed"
	JobStatusCancelled JobStatusEnum = "cancelled"
)

// IsTerminal reports whether the status is irreversible (§3 CrawlJob invariant).
func (s JobStatusEnum) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// DiscoveryResultStatusEnum is the per-URL outcome within a discovery job.
type DiscoveryResultStatusEnum string

const (
	DiscoveryResultProcessing DiscoveryResultStatusEnum = "processing"
	DiscoveryResultSuccess    DiscoveryResultStatusEnum = "success"
	DiscoveryResultDuplicate  DiscoveryResultStatusEnum = "duplicate"
	DiscoveryResultFailed     DiscoveryResultStatusEnum = "failed"
)

// URLClassEnum is the outcome of the discovery URL classifier (§4.7).
type URLClassEnum string

const (
	URLClassSkip        URLClassEnum = "skip"
	URLClassCompetition URLClassEnum = "competition"
	URLClassList        URLClassEnum = "list"
	URLClassProduct     URLClassEnum = "product"
)
