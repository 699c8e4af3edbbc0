// Package errs defines the sentinel errors the pipeline's components
// return across their boundaries (§7 Error handling design). Validation and
// transient-external errors are always returned, never panicked, so callers
// can errors.Is/errors.As against these without parsing message strings.
package errs

import "errors"

var (
	// ErrInvalidProductType is returned by the Product Writer (§4.2 step 1)
	// when the product type is not in the MVP-valid set.
	ErrInvalidProductType = errors.New("invalid product type")

	// ErrBudgetExceeded signals a per-product or per-session ceiling was hit
	// (§4.10). Not treated as a failure: callers fall back to a partial save.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrNameMatchBelowThreshold is returned by SmartCrawler when no
	// candidate URL reaches even the partial-result floor (§4.5 step 4).
	ErrNameMatchBelowThreshold = errors.New("name match score below threshold")

	// ErrScheduleNotDue signals a manual trigger was issued against a
	// schedule that is not currently due and was not forced.
	ErrScheduleNotDue = errors.New("schedule not due")

	// ErrMembersOnly signals the fetched page is behind a members-only /
	// auth wall (§4.11).
	ErrMembersOnly = errors.New("members-only or auth-walled content")

	// ErrExtractionFailed wraps a transient extractor failure (§6, §7).
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrJobCancelled signals a running job observed a cancellation request
	// at a product boundary (§5 Cancellation).
	ErrJobCancelled = errors.New("job cancelled")
)
