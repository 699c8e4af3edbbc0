package discovery

import (
	"strings"

	"github.com/shelfmark/productpipeline/internal/models"
)

const defaultMaxResultsPerTerm = 10

// MaxTermsPerRun caps the number of search terms a single discovery run
// processes (§4.7 "cap at 20 terms by default").
const MaxTermsPerRun = 20

// whiskeyTokens/portTokens are substring matches against a raw search term
// used to infer a product type for bare, unstructured schedule terms
// (§4.7 "infer product type").
var whiskeyTokens = []string{"whisky", "whiskey", "scotch", "bourbon", "rye"}
var portTokens = []string{"port", "wine"}

// InferProductType implements §4.7's inline-term product-type inference.
func InferProductType(term string) models.ProductTypeEnum {
	lower := strings.ToLower(term)
	for _, tok := range whiskeyTokens {
		if strings.Contains(lower, tok) {
			return models.ProductTypeWhiskey
		}
	}
	for _, tok := range portTokens {
		if strings.Contains(lower, tok) {
			return models.ProductTypePortWine
		}
	}
	// "spirits" (or any other unmatched term) is coerced to whiskey when
	// the writer is invoked (§4.7).
	return models.ProductTypeWhiskey
}

// BuildInlineTerms wraps a schedule's bare search_terms strings into
// structured entries (§4.7 "wrap each into a lightweight structured term").
func BuildInlineTerms(rawTerms []string) []models.SearchTermEntry {
	entries := make([]models.SearchTermEntry, 0, len(rawTerms))
	for i, term := range rawTerms {
		entries = append(entries, models.SearchTermEntry{
			Term:        term,
			ProductType: InferProductType(term),
			Priority:    len(rawTerms) - i,
			MaxResults:  defaultMaxResultsPerTerm,
		})
	}
	return entries
}

// SelectTerms orders entries by priority descending and caps at
// MaxTermsPerRun (§4.7).
func SelectTerms(entries []models.SearchTermEntry) []models.SearchTermEntry {
	sorted := append([]models.SearchTermEntry{}, entries...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Priority > sorted[j-1].Priority; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > MaxTermsPerRun {
		sorted = sorted[:MaxTermsPerRun]
	}
	return sorted
}
