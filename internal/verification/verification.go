// Package verification implements the Verification Pipeline (§4.6): given a
// saved product, re-derive its field values from independent sources and
// mark fields verified once at least VerifiedAgreementThreshold (two) sources
// agree on a value.
package verification

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/shelfmark/productpipeline/internal/externalservices"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/smartcrawler"
	"github.com/shelfmark/productpipeline/internal/store"
)

// MaxSearchResults caps how many search-derived sources a verification run
// will attempt (§4.6 step 2).
const MaxSearchResults = 5

// VerifiedAgreementThreshold is the minimum number of sources that must
// agree on a value for a field to be marked verified (§4.6 step 6).
const VerifiedAgreementThreshold = 2

// ConflictReport mirrors §4.6's {field, values[], sources} conflict shape.
type ConflictReport struct {
	Field   string
	Values  []interface{}
	Sources []string
}

// Result is verify_product's return shape (§4.6 Contract).
type Result struct {
	ProductID      string
	SourceCount    int
	VerifiedFields []string
	Conflicts      []ConflictReport
	MergedData     models.FieldMap
	Success        bool
	Error          string
}

// SingleSourceExtractor is the slice of *smartcrawler.Crawler this package
// needs, narrowed to a single method so tests can fake it without building
// a real Crawler and its fetch/search/extract collaborators.
type SingleSourceExtractor interface {
	ExtractSingle(ctx context.Context, expectedName string, productType models.ProductTypeEnum, seedURL string) (smartcrawler.SingleResult, error)
}

// Pipeline runs verification against a single Search + SmartCrawler pair.
type Pipeline struct {
	Products store.ProductStore
	Search   externalservices.SearchProvider
	Crawl    SingleSourceExtractor
	log      *logging.Logger
}

// New builds a Pipeline.
func New(products store.ProductStore, search externalservices.SearchProvider, crawl SingleSourceExtractor) *Pipeline {
	return &Pipeline{Products: products, Search: search, Crawl: crawl, log: logging.For("verification")}
}

// VerifyProduct implements verify_product (§4.6).
func (p *Pipeline) VerifyProduct(ctx context.Context, product *models.Product) (Result, error) {
	result := Result{ProductID: product.ID.String()}

	original := product.ToFieldMap()
	query := fmt.Sprintf("%s %s", strOrEmpty(product.Brand), product.Name)

	results, err := p.Search.Search(ctx, query, MaxSearchResults)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	sourceFields := []models.FieldMap{original}
	sourceLabels := []string{"original"}

	for i, r := range results {
		if i >= MaxSearchResults {
			break
		}
		single, extractErr := p.Crawl.ExtractSingle(ctx, product.Name, product.ProductType, r.URL)
		if extractErr != nil {
			p.log.Warn("verification source extraction errored", "url", r.URL, "error", extractErr.Error())
			continue
		}
		if !single.Success {
			p.log.Warn("verification source extraction failed", "url", r.URL)
			continue
		}
		sourceFields = append(sourceFields, single.Data)
		sourceLabels = append(sourceLabels, r.URL)
	}

	merged, verified, conflicts := mergeByMajority(sourceFields, sourceLabels)

	result.SourceCount = len(sourceFields)
	result.VerifiedFields = mergeVerifiedFields(product.VerifiedFields, verified)
	result.Conflicts = conflicts
	result.MergedData = merged
	result.Success = true
	return result, nil
}

// Persist writes source_count and the monotone verified_fields set back
// onto the product (§4.6 step 7: "Never downgrade" — AppendVerifiedFields
// is additive by construction, so re-persisting an already-verified field
// is a no-op rather than a regression).
func (p *Pipeline) Persist(ctx context.Context, exec store.Querier, productID uuid.UUID, result Result) error {
	if err := p.Products.UpdateSourceCount(ctx, exec, productID, result.SourceCount); err != nil {
		return fmt.Errorf("updating source count: %w", err)
	}
	if len(result.VerifiedFields) > 0 {
		if err := p.Products.AppendVerifiedFields(ctx, exec, productID, result.VerifiedFields); err != nil {
			return fmt.Errorf("appending verified fields: %w", err)
		}
	}
	return nil
}

// VerifyProductByID loads productID, runs VerifyProduct, and persists the
// result in one step, so a queue consumer can dispatch on an id alone
// without re-implementing the load/verify/persist sequence itself.
func (p *Pipeline) VerifyProductByID(ctx context.Context, productID uuid.UUID) error {
	product, err := p.Products.GetByID(ctx, nil, productID)
	if err != nil {
		return fmt.Errorf("loading product %s for verification: %w", productID, err)
	}
	result, err := p.VerifyProduct(ctx, product)
	if err != nil {
		return fmt.Errorf("verifying product %s: %w", productID, err)
	}
	if !result.Success {
		return fmt.Errorf("verification of product %s did not succeed: %s", productID, result.Error)
	}
	return p.Persist(ctx, nil, productID, result)
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mergeByMajority implements §4.6 step 5: for each verifiable field, count
// normalized-string occurrences of the original (non-stringified) values
// across sources, keep the most common one, and record a conflict when more
// than one distinct value appears.
func mergeByMajority(sources []models.FieldMap, labels []string) (models.FieldMap, []string, []ConflictReport) {
	merged := models.FieldMap{}
	var verified []string
	var conflicts []ConflictReport

	for _, field := range models.VerifiableFields {
		type vote struct {
			value   interface{}
			sources []string
		}
		votes := map[string]*vote{}
		var order []string

		for i, src := range sources {
			v, ok := src[field]
			if !ok || isBlank(v) {
				continue
			}
			key := normalizeValue(v)
			existing, found := votes[key]
			if !found {
				votes[key] = &vote{value: v, sources: []string{labels[i]}}
				order = append(order, key)
			} else {
				existing.sources = append(existing.sources, labels[i])
			}
		}
		if len(order) == 0 {
			continue
		}

		sort.SliceStable(order, func(i, j int) bool {
			return len(votes[order[i]].sources) > len(votes[order[j]].sources)
		})
		winner := votes[order[0]]
		merged[field] = winner.value

		if len(order) > 1 {
			var values []interface{}
			var allSources []string
			for _, key := range order {
				values = append(values, votes[key].value)
				allSources = append(allSources, votes[key].sources...)
			}
			conflicts = append(conflicts, ConflictReport{Field: field, Values: values, Sources: allSources})
		}

		if len(winner.sources) >= VerifiedAgreementThreshold {
			verified = append(verified, field)
		}
	}

	return merged, verified, conflicts
}

// mergeVerifiedFields appends newly-verified fields onto the existing set
// without ever dropping a previously-verified field (§4.6 step 7).
func mergeVerifiedFields(existing, newlyVerified []string) []string {
	seen := map[string]bool{}
	out := append([]string{}, existing...)
	for _, f := range existing {
		seen[f] = true
	}
	for _, f := range newlyVerified {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func isBlank(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	default:
		return false
	}
}

func normalizeValue(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
