package smartcrawler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/models"
)

// MaxSources caps how many successful extractions multi-source merge will
// collect before stopping (§4.5 Multi-source extraction).
const MaxSources = 3

// ExtractMultiSource implements extract_product_multi_source (§4.5
// Multi-source extraction): it gathers up to MaxSources successful,
// threshold-passing extractions across candidateURLs and merges them.
func (c *Crawler) ExtractMultiSource(ctx context.Context, expectedName string, productType models.ProductTypeEnum, candidateURLs []string) (MultiResult, error) {
	productKey := domainintel.ProductKey(expectedName)
	result := MultiResult{Data: models.FieldMap{}}

	var accepted []sourcedExtraction

	for _, candidateURL := range candidateURLs {
		if len(accepted) >= MaxSources {
			break
		}
		var dummy SingleResult
		a := c.attemptURL(ctx, productKey, candidateURL, expectedName, productType, &dummy)
		result.ScrapingBeeCalls += dummy.ScrapingBeeCalls
		result.AICalls += dummy.AICalls
		if a.err != nil || a.score < c.Threshold {
			continue
		}
		accepted = append(accepted, sourcedExtraction{url: candidateURL, data: a.data})
	}

	result.SourcesUsed = len(accepted)
	if len(accepted) == 0 {
		return result, nil
	}

	for field := range scalarMergeFields {
		mergeScalar(&result, field, accepted)
	}
	for field := range listMergeFields {
		mergeList(&result, field, accepted)
	}
	// Carry over any field neither list touches (e.g. extractor-specific
	// fields) using first-non-empty-wins, same as the scalar rule.
	seen := map[string]bool{}
	for f := range scalarMergeFields {
		seen[f] = true
	}
	for f := range listMergeFields {
		seen[f] = true
	}
	for _, s := range accepted {
		for field := range s.data {
			if seen[field] {
				continue
			}
			seen[field] = true
			mergeScalar(&result, field, accepted)
		}
	}

	result.NeedsReview = len(result.Conflicts) > 0
	return result, nil
}

// sourcedExtraction pairs one accepted extraction with the URL it came
// from, for merge conflict reporting.
type sourcedExtraction struct {
	url  string
	data models.FieldMap
}

func mergeScalar(result *MultiResult, field string, accepted []sourcedExtraction) {
	var chosen interface{}
	var chosenSource string
	var values []ConflictValue
	for _, s := range accepted {
		v, ok := s.data[field]
		if !ok || isEmptyValue(v) {
			continue
		}
		values = append(values, ConflictValue{Source: s.url, Value: v})
		if chosen == nil {
			chosen = v
			chosenSource = s.url
		}
	}
	if chosen == nil {
		return
	}
	result.Data[field] = chosen
	if len(values) > 1 && !allEqual(values) {
		result.Conflicts = append(result.Conflicts, ConflictRecord{
			Field:  field,
			Values: values,
			Chosen: chosen,
			Reason: fmt.Sprintf("Used value from primary source %s", chosenSource),
		})
	}
}

func mergeList(result *MultiResult, field string, accepted []sourcedExtraction) {
	seenKeys := map[string]bool{}
	var combined []interface{}
	for _, s := range accepted {
		raw, ok := s.data[field]
		if !ok {
			continue
		}
		items, ok := raw.([]interface{})
		if !ok {
			continue
		}
		for _, item := range items {
			key := canonicalKey(item)
			if seenKeys[key] {
				continue
			}
			seenKeys[key] = true
			combined = append(combined, item)
		}
	}
	if len(combined) > 0 {
		result.Data[field] = combined
	}
}

// MergeAward folds a competition-context award into the merged data's
// "awards" list unless an entry with the same {competition, year} already
// exists (§4.8 Competition award merging).
func MergeAward(data models.FieldMap, award map[string]interface{}) {
	existing, _ := data["awards"].([]interface{})
	comp, _ := award["competition"].(string)
	year := award["year"]
	for _, e := range existing {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		if fmt.Sprint(m["competition"]) == comp && fmt.Sprint(m["year"]) == fmt.Sprint(year) {
			return
		}
	}
	data["awards"] = append(existing, award)
}

func canonicalKey(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func isEmptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}

func allEqual(values []ConflictValue) bool {
	for _, v := range values[1:] {
		if canonicalKey(v.Value) != canonicalKey(values[0].Value) {
			return false
		}
	}
	return true
}
