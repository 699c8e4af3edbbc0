// Package ecp computes the Enrichment Completion Percentage (§4.3): the
// per-field-group and overall ratio of populated to total fields across a
// product type's configured field groups.
package ecp

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/shelfmark/productpipeline/internal/models"
)

// GroupResult is one field group's completeness (§4.3 calculate_by_group).
type GroupResult struct {
	Populated  int      `json:"populated"`
	Total      int      `json:"total"`
	Percentage float64  `json:"percentage"`
	Missing    []string `json:"missing"`
}

// Result is the full ECP computation: calculate_by_group's map plus the
// weighted total and a last_updated timestamp (§4.3 build_json).
type Result struct {
	Groups      map[string]GroupResult `json:"-"`
	Total       GroupResult            `json:"total"`
	LastUpdated time.Time              `json:"last_updated"`
}

// IsPopulated reports whether a field value counts as populated: not nil,
// not an all-whitespace string, not an empty list/map (§4.3).
func IsPopulated(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return len(trimSpace(t)) > 0
	case []string:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// CalculateByGroup computes completeness per active field group. Inactive
// groups are omitted. Division by zero (an active group with no fields)
// returns a percentage of 0 (§4.3).
func CalculateByGroup(data models.FieldMap, groups []models.FieldGroup) map[string]GroupResult {
	sorted := make([]models.FieldGroup, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortOrder < sorted[j].SortOrder })

	out := map[string]GroupResult{}
	for _, g := range sorted {
		if !g.IsActive {
			continue
		}
		populated := 0
		missing := []string{}
		for _, f := range g.Fields {
			if IsPopulated(data[f]) {
				populated++
			} else {
				missing = append(missing, f)
			}
		}
		pct := 0.0
		if len(g.Fields) > 0 {
			pct = round2(float64(populated) / float64(len(g.Fields)) * 100)
		}
		out[g.Key] = GroupResult{
			Populated:  populated,
			Total:      len(g.Fields),
			Percentage: pct,
			Missing:    missing,
		}
	}
	return out
}

// CalculateTotal computes the weighted total across groups: (sum of
// populated) / (sum of total) x 100, rounded to 2 decimals. Division by
// zero (no active groups at all) returns 0 (§4.3 calculate_total).
func CalculateTotal(perGroup map[string]GroupResult) GroupResult {
	populated, total := 0, 0
	missing := []string{}
	for _, g := range perGroup {
		populated += g.Populated
		total += g.Total
		missing = append(missing, g.Missing...)
	}
	pct := 0.0
	if total > 0 {
		pct = round2(float64(populated) / float64(total) * 100)
	}
	sort.Strings(missing)
	return GroupResult{Populated: populated, Total: total, Percentage: pct, Missing: missing}
}

// BuildJSON produces the combined per-group + total structure, suitable for
// storing in Product.ECPByGroup (§4.3 build_json). now is injected so
// callers control the last_updated clock for deterministic tests.
func BuildJSON(data models.FieldMap, groups []models.FieldGroup, now time.Time) (*Result, json.RawMessage, error) {
	perGroup := CalculateByGroup(data, groups)
	total := CalculateTotal(perGroup)
	result := &Result{Groups: perGroup, Total: total, LastUpdated: now.UTC()}

	payload := map[string]interface{}{
		"total":        total,
		"last_updated": now.UTC().Format(time.RFC3339),
	}
	for k, v := range perGroup {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	return result, raw, nil
}
