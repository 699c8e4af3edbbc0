// Package normalizer flattens heterogeneous extractor payloads into the
// flat field map every downstream component operates on (§4.1 Normalizer).
//
// It knows nothing about storage or any other component (§9 "Lazy imports
// for cycle breaking disappear under a clean dependency graph: Normalizer
// knows nothing of storage").
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalRe = regexp.MustCompile(`\d+(\.\d+)?`)
	integerRe = regexp.MustCompile(`\d+`)
	currencyStripRe = regexp.MustCompile(`[^\d.]`)
)

// Normalize flattens an arbitrary extractor payload into a flat field map.
// Unknown keys are passed through untouched. Keys already present at the
// top level are never overwritten by a nested value ("first writer wins",
// §4.1 Contract).
func Normalize(input map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range input {
		out[k] = v
	}

	flattenTastingNotes(out)
	flattenTastingEvolution(out)
	flattenAppearance(out)
	flattenRatings(out)
	flattenProduction(out)
	flattenLegacyEnrichment(out)

	foldScalarIntoList(out, "image_url", "images")
	foldScalarIntoList(out, "rating", "ratings")
	foldScalarIntoList(out, "score", "ratings")

	normalizeFoodPairings(out)

	coerceABV(out)
	coerceAge(out)
	coerceVolume(out)
	coercePrice(out)

	return out
}

// setFirst writes value into out[key] only if key is not already present
// (first writer wins, §4.1).
func setFirst(out map[string]interface{}, key string, value interface{}) {
	if value == nil {
		return
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return
	}
	if _, exists := out[key]; exists {
		return
	}
	out[key] = value
}

func nestedMap(out map[string]interface{}, key string) (map[string]interface{}, bool) {
	raw, ok := out[key]
	if !ok {
		return nil, false
	}
	m, ok := raw.(map[string]interface{})
	return m, ok
}

func flattenTastingNotes(out map[string]interface{}) {
	nested, ok := nestedMap(out, "tasting_notes")
	if !ok {
		return
	}
	setFirst(out, "nose_description", nested["nose"])
	setFirst(out, "primary_aromas", nested["nose_aromas"])
	setFirst(out, "palate_description", nested["palate"])
	setFirst(out, "palate_flavors", nested["palate_flavors"])
	setFirst(out, "finish_description", nested["finish"])
	setFirst(out, "finish_flavors", nested["finish_flavors"])
	// flavor_tags also maps to palate_flavors.
	if out["palate_flavors"] == nil {
		setFirst(out, "palate_flavors", nested["flavor_tags"])
	}
	// overall maps to nose_description.
	if out["nose_description"] == nil {
		setFirst(out, "nose_description", nested["overall"])
	}
}

func flattenTastingEvolution(out map[string]interface{}) {
	nested, ok := nestedMap(out, "tasting_evolution")
	if !ok {
		return
	}
	setFirst(out, "initial_taste", nested["initial_taste"])
	setFirst(out, "mid_palate_evolution", nested["mid_palate_evolution"])
	setFirst(out, "aroma_evolution", nested["aroma_evolution"])
	setFirst(out, "finish_evolution", nested["finish_evolution"])
	setFirst(out, "final_notes", nested["final_notes"])
}

func flattenAppearance(out map[string]interface{}) {
	nested, ok := nestedMap(out, "appearance")
	if !ok {
		return
	}
	setFirst(out, "color_description", nested["color_description"])
	setFirst(out, "color_intensity", nested["color_intensity"])
	setFirst(out, "clarity", nested["clarity"])
	setFirst(out, "viscosity", nested["viscosity"])
}

func flattenRatings(out map[string]interface{}) {
	nested, ok := nestedMap(out, "ratings")
	if !ok {
		return
	}
	for _, f := range []string{
		"flavor_intensity", "complexity", "warmth", "dryness", "balance",
		"overall_complexity", "uniqueness", "drinkability",
	} {
		setFirst(out, f, nested[f])
	}
}

func flattenProduction(out map[string]interface{}) {
	nested, ok := nestedMap(out, "production")
	if !ok {
		return
	}
	for _, f := range []string{
		"distillery", "peat_ppm", "peat_level", "natural_color",
		"non_chill_filtered", "cask_strength", "single_cask", "peated",
		"primary_cask", "finishing_cask", "wood_type", "cask_treatment",
		"maturation_notes",
	} {
		setFirst(out, f, nested[f])
	}
}

// flattenLegacyEnrichment maps the legacy enrichment.* shape (§4.1) onto the
// same targets as the current shape. palate populates both
// palate_description and initial_taste if neither is set.
func flattenLegacyEnrichment(out map[string]interface{}) {
	nested, ok := nestedMap(out, "enrichment")
	if !ok {
		return
	}
	if tn, ok := nested["tasting_notes"].(map[string]interface{}); ok {
		setFirst(out, "nose_description", tn["nose"])
		palate := tn["palate"]
		if palate != nil {
			_, hasDesc := out["palate_description"]
			_, hasInitial := out["initial_taste"]
			if !hasDesc && !hasInitial {
				setFirst(out, "palate_description", palate)
				setFirst(out, "initial_taste", palate)
			}
		}
		setFirst(out, "finish_description", tn["finish"])
	}
	setFirst(out, "flavor_profile", nested["flavor_profile"])
	setFirst(out, "food_pairings", nested["food_pairings"])
	setFirst(out, "serving_suggestion", nested["serving_suggestion"])
}

func foldScalarIntoList(out map[string]interface{}, scalarKey, listKey string) {
	raw, ok := out[scalarKey]
	if !ok {
		return
	}
	delete(out, scalarKey)
	existing, _ := toStringSlice(out[listKey])
	seen := map[string]bool{}
	result := []string{}
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	if s := toScalarString(raw); s != "" && !seen[s] {
		result = append(result, s)
	}
	if len(result) > 0 {
		out[listKey] = result
	}
}

func toScalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toScalarString(e))
		}
		return out, true
	default:
		return nil, false
	}
}

// normalizeFoodPairings accepts a list or string and always stores a
// comma-separated string (§4.1).
func normalizeFoodPairings(out map[string]interface{}) {
	raw, ok := out["food_pairings"]
	if !ok {
		return
	}
	switch t := raw.(type) {
	case string:
		out["food_pairings"] = t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, toScalarString(e))
		}
		out["food_pairings"] = strings.Join(parts, ", ")
	case []string:
		out["food_pairings"] = strings.Join(t, ", ")
	}
}

// coerceABV extracts the first decimal number from a string like "43%" or
// "46.5% ABV" (§4.1). Unparseable input becomes nil, never an error.
func coerceABV(out map[string]interface{}) {
	coerceDecimalField(out, "abv")
}

func coerceDecimalField(out map[string]interface{}, key string) {
	raw, ok := out[key]
	if !ok {
		return
	}
	s, isStr := raw.(string)
	if !isStr {
		return
	}
	match := decimalRe.FindString(s)
	if match == "" {
		out[key] = nil
		return
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		out[key] = nil
		return
	}
	out[key] = f
}

// coerceAge extracts the first integer from a string like "12 Year Old" or
// "12yo" (§4.1).
func coerceAge(out map[string]interface{}) {
	raw, ok := out["age_statement"]
	if !ok {
		return
	}
	s, isStr := raw.(string)
	if !isStr {
		return
	}
	match := integerRe.FindString(s)
	if match == "" {
		out["age_statement"] = nil
		return
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		out["age_statement"] = nil
		return
	}
	out["age_statement"] = n
}

// coerceVolume extracts the first integer; a value <= 10 with unit "l" is
// treated as liters and multiplied by 1000 (§4.1).
func coerceVolume(out map[string]interface{}) {
	raw, ok := out["volume_ml"]
	if !ok {
		return
	}
	s, isStr := raw.(string)
	if !isStr {
		return
	}
	match := integerRe.FindString(s)
	if match == "" {
		out["volume_ml"] = nil
		return
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		out["volume_ml"] = nil
		return
	}
	lower := strings.ToLower(s)
	if n <= 10 && strings.Contains(lower, "l") && !strings.Contains(lower, "ml") {
		n *= 1000
	}
	out["volume_ml"] = n
}

// coercePrice strips currency symbols and commas before parsing (§4.1).
func coercePrice(out map[string]interface{}) {
	raw, ok := out["price"]
	if !ok {
		return
	}
	s, isStr := raw.(string)
	if !isStr {
		return
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = currencyStripRe.ReplaceAllString(cleaned, "")
	if cleaned == "" {
		out["price"] = nil
		return
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		out["price"] = nil
		return
	}
	out["price"] = f
}
