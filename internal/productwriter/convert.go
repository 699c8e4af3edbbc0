package productwriter

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// toStringPtr reads a string field out of a FieldMap value, tolerating the
// zero value (empty string treated as absent).
func toStringPtr(v interface{}) *string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// toIntPtr accepts int, float64 (JSON numbers), or a numeric string — the
// shapes a FieldMap can carry depending on whether it came straight from the
// Normalizer or was round-tripped through Product.ToFieldMap.
func toIntPtr(v interface{}) *int {
	switch t := v.(type) {
	case int:
		return &t
	case int64:
		n := int(t)
		return &n
	case float64:
		n := int(t)
		return &n
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// toDecimalPtr accepts decimal.Decimal, float64, int, or a numeric string.
func toDecimalPtr(v interface{}) *decimal.Decimal {
	switch t := v.(type) {
	case decimal.Decimal:
		return &t
	case *decimal.Decimal:
		return t
	case float64:
		d := decimal.NewFromFloat(t)
		return &d
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		return &d
	default:
		return nil
	}
}

// toBoolPtr accepts bool only; the Normalizer never coerces non-boolean
// inputs into these flag fields.
func toBoolPtr(v interface{}) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// toStringSlice accepts []string directly or a []interface{} of strings (the
// shape encoding/json produces when decoding an extractor payload).
func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
