package productwriter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const fingerprintSeparator = "|"

// Fingerprint computes the stable content hash used for exact dedup (§4.2
// step 3): the lowercased name plus ABV, age, and volume, joined with a
// separator, SHA-256 hex-encoded. A missing numeric component contributes an
// empty segment so two extractions of the same product that both omit it
// still fingerprint identically.
func Fingerprint(name string, abv *decimal.Decimal, age *int, volumeML *int) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(name)),
		decimalSegment(abv),
		intSegment(age),
		intSegment(volumeML),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fingerprintSeparator)))
	return hex.EncodeToString(sum[:])[:64]
}

func decimalSegment(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func intSegment(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}
