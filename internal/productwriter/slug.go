package productwriter

import (
	"regexp"
	"strings"
)

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	trimDashChars = regexp.MustCompile(`^-+|-+$`)
)

// Slugify lowercases name and replaces every run of non-alphanumeric
// characters with a single dash, trimming leading/trailing dashes (§4.2
// step 5 "slugify the brand name").
func Slugify(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	dashed := nonSlugChars.ReplaceAllString(lower, "-")
	return trimDashChars.ReplaceAllString(dashed, "")
}
