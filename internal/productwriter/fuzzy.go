package productwriter

import (
	"regexp"
	"strings"
)

// fuzzyNameThreshold is the Jaccard similarity floor for the fuzzy-name
// dedup pass (§4.2 step 4c).
const fuzzyNameThreshold = 0.85

// namePrefixLen is how much of the query name is used to narrow the
// candidate search before scoring (§4.2 step 4c).
const namePrefixLen = 30

var yearToken = regexp.MustCompile(`\(?\b(19|20)\d{2}\b\)?`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// tokenize lowercases, strips years (with any parentheses around them, as in
// "(2019)"), collapses whitespace, and splits
// on spaces, matching §4.2 step 4c's "lowercased, year-stripped,
// whitespace-collapsed tokens".
func tokenize(name string) map[string]bool {
	lower := strings.ToLower(name)
	stripped := yearToken.ReplaceAllString(lower, " ")
	collapsed := whitespaceRun.ReplaceAllString(stripped, " ")
	tokens := map[string]bool{}
	for _, t := range strings.Fields(collapsed) {
		if t != "" {
			tokens[t] = true
		}
	}
	return tokens
}

// jaccard computes the Jaccard similarity of two token sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	union := map[string]bool{}
	for t := range a {
		union[t] = true
		if b[t] {
			intersection++
		}
	}
	for t := range b {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

// NamePrefix returns the first namePrefixLen characters of name, used to
// narrow the fuzzy-match candidate query (§4.2 step 4c).
func NamePrefix(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if len(lower) <= namePrefixLen {
		return lower
	}
	return lower[:namePrefixLen]
}

// BestFuzzyMatch returns the candidate name with the highest Jaccard score
// against query, and whether that score meets fuzzyNameThreshold.
func BestFuzzyMatch(query string, candidates []string) (bestName string, bestScore float64, ok bool) {
	queryTokens := tokenize(query)
	for _, c := range candidates {
		score := jaccard(queryTokens, tokenize(c))
		if score > bestScore {
			bestScore = score
			bestName = c
		}
	}
	return bestName, bestScore, bestScore >= fuzzyNameThreshold
}
