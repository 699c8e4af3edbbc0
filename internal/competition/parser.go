// Package competition implements the Competition Orchestrator (§4.8): it
// turns a competition-results page into per-product award rows, upserting
// existing products by fingerprint/name and creating skeleton products for
// entries that have no match yet.
package competition

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shelfmark/productpipeline/internal/models"
)

// medalPattern matches the common medal vocabulary used by spirits and wine
// competition results pages, ordered so a "Double Gold" hit isn't
// shadowed by the bare "Gold" alternative.
var medalPattern = regexp.MustCompile(`(?i)\b(double gold|gold medal|silver medal|bronze medal|gold|silver|bronze|best in show|trophy)\b`)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// namePrefixPattern strips a leading ordinal prefix ("1." or "#1") left on a
// line once its medal phrase has been removed, so what remains reads as the
// product name.
var namePrefixPattern = regexp.MustCompile(`(?i)^\s*(\d+\.\s*|#\d+\s*)?`)

// ParsedAward is one medalled entry lifted off a competition-results page,
// not yet matched to a product.
type ParsedAward struct {
	Name        string
	Brand       string
	Competition string
	Year        int
	Medal       string
	ProductType models.ProductTypeEnum
}

// normalizeMedal maps the raw matched phrase onto a short, storable medal
// label (§3 Award.medal).
func normalizeMedal(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "double gold"):
		return "Double Gold"
	case strings.Contains(lower, "gold"):
		return "Gold"
	case strings.Contains(lower, "silver"):
		return "Silver"
	case strings.Contains(lower, "bronze"):
		return "Bronze"
	case strings.Contains(lower, "best in show"):
		return "Best in Show"
	case strings.Contains(lower, "trophy"):
		return "Trophy"
	default:
		return capitalizeWords(lower)
	}
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseAwards applies §4.8's "product-type-aware heuristics": it walks the
// page line by line, and for every line carrying medal vocabulary treats
// the remainder of the line as "<brand> <name>", falling back to whichever
// productType was passed in when only one is in scope.
func ParseAwards(content, competition string, year int, productTypes []models.ProductTypeEnum) []ParsedAward {
	if year == 0 {
		if m := yearPattern.FindString(content); m != "" {
			if y, err := strconv.Atoi(m); err == nil {
				year = y
			}
		}
	}
	defaultType := models.ProductTypeWhiskey
	if len(productTypes) > 0 {
		defaultType = productTypes[0]
	}

	var awards []ParsedAward
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		medalMatch := medalPattern.FindString(line)
		if medalMatch == "" {
			continue
		}
		nameline := medalPattern.ReplaceAllString(line, "")
		nameline = namePrefixPattern.ReplaceAllString(nameline, "")
		nameline = strings.Trim(nameline, " -–—:|\t")
		if nameline == "" {
			continue
		}

		brand, name := splitBrandName(nameline)
		pt := inferEntryType(nameline, productTypes, defaultType)

		awards = append(awards, ParsedAward{
			Name:        name,
			Brand:       brand,
			Competition: competition,
			Year:        year,
			Medal:       normalizeMedal(medalMatch),
			ProductType: pt,
		})
	}
	return awards
}

// splitBrandName takes the heuristic view that a medalled entry's first
// word (or two, if the second is capitalized) is the brand, and the rest is
// the product name — true often enough on a results page to be useful, and
// the Product Writer's own fuzzy/fingerprint dedup absorbs the cases where
// it isn't.
func splitBrandName(s string) (brand, name string) {
	tokens := strings.Fields(s)
	if len(tokens) <= 1 {
		return "", s
	}
	brandWords := 1
	if len(tokens) > 2 && startsUpper(tokens[1]) {
		brandWords = 2
	}
	return strings.Join(tokens[:brandWords], " "), strings.Join(tokens[brandWords:], " ")
}

func startsUpper(s string) bool {
	if s == "" {
		return false
	}
	r := s[0]
	return r >= 'A' && r <= 'Z'
}

var portTokens = []string{"port", "tawny", "ruby", "vintage port", "colheita"}

// inferEntryType narrows a per-line product type when the competition spans
// more than one (§4.8 "product-type-aware heuristics").
func inferEntryType(nameline string, productTypes []models.ProductTypeEnum, fallback models.ProductTypeEnum) models.ProductTypeEnum {
	if len(productTypes) <= 1 {
		return fallback
	}
	lower := strings.ToLower(nameline)
	for _, tok := range portTokens {
		if strings.Contains(lower, tok) {
			return models.ProductTypePortWine
		}
	}
	return models.ProductTypeWhiskey
}
