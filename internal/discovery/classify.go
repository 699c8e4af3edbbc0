// Package discovery implements the Discovery Orchestrator (§4.7): it turns
// a schedule's search terms into saved products via per-term search, URL
// classification, and single-product/list-page/competition dispatch.
package discovery

import (
	"regexp"
	"strings"

	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/models"
)

var (
	competitionPattern = regexp.MustCompile(`(?i)/results/20\d\d|/medal-winners|iwsc|sfwsc|wwa|world.*spirits.*competition|spirits.*award.*\d{4}|competition.*results`)
	listPattern        = regexp.MustCompile(`(?i)best-|top-\d+|\d+-best|best.*\d{4}|our picks|gift guide|ranking|award|winners?|results?\b|review.*\d{4}|guide to|roundup`)
	productPagePattern = regexp.MustCompile(`(?i)/product/|/p/\d+|/shop/|/buy/`)
)

// ClassifyURL applies §4.7's URL classifier. The tie-break order is
// skip, competition, list (with a product-page-pattern override), then the
// product default (Open Question decision, see DESIGN.md).
func ClassifyURL(domains *domainintel.DomainSets, rawURL, title string) models.URLClassEnum {
	if domains.IsSkip(rawURL) {
		return models.URLClassSkip
	}
	if _, ok := domains.CompetitionParserKey(rawURL); ok {
		return models.URLClassCompetition
	}
	haystack := strings.ToLower(rawURL + " " + title)
	if competitionPattern.MatchString(haystack) {
		return models.URLClassCompetition
	}
	if listPattern.MatchString(haystack) && !productPagePattern.MatchString(rawURL) {
		return models.URLClassList
	}
	return models.URLClassProduct
}
