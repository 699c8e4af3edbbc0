// Package domainintel maintains the closed sets used by URL/domain
// classification across SmartCrawler and the Discovery Orchestrator (§4.11
// Members-Only & Domain Intelligence): skip, retailer, review, competition,
// and official-brand domain sets, plus members-only detection and the
// per-session blacklist.
package domainintel

import (
	"net/url"
	"strings"
)

// DomainSets is the closed collection of domain classifications consulted
// by internal/smartcrawler and internal/discovery (§4.11).
type DomainSets struct {
	Skip           map[string]bool
	Retailer       map[string]bool
	Review         map[string]bool
	OfficialBrand  map[string]bool
	Competition    map[string]string // domain -> parser key (IWSC, SFWSC, WWA, ...)
}

// DefaultSkipDomains are marketplaces and social media the pipeline never
// crawls directly (§4.11).
var DefaultSkipDomains = []string{
	"amazon.com", "ebay.com", "walmart.com", "target.com",
	"facebook.com", "instagram.com", "twitter.com", "x.com",
	"youtube.com", "reddit.com", "pinterest.com", "tiktok.com",
	"wikipedia.org", "yelp.com",
}

// DefaultCompetitionDomains maps known competition-results domains to the
// parser key the Competition Orchestrator (§4.8) uses for that site (§4.11).
var DefaultCompetitionDomains = map[string]string{
	"iwsc.net":                 "IWSC",
	"sfspiritscomp.com":        "SFWSC",
	"thetastingalliance.com":   "SFWSC",
	"worldwhiskiesawards.com":  "WWA",
	"decanter.com":             "DECANTER",
	"internationalspiritschallenge.com": "ISC",
	"bestintaste.org":          "BTI",
	"winecomp.com":             "WINE_COMP",
}

// New builds the default DomainSets (§4.11). Retailer/review/official-brand
// lists start small and are admin-extendable; see LoadSeedFile.
func New() *DomainSets {
	ds := &DomainSets{
		Skip:          toSet(DefaultSkipDomains),
		Retailer:      map[string]bool{},
		Review:        map[string]bool{},
		OfficialBrand: map[string]bool{},
		Competition:   map[string]string{},
	}
	for d, key := range DefaultCompetitionDomains {
		ds.Competition[d] = key
	}
	return ds
}

func toSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[d] = true
	}
	return set
}

// Domain extracts the registrable-ish host from a URL, stripping a leading
// "www." the way every set membership check in this package expects.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsSkip reports whether rawURL's domain is in the skip set.
func (d *DomainSets) IsSkip(rawURL string) bool {
	return d.Skip[Domain(rawURL)]
}

// CompetitionParserKey returns the parser key for rawURL's domain and
// whether it is a known competition domain.
func (d *DomainSets) CompetitionParserKey(rawURL string) (string, bool) {
	key, ok := d.Competition[Domain(rawURL)]
	return key, ok
}

// IsOfficialBrand reports whether rawURL's domain is a configured
// brand-owned site.
func (d *DomainSets) IsOfficialBrand(rawURL string) bool {
	return d.OfficialBrand[Domain(rawURL)]
}

// IsRetailer reports whether rawURL's domain is a configured trusted
// retailer.
func (d *DomainSets) IsRetailer(rawURL string) bool {
	return d.Retailer[Domain(rawURL)]
}

// IsReview reports whether rawURL's domain is a configured review site.
func (d *DomainSets) IsReview(rawURL string) bool {
	return d.Review[Domain(rawURL)]
}

// PreferenceRank scores a domain for SmartCrawler's preference ordering
// (§4.5): official brand > retailer > review > other non-skip, higher is
// more preferred. Skip domains should never reach this call.
func (d *DomainSets) PreferenceRank(rawURL string) int {
	switch {
	case d.IsOfficialBrand(rawURL):
		return 3
	case d.IsRetailer(rawURL):
		return 2
	case d.IsReview(rawURL):
		return 1
	default:
		return 0
	}
}

// AddOfficialBrand, AddRetailer, AddReview extend the sets at runtime, used
// by LoadSeedFile and by admin tooling.
func (d *DomainSets) AddOfficialBrand(domain string) { d.OfficialBrand[strings.ToLower(domain)] = true }
func (d *DomainSets) AddRetailer(domain string)       { d.Retailer[strings.ToLower(domain)] = true }
func (d *DomainSets) AddReview(domain string)         { d.Review[strings.ToLower(domain)] = true }
func (d *DomainSets) AddCompetition(domain, parserKey string) {
	d.Competition[strings.ToLower(domain)] = parserKey
}
