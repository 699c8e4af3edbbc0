package smartcrawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shelfmark/productpipeline/internal/budget"
	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/errs"
	"github.com/shelfmark/productpipeline/internal/externalservices"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

// SingleResult is extract_product's return shape (§4.5 step 5).
type SingleResult struct {
	Success          bool
	Data             models.FieldMap
	SourceURL        string
	SourceType       models.SourceTypeEnum
	NameMatchScore   float64
	NeedsReview      bool
	ReviewReasons    []string
	Errors           []string
	ScrapingBeeCalls int
	AICalls          int
	SourcesUsed      int
}

// ConflictValue is one source's contribution to a multi-source conflict
// record (§4.5 merge rules, scalar fields).
type ConflictValue struct {
	Source string
	Value  interface{}
}

// ConflictRecord documents a disagreement on a scalar field across sources.
type ConflictRecord struct {
	Field  string
	Values []ConflictValue
	Chosen interface{}
	Reason string
}

// MultiResult is extract_product_multi_source's return shape (§4.5
// Multi-source extraction).
type MultiResult struct {
	Data             models.FieldMap
	Conflicts        []ConflictRecord
	NeedsReview      bool
	SourcesUsed      int
	ScrapingBeeCalls int
	AICalls          int
}

// scalarMergeFields keep the first non-empty value across sources,
// recording a conflict when a later source disagrees (§4.5 merge rules).
var scalarMergeFields = map[string]bool{
	"name": true, "brand": true, "abv": true, "age_statement": true,
	"volume_ml": true, "price": true, "region": true, "country": true,
	"distillery": true, "bottler": true, "description": true,
	"nose_description": true, "palate_description": true, "finish_description": true,
}

// listMergeFields are combined and deduplicated across sources rather than
// first-writer-wins (§4.5 merge rules).
var listMergeFields = map[string]bool{
	"awards": true, "ratings": true, "images": true,
	"primary_aromas": true, "palate_flavors": true,
}

// Crawler implements SmartCrawler (§4.5): fetch, cache, extract, name-match,
// and merge across one or more candidate sources.
type Crawler struct {
	Domains  *domainintel.DomainSets
	Cache    store.CrawledSourceStore
	Search   externalservices.SearchProvider
	Fetch    externalservices.Fetcher
	Extract  externalservices.Extractor
	Budget   *budget.Tracker
	Blocklist *domainintel.SessionBlacklist
	Threshold        float64
	PartialThreshold float64
	log *logging.Logger
}

// New builds a Crawler with the spec's default thresholds (§4.5).
func New(domains *domainintel.DomainSets, cache store.CrawledSourceStore, search externalservices.SearchProvider, fetch externalservices.Fetcher, extract externalservices.Extractor, tracker *budget.Tracker, blocklist *domainintel.SessionBlacklist) *Crawler {
	return &Crawler{
		Domains:          domains,
		Cache:            cache,
		Search:           search,
		Fetch:            fetch,
		Extract:          extract,
		Budget:           tracker,
		Blocklist:        blocklist,
		Threshold:        DefaultThreshold,
		PartialThreshold: PartialThreshold,
		log:              logging.For("smartcrawler"),
	}
}

type attempt struct {
	url        string
	sourceType models.SourceTypeEnum
	data       models.FieldMap
	score      float64
	err        error
}

// ExtractSingle implements extract_product (§4.5 Single-source extraction).
func (c *Crawler) ExtractSingle(ctx context.Context, expectedName string, productType models.ProductTypeEnum, seedURL string) (SingleResult, error) {
	result := SingleResult{SourcesUsed: 1}
	productKey := domainintel.ProductKey(expectedName)

	tried := map[string]bool{}
	var best *attempt

	tryOne := func(candidateURL string) *attempt {
		if tried[candidateURL] {
			return nil
		}
		tried[candidateURL] = true
		a := c.attemptURL(ctx, productKey, candidateURL, expectedName, productType, &result)
		if a.err != nil {
			result.Errors = append(result.Errors, a.err.Error())
			return a
		}
		if best == nil || a.score > best.score {
			best = a
		}
		return a
	}

	if seedURL != "" {
		if a := tryOne(seedURL); a != nil && a.err == nil && a.score >= c.Threshold {
			return c.accept(result, a), nil
		}
	}

	if best == nil || best.score < c.Threshold {
		candidates, err := c.searchCandidates(ctx, productKey, expectedName)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
		for _, candidateURL := range candidates {
			a := tryOne(candidateURL)
			if a != nil && a.err == nil && a.score >= c.Threshold {
				return c.accept(result, a), nil
			}
		}
	}

	if best != nil && best.score >= c.PartialThreshold {
		result.Success = true
		result.Data = best.data
		result.SourceURL = best.url
		result.SourceType = best.sourceType
		result.NameMatchScore = best.score
		result.NeedsReview = true
		result.ReviewReasons = append(result.ReviewReasons,
			fmt.Sprintf("Name match score %.2f below threshold %.2f", best.score, c.Threshold))
		return result, nil
	}

	result.Success = false
	return result, nil
}

func (c *Crawler) accept(result SingleResult, a *attempt) SingleResult {
	result.Success = true
	result.Data = a.data
	result.SourceURL = a.url
	result.SourceType = a.sourceType
	result.NameMatchScore = a.score
	return result
}

// searchCandidates runs one search call and orders the resulting,
// non-skipped URLs by SmartCrawler preference (§4.5 Preference ordering).
func (c *Crawler) searchCandidates(ctx context.Context, productKey, expectedName string) ([]string, error) {
	if ok, _, err := c.Budget.CanContinue(ctx, productKey, budget.CounterSearches); err != nil {
		return nil, err
	} else if !ok {
		return nil, errs.ErrBudgetExceeded
	}
	results, err := c.Search.Search(ctx, expectedName, 10)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", expectedName, err)
	}
	type scored struct {
		url  string
		rank int
	}
	var urls []scored
	for _, r := range results {
		if c.Domains.IsSkip(r.URL) {
			continue
		}
		if _, isCompetition := c.Domains.CompetitionParserKey(r.URL); isCompetition {
			continue
		}
		if c.Blocklist != nil && c.Blocklist.Contains(r.URL) {
			continue
		}
		urls = append(urls, scored{url: r.URL, rank: c.Domains.PreferenceRank(r.URL)})
	}
	sort.SliceStable(urls, func(i, j int) bool { return urls[i].rank > urls[j].rank })
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.url)
	}
	return out, nil
}

// attemptURL fetches (via cache or Fetch), extracts, and scores one URL.
func (c *Crawler) attemptURL(ctx context.Context, productKey, candidateURL, expectedName string, productType models.ProductTypeEnum, result *SingleResult) *attempt {
	if c.Domains.IsSkip(candidateURL) {
		return &attempt{url: candidateURL, err: fmt.Errorf("%s is a skip domain", candidateURL)}
	}
	if ok, _, err := c.Budget.CanContinue(ctx, productKey, budget.CounterURLs); err != nil {
		return &attempt{url: candidateURL, err: err}
	} else if !ok {
		return &attempt{url: candidateURL, err: errs.ErrBudgetExceeded}
	}

	content, sourceType, statusCode, err := c.fetchWithCache(ctx, candidateURL)
	if err != nil {
		return &attempt{url: candidateURL, err: err}
	}
	if domainintel.IsMembersOnly(statusCode, content) {
		if c.Blocklist != nil {
			c.Blocklist.Add(candidateURL)
		}
		_ = c.Budget.Refund(ctx, productKey, budget.CounterSearches)
		return &attempt{url: candidateURL, err: fmt.Errorf("%s: %w", candidateURL, errs.ErrMembersOnly)}
	}

	trimmed := TrimContent(content)
	hintStr := string(productType)
	resp, err := c.Extract.Extract(ctx, trimmed, candidateURL, &hintStr)
	if err != nil {
		return &attempt{url: candidateURL, err: err}
	}
	result.ScrapingBeeCalls += resp.ScrapingBeeCalls
	result.AICalls += resp.AICalls
	if resp.Kind == externalservices.ExtractionKindFailure {
		return &attempt{url: candidateURL, err: fmt.Errorf("%s: %w: %s", candidateURL, errs.ErrExtractionFailed, resp.Err)}
	}

	data := models.FieldMap(resp.Single)
	name, _ := data["name"].(string)
	if name == "" {
		name = expectedName
	}
	score := NameMatchScore(expectedName, name)
	return &attempt{url: candidateURL, sourceType: sourceType, data: data, score: score}
}

// fetchWithCache consults the content cache before any paid fetch (§4.5
// Cache policy), upserting on a real fetch.
func (c *Crawler) fetchWithCache(ctx context.Context, rawURL string) (content string, sourceType models.SourceTypeEnum, statusCode int, err error) {
	sourceType = c.classifySourceType(rawURL)

	cached, cacheErr := c.Cache.GetByURL(ctx, nil, rawURL)
	if cacheErr == nil && cached.IsUsableCacheHit() {
		return cached.RawContent, cached.SourceType, 200, nil
	}

	fetched, fetchErr := c.Fetch.FetchPage(ctx, rawURL, false)
	if fetchErr != nil {
		return "", sourceType, 0, fmt.Errorf("fetching %s: %w", rawURL, fetchErr)
	}

	raw := fetched.HTML
	if len(raw) > models.MaxRawContentBytes {
		raw = raw[:models.MaxRawContentBytes]
	}
	entry := &models.CrawledSource{
		URL:              rawURL,
		RawContent:       raw,
		ContentHash:      contentHash(raw),
		Title:            titleOrNil(rawURL),
		SourceType:       sourceType,
		ExtractionStatus: models.ExtractionStatusProcessed,
	}
	if upsertErr := c.Cache.Upsert(ctx, nil, entry); upsertErr != nil {
		c.log.Warn("failed to upsert crawled source cache", "url", rawURL, "error", upsertErr.Error())
	}
	return raw, sourceType, fetched.StatusCode, nil
}

func (c *Crawler) classifySourceType(rawURL string) models.SourceTypeEnum {
	switch {
	case c.Domains.IsOfficialBrand(rawURL):
		return models.SourceTypeOfficialBrand
	case c.Domains.IsRetailer(rawURL):
		return models.SourceTypeRetailer
	case c.Domains.IsReview(rawURL):
		return models.SourceTypeReview
	default:
		if _, ok := c.Domains.CompetitionParserKey(rawURL); ok {
			return models.SourceTypeCompetition
		}
		return models.SourceTypeOther
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func titleOrNil(rawURL string) *string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return nil
	}
	last := strings.ReplaceAll(segments[len(segments)-1], "-", " ")
	return &last
}
