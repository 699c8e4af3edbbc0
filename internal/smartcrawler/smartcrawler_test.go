package smartcrawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/productpipeline/internal/budget"
	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/externalservices"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

// fakeRedis is a minimal in-memory redisClient double, mirroring the one in
// internal/budget's own test file.
type fakeRedis struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newFakeRedis() *fakeRedis { return &fakeRedis{counters: map[string]int64{}} }

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.counters[key])
	return cmd
}
func (f *fakeRedis) Decr(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[key]--
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(f.counters[key])
	return cmd
}
func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}
func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}
func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("0")
	return cmd
}
func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}
func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

func newTestTracker() *budget.Tracker {
	return budget.New(newFakeRedis(), budget.DefaultCeilings(), time.Hour)
}

// fakeSearch returns a fixed list of results regardless of query.
type fakeSearch struct {
	results []externalservices.SearchResult
}

func (f *fakeSearch) Search(ctx context.Context, query string, num int) ([]externalservices.SearchResult, error) {
	return f.results, nil
}

// fakeFetch returns canned HTML per URL.
type fakeFetch struct {
	pages map[string]string
}

func (f *fakeFetch) FetchPage(ctx context.Context, url string, renderJS bool) (*externalservices.FetchResult, error) {
	return &externalservices.FetchResult{URL: url, HTML: f.pages[url], StatusCode: 200, FetchedAt: time.Now()}, nil
}

// fakeExtract returns a canned single-product field map per URL.
type fakeExtract struct {
	byURL map[string]models.FieldMap
}

func (f *fakeExtract) Extract(ctx context.Context, content, sourceURL string, productTypeHint *string) (externalservices.ExtractionResponse, error) {
	data, ok := f.byURL[sourceURL]
	if !ok {
		return externalservices.ExtractionResponse{Kind: externalservices.ExtractionKindFailure, Err: "no fixture"}, nil
	}
	return externalservices.ExtractionResponse{Kind: externalservices.ExtractionKindSingle, Single: data}, nil
}

// fakeCache is a no-op CrawledSourceStore: every GetByURL misses, every
// Upsert succeeds, so tests exercise the fetch-on-miss path deterministically.
type fakeCache struct{}

func (fakeCache) GetByURL(ctx context.Context, exec store.Querier, url string) (*models.CrawledSource, error) {
	return nil, store.ErrNotFound
}
func (fakeCache) Upsert(ctx context.Context, exec store.Querier, c *models.CrawledSource) error {
	return nil
}

func newTestCrawler(search *fakeSearch, fetch *fakeFetch, extract *fakeExtract) *Crawler {
	return New(domainintel.New(), fakeCache{}, search, fetch, extract, newTestTracker(), domainintel.NewSessionBlacklist())
}

func TestExtractSingle_SeedURLHitsThreshold(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{"https://example.com/product": "<html></html>"}}
	extract := &fakeExtract{byURL: map[string]models.FieldMap{
		"https://example.com/product": {"name": "Glenfiddich 12 Year Old Single Malt"},
	}}
	c := newTestCrawler(&fakeSearch{}, fetch, extract)

	result, err := c.ExtractSingle(context.Background(), "Glenfiddich 12 Year Old", models.ProductTypeWhiskey, "https://example.com/product")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.NeedsReview)
	assert.GreaterOrEqual(t, result.NameMatchScore, DefaultThreshold)
}

func TestExtractSingle_FallsBackToSearch(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://example.com/wrong": "<html></html>",
		"https://brand.com/real":    "<html></html>",
	}}
	extract := &fakeExtract{byURL: map[string]models.FieldMap{
		"https://example.com/wrong": {"name": "Completely Unrelated Product"},
		"https://brand.com/real":    {"name": "Macallan 18 Year Old"},
	}}
	search := &fakeSearch{results: []externalservices.SearchResult{
		{URL: "https://brand.com/real", Title: "Macallan 18"},
	}}
	c := newTestCrawler(search, fetch, extract)

	result, err := c.ExtractSingle(context.Background(), "Macallan 18 Year Old", models.ProductTypeWhiskey, "https://example.com/wrong")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "https://brand.com/real", result.SourceURL)
}

func TestExtractSingle_PartialBelowThresholdStillNeedsReview(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{"https://example.com/p": "<html></html>"}}
	extract := &fakeExtract{byURL: map[string]models.FieldMap{
		"https://example.com/p": {"name": "Glen Something 12"},
	}}
	c := newTestCrawler(&fakeSearch{}, fetch, extract)

	result, err := c.ExtractSingle(context.Background(), "Totally Different Name Bourbon", models.ProductTypeWhiskey, "https://example.com/p")
	require.NoError(t, err)
	if result.Success {
		assert.True(t, result.NeedsReview)
		assert.NotEmpty(t, result.ReviewReasons)
	}
}

func TestExtractSingle_SkipDomainNeverFetched(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{"https://www.amazon.com/dp/1": "<html></html>"}}
	extract := &fakeExtract{byURL: map[string]models.FieldMap{
		"https://www.amazon.com/dp/1": {"name": "Glenfiddich 12 Year Old"},
	}}
	c := newTestCrawler(&fakeSearch{}, fetch, extract)

	result, err := c.ExtractSingle(context.Background(), "Glenfiddich 12 Year Old", models.ProductTypeWhiskey, "https://www.amazon.com/dp/1")
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestExtractMultiSource_MergesAndRecordsConflict(t *testing.T) {
	fetch := &fakeFetch{pages: map[string]string{
		"https://brand.com/a":    "<html></html>",
		"https://retailer.com/b": "<html></html>",
	}}
	extract := &fakeExtract{byURL: map[string]models.FieldMap{
		"https://brand.com/a": {
			"name": "Glenfiddich 12 Year Old Single Malt",
			"abv":  "40%",
		},
		"https://retailer.com/b": {
			"name": "Glenfiddich 12 Year Old Single Malt",
			"abv":  "40.5%",
		},
	}}
	c := newTestCrawler(&fakeSearch{}, fetch, extract)

	result, err := c.ExtractMultiSource(context.Background(), "Glenfiddich 12 Year Old",
		models.ProductTypeWhiskey, []string{"https://brand.com/a", "https://retailer.com/b"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SourcesUsed)
	assert.Equal(t, "40%", result.Data["abv"])
	assert.True(t, result.NeedsReview)
	found := false
	for _, conflict := range result.Conflicts {
		if conflict.Field == "abv" {
			found = true
		}
	}
	assert.True(t, found, "expected an abv conflict to be recorded")
}

func TestMergeAward_SkipsDuplicateCompetitionYear(t *testing.T) {
	data := models.FieldMap{"awards": []interface{}{
		map[string]interface{}{"competition": "IWSC", "year": float64(2023), "medal": "Gold"},
	}}
	MergeAward(data, map[string]interface{}{"competition": "IWSC", "year": float64(2023), "medal": "Gold"})
	awards := data["awards"].([]interface{})
	assert.Len(t, awards, 1)

	MergeAward(data, map[string]interface{}{"competition": "SFWSC", "year": float64(2023), "medal": "Silver"})
	awards = data["awards"].([]interface{})
	assert.Len(t, awards, 2)
}

func TestNormalizeName_StripsSuffixesAndPunctuation(t *testing.T) {
	assert.Equal(t, "glenfiddich 12", NormalizeName("Glenfiddich, 12 Year Old Single Malt!"))
}
