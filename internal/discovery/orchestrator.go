package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shelfmark/productpipeline/internal/budget"
	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/externalservices"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/productwriter"
	"github.com/shelfmark/productpipeline/internal/smartcrawler"
	"github.com/shelfmark/productpipeline/internal/store"
	"github.com/shelfmark/productpipeline/internal/tracing"
)

var tracer = tracing.Tracer("discovery")

// MaxProductsPerListPage caps how many entries a list page's extraction
// result is allowed to expand into (§4.7 List-page flow).
const MaxProductsPerListPage = 20

// termConcurrency bounds how many search terms run at once within one
// discovery job.
const termConcurrency = 4

// Orchestrator implements the Discovery Orchestrator (§4.7). Classified
// competition URLs are handed to handleCompetitionDomainSeen, not invoked
// directly against the Competition Orchestrator — the dedicated
// competition-category Schedule (via the Scheduler's runByCategory) is the
// only caller of that collaborator (§4.7, §4.8).
type Orchestrator struct {
	Domains   *domainintel.DomainSets
	Search    externalservices.SearchProvider
	Fetch     externalservices.Fetcher
	Extract   externalservices.Extractor
	Crawl     *smartcrawler.Crawler
	Writer    *productwriter.Writer
	Budget    *budget.Tracker
	Products  store.ProductStore
	Schedules store.ScheduleStore
	Jobs      store.JobStore
	Results   store.DiscoveryResultStore

	log *logging.Logger
}

// New builds an Orchestrator.
func New(domains *domainintel.DomainSets, search externalservices.SearchProvider, fetch externalservices.Fetcher,
	extract externalservices.Extractor, crawl *smartcrawler.Crawler, writer *productwriter.Writer,
	tracker *budget.Tracker, products store.ProductStore, schedules store.ScheduleStore, jobs store.JobStore,
	results store.DiscoveryResultStore) *Orchestrator {
	return &Orchestrator{
		Domains: domains, Search: search, Fetch: fetch, Extract: extract, Crawl: crawl, Writer: writer,
		Budget: tracker, Products: products, Schedules: schedules, Jobs: jobs, Results: results,
		log: logging.For("discovery"),
	}
}

// incrementCounters applies deltas to job's persisted counters, logging
// rather than swallowing a store failure (§3 CrawlJob aggregate counters).
func (o *Orchestrator) incrementCounters(ctx context.Context, jobID uuid.UUID, deltas models.JobCounterDeltas) {
	if o.Jobs == nil {
		return
	}
	if err := o.Jobs.IncrementCounters(ctx, nil, jobID, deltas); err != nil {
		o.log.Warn("incrementing job counters failed", "job_id", jobID.String(), "error", err.Error())
	}
}

// Run implements run(schedule) -> DiscoveryJob (§4.7 Contract): it walks
// the schedule's search terms in priority order, searching, classifying,
// and dispatching each result.
func (o *Orchestrator) Run(ctx context.Context, schedule *models.Schedule, job *models.CrawlJob) error {
	var entries []models.SearchTermEntry
	if len(schedule.SearchTerms) > 0 {
		entries = BuildInlineTerms(schedule.SearchTerms)
	}
	terms := SelectTerms(filterInSeason(entries, time.Now().UTC().Month()))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(termConcurrency)
	for i := range terms {
		term := terms[i]
		g.Go(func() error {
			if job.CancelRequested() {
				return nil
			}
			return o.runTerm(gctx, job, term)
		})
	}
	return g.Wait()
}

func filterInSeason(entries []models.SearchTermEntry, month time.Month) []models.SearchTermEntry {
	out := make([]models.SearchTermEntry, 0, len(entries))
	for _, e := range entries {
		if e.InSeason(int(month)) {
			out = append(out, e)
		}
	}
	return out
}

// runTerm implements the §4.7 per-term loop.
func (o *Orchestrator) runTerm(ctx context.Context, job *models.CrawlJob, term models.SearchTermEntry) error {
	maxResults := term.MaxResults
	if maxResults == 0 {
		maxResults = defaultMaxResultsPerTerm
	}
	if o.Budget != nil {
		sessionKey := job.ID.String()
		if ok, reason, err := o.Budget.CanContinueSession(ctx, sessionKey, "searches"); err != nil {
			return fmt.Errorf("checking session search budget: %w", err)
		} else if !ok {
			o.log.Warn("session search budget exhausted, skipping term", "job_id", sessionKey, "term", term.Term, "reason", reason)
			return nil
		}
	}
	searchCtx, searchSpan := tracing.StartSpan(ctx, tracer, "externalservices.search")
	results, err := o.Search.Search(searchCtx, term.Term, maxResults)
	searchSpan.End()
	if err != nil {
		return fmt.Errorf("searching term %q: %w", term.Term, err)
	}
	o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsFound: len(results), SerpAPICallsUsed: 1})

	for _, r := range results {
		if job.CancelRequested() {
			return nil
		}
		class := ClassifyURL(o.Domains, r.URL, r.Title)
		switch class {
		case models.URLClassSkip:
			o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsSkipped: 1})
			continue
		case models.URLClassCompetition:
			if err := o.handleCompetitionDomainSeen(ctx, job.ID, r.URL); err != nil {
				o.log.Warn("competition domain bookkeeping failed", "url", r.URL, "error", err.Error())
			}
			continue
		case models.URLClassList:
			if err := o.runListPage(ctx, job, term, r); err != nil {
				o.log.Warn("list page flow failed", "url", r.URL, "error", err.Error())
			}
		default:
			if err := o.runSingleProduct(ctx, job, term, r); err != nil {
				o.log.Warn("single-product flow failed", "url", r.URL, "error", err.Error())
			}
		}
	}
	return nil
}

// EnrichSkeleton implements the Scheduler's enrich_skeletons duty (§4.9):
// it re-runs the single-product discovery flow against a skeleton's own
// name/brand, so a matching source the original discovery never found gets
// folded into the same product by the Product Writer's fingerprint/fuzzy
// dedup rather than spawning a second row.
func (o *Orchestrator) EnrichSkeleton(ctx context.Context, job *models.CrawlJob, product *models.Product) error {
	query := product.Name
	if product.Brand != nil && *product.Brand != "" {
		query = *product.Brand + " " + product.Name
	}
	term := models.SearchTermEntry{Term: query, ProductType: product.ProductType, MaxResults: 3}
	return o.runTerm(ctx, job, term)
}

// runSingleProduct implements the §4.7 Single-product flow.
func (o *Orchestrator) runSingleProduct(ctx context.Context, job *models.CrawlJob, term models.SearchTermEntry, r externalservices.SearchResult) error {
	result := &models.DiscoveryResult{ID: uuid.New(), JobID: job.ID, SourceURL: r.URL, Domain: domainintel.Domain(r.URL), Title: r.Title, SearchRank: r.Rank, Status: models.DiscoveryResultProcessing}
	if o.Results != nil {
		_ = o.Results.Create(ctx, nil, result)
	}

	if existing, err := o.Products.GetByURL(ctx, nil, r.URL); err == nil && existing != nil {
		o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ProductsDuplicate: 1})
		return o.markDuplicate(ctx, result)
	}
	if candidates, err := o.Products.FindByNamePrefix(ctx, nil, term.ProductType, productwriter.NamePrefix(r.Title), 25); err == nil {
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.Name)
		}
		if _, score, ok := productwriter.BestFuzzyMatch(r.Title, names); ok && score >= 0.85 {
			o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ProductsDuplicate: 1})
			return o.markDuplicate(ctx, result)
		}
	}

	if o.Budget != nil {
		if ok, reason, err := o.Budget.CanContinueSession(ctx, job.ID.String(), "sources"); err != nil {
			return fmt.Errorf("checking session source budget: %w", err)
		} else if !ok {
			o.log.Warn("session source budget exhausted, skipping single-product source", "job_id", job.ID.String(), "url", r.URL, "reason", reason)
			o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsSkipped: 1})
			return o.markFailed(ctx, result, nil)
		}
	}

	crawlCtx, crawlSpan := tracing.StartSpan(ctx, tracer, "smartcrawler.extract_single")
	single, err := o.Crawl.ExtractSingle(crawlCtx, r.Title, term.ProductType, r.URL)
	crawlSpan.End()
	o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsCrawled: 1, ScrapingBeeCallsUsed: 1, AICallsUsed: 1})
	if err != nil || !single.Success {
		o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ErrorCount: 1})
		return o.markFailed(ctx, result, err)
	}

	writeResult, writeErr := o.Writer.Write(ctx, productwriter.Input{
		Data:            single.Data,
		SourceURL:       single.SourceURL,
		ProductType:     term.ProductType,
		DiscoverySource: models.DiscoverySourceSearch,
		CheckExisting:   true,
	})
	if writeErr != nil {
		o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ErrorCount: 1})
		return o.markFailed(ctx, result, writeErr)
	}
	writeDeltas := models.JobCounterDeltas{ProductsFound: 1}
	if writeResult.Created {
		writeDeltas.ProductsNew = 1
	} else {
		writeDeltas.ProductsUpdated = 1
	}
	o.incrementCounters(ctx, job.ID, writeDeltas)
	return o.markSuccess(ctx, result)
}

// runListPage implements the §4.7 List-page flow.
func (o *Orchestrator) runListPage(ctx context.Context, job *models.CrawlJob, term models.SearchTermEntry, r externalservices.SearchResult) error {
	if o.Budget != nil {
		if ok, reason, err := o.Budget.CanContinueSession(ctx, job.ID.String(), "sources"); err != nil {
			return fmt.Errorf("checking session source budget: %w", err)
		} else if !ok {
			o.log.Warn("session source budget exhausted, skipping list page", "job_id", job.ID.String(), "url", r.URL, "reason", reason)
			o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsSkipped: 1})
			return nil
		}
	}
	fetchCtx, fetchSpan := tracing.StartSpan(ctx, tracer, "externalservices.fetch")
	fetched, err := o.Fetch.FetchPage(fetchCtx, r.URL, false)
	fetchSpan.End()
	if err != nil {
		o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ErrorCount: 1})
		return fmt.Errorf("fetching list page %s: %w", r.URL, err)
	}
	o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsCrawled: 1, ScrapingBeeCallsUsed: 1})
	trimmed := smartcrawler.TrimContent(fetched.HTML)
	hint := string(term.ProductType)
	extractCtx, extractSpan := tracing.StartSpan(ctx, tracer, "externalservices.extract")
	resp, err := o.Extract.Extract(extractCtx, trimmed, r.URL, &hint)
	extractSpan.End()
	o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{AICallsUsed: 1})
	if err != nil {
		o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ErrorCount: 1})
		return fmt.Errorf("extracting list page %s: %w", r.URL, err)
	}
	if resp.Kind != externalservices.ExtractionKindMultiProduct {
		return nil
	}

	entries := resp.Products
	if len(entries) > MaxProductsPerListPage {
		entries = entries[:MaxProductsPerListPage]
	}
	o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsFound: len(entries)})

	base, _ := url.Parse(r.URL)
	for _, entry := range entries {
		name, _ := entry.Fields["name"].(string)
		if name == "" {
			o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsSkipped: 1})
			continue
		}
		if candidates, err := o.Products.FindByNamePrefix(ctx, nil, term.ProductType, productwriter.NamePrefix(name), 25); err == nil {
			names := make([]string, 0, len(candidates))
			for _, c := range candidates {
				names = append(names, c.Name)
			}
			if _, score, ok := productwriter.BestFuzzyMatch(name, names); ok && score >= 0.85 {
				o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ProductsDuplicate: 1})
				continue
			}
		}

		resolvedLink := resolveLink(base, entry.Link)
		var data models.FieldMap = entry.Fields
		sourceURL := r.URL
		partial := true

		if resolvedLink != "" {
			if single, err := o.Crawl.ExtractSingle(ctx, name, term.ProductType, resolvedLink); err == nil && single.Success {
				data = single.Data
				sourceURL = single.SourceURL
				partial = false
				o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsCrawled: 1, ScrapingBeeCallsUsed: 1, AICallsUsed: 1})
			} else {
				o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsCrawled: 1, ScrapingBeeCallsUsed: 1, AICallsUsed: 1, ErrorCount: 1})
			}
		}

		if partial {
			searchQuery := fmt.Sprintf("%v %s %s", entry.Fields["brand"], name, term.ProductType)
			if results, err := o.Search.Search(ctx, searchQuery, 3); err == nil {
				o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{SerpAPICallsUsed: 1})
				for _, sr := range results {
					if o.Domains.IsSkip(sr.URL) {
						continue
					}
					if _, isComp := o.Domains.CompetitionParserKey(sr.URL); isComp {
						continue
					}
					if single, err := o.Crawl.ExtractSingle(ctx, name, term.ProductType, sr.URL); err == nil && single.Success {
						data = single.Data
						sourceURL = single.SourceURL
						partial = false
						o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{URLsCrawled: 1, ScrapingBeeCallsUsed: 1, AICallsUsed: 1})
					}
					break
				}
			}
		}

		writeResult, writeErr := o.Writer.Write(ctx, productwriter.Input{
			Data:            data,
			SourceURL:       sourceURL,
			ProductType:     term.ProductType,
			DiscoverySource: models.DiscoverySourceListPage,
			CheckExisting:   true,
		})
		if writeErr != nil {
			o.log.Warn("list-page product write failed", "name", name, "error", writeErr.Error())
			o.incrementCounters(ctx, job.ID, models.JobCounterDeltas{ErrorCount: 1})
			continue
		}
		writeDeltas := models.JobCounterDeltas{ProductsFound: 1}
		if writeResult.Created {
			writeDeltas.ProductsNew = 1
		} else {
			writeDeltas.ProductsUpdated = 1
		}
		o.incrementCounters(ctx, job.ID, writeDeltas)
	}
	return nil
}

func resolveLink(base *url.URL, link string) string {
	if link == "" || base == nil {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// handleCompetitionDomainSeen implements §4.7's "Competition handling in
// discovery": look up an existing schedule for the domain; if one already
// tracks it, count the URL as skipped and defer to that schedule's own
// competition-category run rather than re-processing it inline; otherwise
// create an inactive schedule so a human can review and activate it.
func (o *Orchestrator) handleCompetitionDomainSeen(ctx context.Context, jobID uuid.UUID, rawURL string) error {
	domain := domainintel.Domain(rawURL)
	slug := "discovered-" + strings.ReplaceAll(domain, ".", "-")
	if o.Schedules == nil {
		return nil
	}
	if _, err := o.Schedules.GetBySlug(ctx, nil, slug); err == nil {
		o.incrementCounters(ctx, jobID, models.JobCounterDeltas{URLsSkipped: 1})
		return nil
	}
	parserKey, _ := o.Domains.CompetitionParserKey(rawURL)
	desc := fmt.Sprintf("Auto-discovered competition domain %s (parser: %s)", domain, parserKey)
	sch := &models.Schedule{
		ID:          uuid.New(),
		Slug:        slug,
		Category:    models.ScheduleCategoryCompetition,
		IsActive:    false,
		Description: &desc,
	}
	return o.Schedules.Update(ctx, nil, sch)
}

func (o *Orchestrator) markDuplicate(ctx context.Context, r *models.DiscoveryResult) error {
	if o.Results == nil {
		return nil
	}
	return o.Results.UpdateStatus(ctx, nil, r.ID, models.DiscoveryResultDuplicate, nil)
}

func (o *Orchestrator) markSuccess(ctx context.Context, r *models.DiscoveryResult) error {
	if o.Results == nil {
		return nil
	}
	return o.Results.UpdateStatus(ctx, nil, r.ID, models.DiscoveryResultSuccess, nil)
}

func (o *Orchestrator) markFailed(ctx context.Context, r *models.DiscoveryResult, cause error) error {
	if o.Results == nil {
		return nil
	}
	msg := "extraction failed"
	if cause != nil {
		msg = cause.Error()
	}
	return o.Results.UpdateStatus(ctx, nil, r.ID, models.DiscoveryResultFailed, &msg)
}

// processSource is a legacy alias for crawlSource, kept for call sites that
// predate the rename.
func (o *Orchestrator) processSource(ctx context.Context, job *models.CrawlJob, term models.SearchTermEntry, r externalservices.SearchResult) error {
	return o.crawlSource(ctx, job, term, r)
}

func (o *Orchestrator) crawlSource(ctx context.Context, job *models.CrawlJob, term models.SearchTermEntry, r externalservices.SearchResult) error {
	class := ClassifyURL(o.Domains, r.URL, r.Title)
	if class == models.URLClassList {
		return o.runListPage(ctx, job, term, r)
	}
	return o.runSingleProduct(ctx, job, term, r)
}
