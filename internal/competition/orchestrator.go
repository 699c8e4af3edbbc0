package competition

import (
	"context"
	"fmt"

	"github.com/shelfmark/productpipeline/internal/domainintel"
	"github.com/shelfmark/productpipeline/internal/externalservices"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/productwriter"
	"github.com/shelfmark/productpipeline/internal/queue"
	"github.com/shelfmark/productpipeline/internal/store"
	"github.com/shelfmark/productpipeline/internal/tracing"
)

var tracer = tracing.Tracer("competition")

// skeletonNamePrefixLimit bounds the candidate set queried from the name
// index before fuzzy matching, matching the Product Writer's own dedup step.
const skeletonNamePrefixLimit = 50

// fuzzyMatchThreshold is the minimum score at which a medalled entry is
// considered the same product as an existing row (§4.8 "upsert an existing
// product by fingerprint name match").
const fuzzyMatchThreshold = 0.85

// Result is run_competition_discovery's return value (§4.8 Contract).
type Result struct {
	AwardsFound       int
	SkeletonsCreated  int
	SkeletonsUpdated  int
	Errors            []string
	AwardsData        []ParsedAward
}

// Orchestrator implements the Competition Orchestrator (L8).
type Orchestrator struct {
	Domains  *domainintel.DomainSets
	Products store.ProductStore
	Writer   *productwriter.Writer
	Fetch    externalservices.Fetcher
	Queue    *queue.Queue

	log *logging.Logger
}

// New builds an Orchestrator.
func New(domains *domainintel.DomainSets, products store.ProductStore, writer *productwriter.Writer,
	fetch externalservices.Fetcher, q *queue.Queue) *Orchestrator {
	return &Orchestrator{Domains: domains, Products: products, Writer: writer, Fetch: fetch, Queue: q, log: logging.For("competition")}
}

// Run implements §4.8's run_competition_discovery contract: parse awards,
// upsert-or-create a skeleton product per medalled entry, and enqueue each
// touched skeleton for enrichment.
func (o *Orchestrator) Run(ctx context.Context, sourceContent, sourceURL string, productTypes []models.ProductTypeEnum, maxResultsPerTerm int) (Result, error) {
	competition, year := o.competitionIdentity(sourceURL)
	parsed := ParseAwards(sourceContent, competition, year, productTypes)
	if maxResultsPerTerm > 0 && len(parsed) > maxResultsPerTerm {
		o.log.Warn("truncating competition results page", "url", sourceURL, "found", len(parsed), "cap", maxResultsPerTerm)
		parsed = parsed[:maxResultsPerTerm]
	}

	result := Result{AwardsData: parsed}
	for _, award := range parsed {
		if err := o.applyAward(ctx, sourceURL, award, &result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", award.Name, err))
			continue
		}
		result.AwardsFound++
	}
	return result, nil
}

// HandleDiscoveredCompetition satisfies scheduler.CompetitionRunner: it
// fetches a competition-category schedule's base URL and runs it through
// Run, so the Scheduler can dispatch a competition run without knowing
// anything about award parsing.
func (o *Orchestrator) HandleDiscoveredCompetition(ctx context.Context, sourceURL, title string, productTypes []models.ProductTypeEnum) error {
	fetchCtx, span := tracing.StartSpan(ctx, tracer, "externalservices.fetch")
	fetched, err := o.Fetch.FetchPage(fetchCtx, sourceURL, false)
	span.End()
	if err != nil {
		return fmt.Errorf("fetching competition page %s: %w", sourceURL, err)
	}
	_, err = o.Run(ctx, fetched.HTML, sourceURL, productTypes, 0)
	return err
}

func (o *Orchestrator) competitionIdentity(sourceURL string) (name string, year int) {
	if key, ok := o.Domains.CompetitionParserKey(sourceURL); ok {
		name = key
	} else {
		name = domainintel.Domain(sourceURL)
	}
	return name, 0
}

// applyAward implements §4.8's per-entry upsert-or-create step.
func (o *Orchestrator) applyAward(ctx context.Context, sourceURL string, award ParsedAward, result *Result) error {
	data := models.FieldMap{"name": award.Name}
	if award.Brand != "" {
		data["brand"] = award.Brand
	}

	existing, err := o.findExistingProduct(ctx, award)
	if err != nil {
		return err
	}
	if existing != nil {
		return o.appendAwardIfNew(ctx, existing, award, result)
	}

	writeResult, err := o.Writer.Write(ctx, productwriter.Input{
		Data:            data,
		SourceURL:       sourceURL,
		ProductType:     award.ProductType,
		DiscoverySource: models.DiscoverySourceCompetition,
		CheckExisting:   true,
		Awards: []productwriter.AwardInput{
			{Competition: award.Competition, Year: award.Year, Medal: award.Medal},
		},
	})
	if err != nil {
		return err
	}
	if writeResult.Created {
		result.SkeletonsCreated++
	} else {
		result.SkeletonsUpdated++
	}
	if writeResult.Product != nil {
		o.enqueueEnrichment(ctx, writeResult.Product.ID.String())
	}
	return nil
}

// findExistingProduct runs the fingerprint/fuzzy-name half of §4.8's
// upsert-or-create decision directly against ProductStore, ahead of
// invoking the Writer (which would otherwise have created a second,
// award-less skeleton before the award could be attached).
func (o *Orchestrator) findExistingProduct(ctx context.Context, award ParsedAward) (*models.Product, error) {
	fp := productwriter.Fingerprint(award.Name, nil, nil, nil)
	if p, err := o.Products.GetByFingerprint(ctx, nil, fp); err == nil && p != nil {
		return p, nil
	}
	candidates, err := o.Products.FindByNamePrefix(ctx, nil, award.ProductType, productwriter.NamePrefix(award.Name), skeletonNamePrefixLimit)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(candidates))
	byName := map[string]store.ProductNameCandidate{}
	for _, c := range candidates {
		names = append(names, c.Name)
		byName[c.Name] = c
	}
	bestName, score, ok := productwriter.BestFuzzyMatch(award.Name, names)
	if !ok || score < fuzzyMatchThreshold {
		return nil, nil
	}
	return o.Products.GetByID(ctx, nil, byName[bestName].ID)
}

// appendAwardIfNew implements §4.8's "appending the new award row unless
// one already exists for {competition, year}".
func (o *Orchestrator) appendAwardIfNew(ctx context.Context, product *models.Product, award ParsedAward, result *Result) error {
	existingAwards, err := o.Products.ListAwards(ctx, nil, product.ID)
	if err != nil {
		return err
	}
	for _, a := range existingAwards {
		if a.Competition == award.Competition && a.Year == award.Year {
			return nil
		}
	}
	if err := o.Products.CreateAward(ctx, nil, &models.Award{
		ProductID: product.ID, Competition: award.Competition, Year: award.Year, Medal: award.Medal,
	}); err != nil {
		return err
	}
	result.SkeletonsUpdated++
	o.enqueueEnrichment(ctx, product.ID.String())
	return nil
}

// enqueueEnrichment implements §4.8's "Enqueue each new or under-populated
// skeleton for enrichment: enrich_skeletons worker will later pick them up".
func (o *Orchestrator) enqueueEnrichment(ctx context.Context, productID string) {
	if o.Queue == nil {
		return
	}
	if err := o.Queue.Push(ctx, queue.Enrichment, "enrich_skeleton", map[string]string{"product_id": productID}); err != nil {
		o.log.Warn("failed to enqueue skeleton enrichment", "product_id", productID, "error", err.Error())
	}
}
