// Package productwriter is the only path that creates or updates a Product
// (§4.2). It validates product type, deduplicates by fingerprint, URL, and
// fuzzy name, resolves the brand, writes the product and its child evidence
// rows inside one transaction, then calls the ECP Calculator and Quality
// Gate before returning.
package productwriter

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/ecp"
	"github.com/shelfmark/productpipeline/internal/errs"
	"github.com/shelfmark/productpipeline/internal/httpapi"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/normalizer"
	"github.com/shelfmark/productpipeline/internal/qualitygate"
	"github.com/shelfmark/productpipeline/internal/store"
	"github.com/shelfmark/productpipeline/internal/tracing"
)

var tracer = tracing.Tracer("productwriter")

// AwardInput is one award row to create alongside the product (§3 Award).
type AwardInput struct {
	Competition string
	Year        int
	Medal       string
	Category    *string
	Score       *decimal.Decimal
}

// RatingInput is one rating row to create alongside the product (§3 Rating).
type RatingInput struct {
	Source   string
	Score    decimal.Decimal
	Max      decimal.Decimal
	Reviewer *string
}

// ImageInput is one image row to create alongside the product (§3 Image).
type ImageInput struct {
	URL     string
	TypeTag string
}

// Input is the Product Writer's full contract (§4.2 Contract).
type Input struct {
	Data            map[string]interface{}
	SourceURL       string
	ProductType     models.ProductTypeEnum
	DiscoverySource models.DiscoverySourceEnum
	CrawledSourceID *string

	Confidences          map[string]decimal.Decimal
	ExtractionConfidence *decimal.Decimal

	Awards  []AwardInput
	Ratings []RatingInput
	Images  []ImageInput

	CheckExisting bool
	Enrich        bool
}

// Result is what the Product Writer returns (§4.2 Output).
type Result struct {
	Product *models.Product
	Created bool
	Error   string
}

// EnrichmentDispatcher is called when Enrich is true and the write
// succeeded, to hand the product to the Verification Pipeline
// asynchronously (§4.2 step 8).
type EnrichmentDispatcher interface {
	DispatchVerification(ctx context.Context, productID string)
}

// Writer is the Product Writer (L2).
type Writer struct {
	Products    store.ProductStore
	Brands      store.BrandStore
	Tx          store.Transactor
	FieldGroups func(pt models.ProductTypeEnum) []models.FieldGroup
	GateConfig  func(pt models.ProductTypeEnum) models.ProductTypeConfig
	Dispatcher  EnrichmentDispatcher
	Now         func() time.Time

	log *logging.Logger
}

// New constructs a Writer. now defaults to time.Now when nil (tests inject
// a fixed clock for deterministic ECP timestamps).
func New(products store.ProductStore, brands store.BrandStore, tx store.Transactor,
	fieldGroups func(models.ProductTypeEnum) []models.FieldGroup,
	gateConfig func(models.ProductTypeEnum) models.ProductTypeConfig,
	dispatcher EnrichmentDispatcher) *Writer {
	return &Writer{
		Products:    products,
		Brands:      brands,
		Tx:          tx,
		FieldGroups: fieldGroups,
		GateConfig:  gateConfig,
		Dispatcher:  dispatcher,
		Now:         func() time.Time { return time.Now().UTC() },
		log:         logging.For("productwriter"),
	}
}

// Write runs the full §4.2 algorithm. It never panics on validation
// failure; a rejected input comes back as Result{Created: false, Error: ...}.
func (w *Writer) Write(ctx context.Context, in Input) (Result, error) {
	// Step 1: product-type validation, before any normalization or DB work.
	if !in.ProductType.IsValid() {
		return Result{Error: fmt.Sprintf("invalid product type: %s", in.ProductType)}, errs.ErrInvalidProductType
	}

	ctx, span := tracing.StartSpan(ctx, tracer, "productwriter.write")
	defer span.End()

	// Step 2: normalization.
	normalized := normalizer.Normalize(in.Data)
	fields := models.FieldMap(normalized)

	checkExisting := in.CheckExisting
	candidate := buildProduct(fields, in.ProductType, in.SourceURL, in.DiscoverySource)

	tx, err := w.Tx.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin product write transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := w.findExisting(ctx, tx, checkExisting, in.SourceURL, candidate, in.ProductType)
	if err != nil {
		return Result{}, fmt.Errorf("dedup lookup: %w", err)
	}

	var product *models.Product
	created := false

	if existing != nil {
		if err := w.applyUpdate(ctx, tx, existing, fields); err != nil {
			return Result{}, fmt.Errorf("update existing product: %w", err)
		}
		product = existing
	} else {
		brandName, _ := fields["brand"].(string)
		if brandName != "" {
			brand, err := w.Brands.FindOrCreate(ctx, tx, Slugify(brandName), brandName)
			if err != nil {
				return Result{}, fmt.Errorf("resolve brand: %w", err)
			}
			candidate.BrandID = &brand.ID
			candidate.Brand = &brand.Name
		}
		// Race-loss fallback: uniqueness on fingerprint is enforced in
		// storage, so an insert that loses a race is retried as an update
		// (§4.2 Concurrency).
		if err := w.Products.Create(ctx, tx, candidate); err != nil {
			raced, getErr := w.Products.GetByFingerprint(ctx, tx, candidate.Fingerprint)
			if getErr != nil || raced == nil {
				return Result{}, fmt.Errorf("create product: %w", err)
			}
			if err := w.applyUpdate(ctx, tx, raced, fields); err != nil {
				return Result{}, fmt.Errorf("update raced product: %w", err)
			}
			product = raced
		} else {
			product = candidate
			created = true
		}
	}

	if err := w.writeEvidence(ctx, tx, product, in); err != nil {
		return Result{}, fmt.Errorf("write evidence rows: %w", err)
	}

	if err := w.postWriteHooks(ctx, tx, product); err != nil {
		return Result{}, fmt.Errorf("post-write hooks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit product write: %w", err)
	}
	committed = true

	if in.Enrich && w.Dispatcher != nil {
		w.Dispatcher.DispatchVerification(ctx, product.ID.String())
	}

	w.log.Info("product written", "product_id", product.ID.String(), "created", created, "status", string(product.Status))
	return Result{Product: product, Created: created}, nil
}

// findExisting runs §4.2 step 4's three-stage dedup lookup.
func (w *Writer) findExisting(ctx context.Context, exec store.Querier, checkExisting bool, sourceURL string, candidate *models.Product, pt models.ProductTypeEnum) (*models.Product, error) {
	if !checkExisting {
		return nil, nil
	}
	if sourceURL != "" {
		if p, err := w.Products.GetByURL(ctx, exec, sourceURL); err == nil && p != nil {
			return p, nil
		}
	}
	if p, err := w.Products.GetByFingerprint(ctx, exec, candidate.Fingerprint); err == nil && p != nil {
		return p, nil
	}
	candidates, err := w.Products.FindByNamePrefix(ctx, exec, pt, NamePrefix(candidate.Name), 50)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(candidates))
	byName := map[string]store.ProductNameCandidate{}
	for _, c := range candidates {
		names = append(names, c.Name)
		byName[c.Name] = c
	}
	bestName, _, ok := BestFuzzyMatch(candidate.Name, names)
	if !ok {
		return nil, nil
	}
	match := byName[bestName]
	return w.Products.GetByID(ctx, exec, match.ID)
}

// applyUpdate implements §4.2 step 6's "update only empty columns" and
// list-append merge for an existing product.
func (w *Writer) applyUpdate(ctx context.Context, exec store.Querier, existing *models.Product, fields models.FieldMap) error {
	patch := emptyColumnPatch(existing, fields)
	if len(patch) > 0 {
		if err := w.Products.UpdateEmptyColumns(ctx, exec, existing.ID, patch); err != nil {
			return err
		}
	}
	lists := listFieldAppends(existing, fields)
	if len(lists) > 0 {
		if err := w.Products.AppendListFields(ctx, exec, existing.ID, lists); err != nil {
			return err
		}
	}
	refreshed, err := w.Products.GetByID(ctx, exec, existing.ID)
	if err != nil {
		return err
	}
	*existing = *refreshed
	return nil
}

// writeEvidence implements §4.2 step 7.
func (w *Writer) writeEvidence(ctx context.Context, exec store.Querier, product *models.Product, in Input) error {
	for _, a := range in.Awards {
		row := &models.Award{
			ProductID: product.ID, Competition: a.Competition, Year: a.Year,
			Medal: a.Medal, Category: a.Category, Score: a.Score,
		}
		if err := w.Products.CreateAward(ctx, exec, row); err != nil {
			return err
		}
	}
	for _, r := range in.Ratings {
		row := &models.Rating{
			ProductID: product.ID, Source: r.Source, Score: r.Score,
			Max: r.Max, Reviewer: r.Reviewer,
		}
		if err := w.Products.CreateRating(ctx, exec, row); err != nil {
			return err
		}
	}
	for _, img := range in.Images {
		row := &models.Image{ProductID: product.ID, URL: img.URL, TypeTag: img.TypeTag}
		if err := w.Products.CreateImage(ctx, exec, row); err != nil {
			return err
		}
	}
	if in.SourceURL != "" {
		sourceType := models.SourceTypeOther
		row := &models.ProductSource{ProductID: product.ID, URL: in.SourceURL, SourceType: sourceType}
		if err := w.Products.CreateProductSource(ctx, exec, row); err != nil {
			return err
		}
	}
	if len(in.Confidences) > 0 && in.SourceURL != "" {
		for field, conf := range in.Confidences {
			row := &models.ProductFieldSource{
				ProductID: product.ID, URL: in.SourceURL, FieldName: field, Confidence: conf,
			}
			if err := w.Products.CreateProductFieldSource(ctx, exec, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// postWriteHooks implements §4.2 step 8: ECP then Quality Gate.
func (w *Writer) postWriteHooks(ctx context.Context, exec store.Querier, product *models.Product) error {
	fields := product.ToFieldMap()
	groups := w.FieldGroups(product.ProductType)
	result, raw, err := ecp.BuildJSON(fields, groups, w.Now())
	if err != nil {
		return err
	}
	httpapi.ObserveECP(result.Total.Percentage)

	cfg := w.GateConfig(product.ProductType)
	assessment := qualitygate.Assess(qualitygate.Input{
		Fields:         fields,
		ProductType:    product.ProductType,
		Config:         cfg,
		PrecomputedECP: decimalPtr(result.Total.Percentage),
		ECPByGroup:     result.Groups,
	})

	product.Status = assessment.Status
	product.CompletenessScore = assessment.CompletenessScore
	product.ECPTotal = decimal.NewFromFloat(result.Total.Percentage)
	product.ECPByGroup = raw

	return w.Products.UpdateStatusAndECP(ctx, exec, product.ID, product.Status, product.CompletenessScore, product.ECPTotal, raw)
}

func decimalPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
