package productwriter

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/store"
)

// fakeProductStore is an in-memory store.ProductStore used to exercise the
// Writer's algorithm without a real database, the way the teacher's
// postgres store tests isolate SQL behavior behind sqlmock while keeping
// business logic tests store-implementation-agnostic.
type fakeProductStore struct {
	db           *sqlx.DB
	byID         map[uuid.UUID]*models.Product
	byURL        map[string]uuid.UUID
	byFingerprint map[string]uuid.UUID
	names        []store.ProductNameCandidate
}

func newFakeProductStore(db *sqlx.DB) *fakeProductStore {
	return &fakeProductStore{
		db:            db,
		byID:          map[uuid.UUID]*models.Product{},
		byURL:         map[string]uuid.UUID{},
		byFingerprint: map[string]uuid.UUID{},
	}
}

func (f *fakeProductStore) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return f.db.BeginTxx(ctx, opts)
}

func (f *fakeProductStore) GetByURL(ctx context.Context, exec store.Querier, url string) (*models.Product, error) {
	id, ok := f.byURL[url]
	if !ok {
		return nil, nil
	}
	return f.byID[id], nil
}

func (f *fakeProductStore) GetByFingerprint(ctx context.Context, exec store.Querier, fp string) (*models.Product, error) {
	id, ok := f.byFingerprint[fp]
	if !ok {
		return nil, nil
	}
	return f.byID[id], nil
}

func (f *fakeProductStore) GetByID(ctx context.Context, exec store.Querier, id uuid.UUID) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (f *fakeProductStore) FindByNamePrefix(ctx context.Context, exec store.Querier, pt models.ProductTypeEnum, prefix string, limit int) ([]store.ProductNameCandidate, error) {
	return f.names, nil
}

func (f *fakeProductStore) ListSkeletons(ctx context.Context, exec store.Querier, limit int) ([]*models.Product, error) {
	return nil, nil
}

func (f *fakeProductStore) Create(ctx context.Context, exec store.Querier, p *models.Product) error {
	if _, exists := f.byFingerprint[p.Fingerprint]; exists {
		return errFingerprintExists
	}
	f.byID[p.ID] = p
	f.byFingerprint[p.Fingerprint] = p.ID
	if p.SourceURL != nil {
		f.byURL[*p.SourceURL] = p.ID
	}
	return nil
}

func (f *fakeProductStore) UpdateEmptyColumns(ctx context.Context, exec store.Querier, id uuid.UUID, patch models.FieldMap) error {
	p := f.byID[id]
	existing := p.ToFieldMap()
	for k, v := range patch {
		if _, present := existing[k]; present {
			continue
		}
		applyField(p, k, v)
	}
	return nil
}

func (f *fakeProductStore) AppendListFields(ctx context.Context, exec store.Querier, id uuid.UUID, lists map[string][]string) error {
	p := f.byID[id]
	for k, v := range lists {
		switch k {
		case "primary_aromas":
			p.PrimaryAromas = dedupAppend(p.PrimaryAromas, v)
		case "palate_flavors":
			p.PalateFlavors = dedupAppend(p.PalateFlavors, v)
		case "finish_flavors":
			p.FinishFlavors = dedupAppend(p.FinishFlavors, v)
		case "images":
			p.Images = dedupAppend(p.Images, v)
		case "ratings":
			p.Ratings = dedupAppend(p.Ratings, v)
		}
	}
	return nil
}

func (f *fakeProductStore) UpdateStatusAndECP(ctx context.Context, exec store.Querier, id uuid.UUID, status models.ProductStatusEnum, completeness, ecpTotal decimal.Decimal, ecpByGroup []byte) error {
	p := f.byID[id]
	p.Status = status
	p.CompletenessScore = completeness
	p.ECPTotal = ecpTotal
	p.ECPByGroup = ecpByGroup
	return nil
}

func (f *fakeProductStore) AppendVerifiedFields(ctx context.Context, exec store.Querier, id uuid.UUID, fields []string) error {
	return nil
}

func (f *fakeProductStore) UpdateSourceCount(ctx context.Context, exec store.Querier, id uuid.UUID, count int) error {
	return nil
}

func (f *fakeProductStore) ListAwards(ctx context.Context, exec store.Querier, productID uuid.UUID) ([]models.Award, error) {
	return nil, nil
}

func (f *fakeProductStore) CreateAward(ctx context.Context, exec store.Querier, a *models.Award) error {
	return nil
}
func (f *fakeProductStore) CreateRating(ctx context.Context, exec store.Querier, r *models.Rating) error {
	return nil
}
func (f *fakeProductStore) CreateImage(ctx context.Context, exec store.Querier, img *models.Image) error {
	return nil
}
func (f *fakeProductStore) CreateProductSource(ctx context.Context, exec store.Querier, ps *models.ProductSource) error {
	return nil
}
func (f *fakeProductStore) CreateProductFieldSource(ctx context.Context, exec store.Querier, pfs *models.ProductFieldSource) error {
	return nil
}

func dedupAppend(existing []string, add []string) []string {
	seen := map[string]bool{}
	for _, v := range existing {
		seen[v] = true
	}
	out := append([]string{}, existing...)
	for _, v := range add {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

func applyField(p *models.Product, key string, v interface{}) {
	switch key {
	case "category":
		p.Category = toStringPtr(v)
	case "region":
		p.Region = toStringPtr(v)
	case "country":
		p.Country = toStringPtr(v)
	case "age_statement":
		p.AgeStatement = toIntPtr(v)
	case "primary_cask":
		p.PrimaryCask = toStringPtr(v)
	case "mouthfeel":
		p.Mouthfeel = toStringPtr(v)
	}
}

type fakeBrandStore struct {
	bySlug map[string]*models.Brand
}

func newFakeBrandStore() *fakeBrandStore {
	return &fakeBrandStore{bySlug: map[string]*models.Brand{}}
}

func (f *fakeBrandStore) FindOrCreate(ctx context.Context, exec store.Querier, slug, name string) (*models.Brand, error) {
	if b, ok := f.bySlug[slug]; ok {
		return b, nil
	}
	b := &models.Brand{ID: uuid.New(), Slug: slug, Name: name}
	f.bySlug[slug] = b
	return b, nil
}

type fakeTransactor struct{ db *sqlx.DB }

func (f *fakeTransactor) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return f.db.BeginTxx(ctx, opts)
}

func newTestWriter(t *testing.T) (*Writer, *fakeProductStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "postgres")
	products := newFakeProductStore(sqlxDB)
	brands := newFakeBrandStore()

	w := New(products, brands, &fakeTransactor{db: sqlxDB},
		func(pt models.ProductTypeEnum) []models.FieldGroup { return models.DefaultFieldGroups(pt) },
		func(pt models.ProductTypeEnum) models.ProductTypeConfig { return models.DefaultProductTypeConfig(pt) },
		nil,
	)
	return w, products, mock, func() { _ = db.Close() }
}

func TestWrite_InvalidProductTypeRejectsBeforeDBWork(t *testing.T) {
	w, _, mock, cleanup := newTestWriter(t)
	defer cleanup()

	result, err := w.Write(context.Background(), Input{
		Data:        map[string]interface{}{"name": "Foo"},
		ProductType: models.ProductTypeEnum("gin"),
	})
	if err == nil {
		t.Fatalf("expected an error for an invalid product type")
	}
	if result.Created {
		t.Fatalf("should not create on validation failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no DB calls should have been made: %v", err)
	}
}

func TestWrite_CreatesNewProduct(t *testing.T) {
	w, products, mock, cleanup := newTestWriter(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := w.Write(context.Background(), Input{
		Data: map[string]interface{}{
			"name": "Glen Foo 12", "brand": "Glen Foo", "abv": "40%",
			"region": "Speyside", "country": "Scotland", "category": "single malt scotch whisky",
			"volume_ml": "700ml", "description": "A fine dram.",
			"primary_aromas": []string{"vanilla"}, "finish_flavors": []string{"pepper"},
			"age_statement": "12 Year Old", "primary_cask": "ex-bourbon", "palate_flavors": []string{"honey"},
		},
		SourceURL:     "https://example.com/glen-foo-12",
		ProductType:   models.ProductTypeWhiskey,
		CheckExisting: true,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !result.Created {
		t.Fatalf("expected a new product to be created")
	}
	if result.Product.Status != models.ProductStatusBaseline && result.Product.Status != models.ProductStatusEnriched {
		t.Fatalf("status = %v, want baseline or higher", result.Product.Status)
	}
	if _, ok := products.byFingerprint[result.Product.Fingerprint]; !ok {
		t.Fatalf("product not indexed by fingerprint")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWrite_DedupByURLUpdatesExisting(t *testing.T) {
	w, products, mock, cleanup := newTestWriter(t)
	defer cleanup()

	existing := &models.Product{
		ID: uuid.New(), Name: "Glen Foo 12", ProductType: models.ProductTypeWhiskey,
		Fingerprint: "preexisting-fp",
	}
	url := "https://example.com/glen-foo-12"
	existing.SourceURL = &url
	products.byID[existing.ID] = existing
	products.byURL[url] = existing.ID

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := w.Write(context.Background(), Input{
		Data:          map[string]interface{}{"name": "Glen Foo 12", "region": "Speyside"},
		SourceURL:     url,
		ProductType:   models.ProductTypeWhiskey,
		CheckExisting: true,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Created {
		t.Fatalf("expected an update, not a create")
	}
	if result.Product.ID != existing.ID {
		t.Fatalf("expected the same product identity to be returned")
	}
	if result.Product.Region == nil || *result.Product.Region != "Speyside" {
		t.Fatalf("expected the empty region column to be filled in, got %v", result.Product.Region)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestWrite_FuzzyNameMatchFindsExisting(t *testing.T) {
	w, products, mock, cleanup := newTestWriter(t)
	defer cleanup()

	existing := &models.Product{
		ID: uuid.New(), Name: "Glen Foo 12 Year Old Single Malt", ProductType: models.ProductTypeWhiskey,
		Fingerprint: "other-fp",
	}
	products.byID[existing.ID] = existing
	products.names = []store.ProductNameCandidate{{ID: existing.ID, Name: existing.Name}}

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := w.Write(context.Background(), Input{
		Data:          map[string]interface{}{"name": "Glen Foo 12 Year Old Single Malt (2019)"},
		ProductType:   models.ProductTypeWhiskey,
		CheckExisting: true,
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if result.Created {
		t.Fatalf("expected the fuzzy-name match to resolve to the existing product")
	}
	if result.Product.ID != existing.ID {
		t.Fatalf("expected fuzzy match to return existing product identity")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

var errFingerprintExists = errors.New("fingerprint already exists")
