package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/queue"
	"github.com/shelfmark/productpipeline/internal/store"
)

type fakeScheduleStore struct {
	mu            sync.Mutex
	bySlug        map[string]*models.Schedule
	due           []*models.Schedule
	statsRecorded []models.RunStats
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{bySlug: map[string]*models.Schedule{}}
}

func (f *fakeScheduleStore) ListDue(ctx context.Context, exec store.Querier, now time.Time) ([]*models.Schedule, error) {
	return f.due, nil
}
func (f *fakeScheduleStore) GetBySlug(ctx context.Context, exec store.Querier, slug string) (*models.Schedule, error) {
	s, ok := f.bySlug[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}
func (f *fakeScheduleStore) Update(ctx context.Context, exec store.Querier, s *models.Schedule) error {
	f.bySlug[s.Slug] = s
	return nil
}
func (f *fakeScheduleStore) RecordRunStats(ctx context.Context, exec store.Querier, slug string, stats models.RunStats, nextRun *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsRecorded = append(f.statsRecorded, stats)
	if sch, ok := f.bySlug[slug]; ok {
		sch.NextRun = nextRun
		sch.TotalRuns++
		sch.TotalProductsFound += stats.ProductsFound
		sch.TotalProductsNew += stats.ProductsNew
		sch.TotalProductsDup += stats.ProductsDup
		sch.TotalProductsVerified += stats.ProductsVerified
	}
	return nil
}

type fakeJobStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.CrawlJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{byID: map[uuid.UUID]*models.CrawlJob{}}
}

func (f *fakeJobStore) Create(ctx context.Context, exec store.Querier, j *models.CrawlJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	cp := *j
	f.byID[j.ID] = &cp
	return nil
}
func (f *fakeJobStore) GetByID(ctx context.Context, exec store.Querier, id uuid.UUID) (*models.CrawlJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}
func (f *fakeJobStore) UpdateStatus(ctx context.Context, exec store.Querier, id uuid.UUID, status models.JobStatusEnum, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = status
	j.ErrorMessage = errMsg
	return nil
}
func (f *fakeJobStore) IncrementCounters(ctx context.Context, exec store.Querier, id uuid.UUID, deltas models.JobCounterDeltas) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	j.PagesProcessed += deltas.PagesProcessed
	j.ProductsFound += deltas.ProductsFound
	j.ProductsNew += deltas.ProductsNew
	j.ProductsUpdated += deltas.ProductsUpdated
	j.ProductsDuplicate += deltas.ProductsDuplicate
	j.ErrorCount += deltas.ErrorCount
	j.URLsFound += deltas.URLsFound
	j.URLsCrawled += deltas.URLsCrawled
	j.URLsSkipped += deltas.URLsSkipped
	j.SerpAPICallsUsed += deltas.SerpAPICallsUsed
	j.ScrapingBeeCallsUsed += deltas.ScrapingBeeCallsUsed
	j.AICallsUsed += deltas.AICallsUsed
	return nil
}

// fakeProductStore satisfies store.ProductStore; only ListSkeletons and
// GetByID carry test-relevant behavior, the rest are unused stubs.
type fakeProductStore struct {
	skeletons []*models.Product
	byID      map[uuid.UUID]*models.Product
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{byID: map[uuid.UUID]*models.Product{}}
}

func (f *fakeProductStore) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, nil
}
func (f *fakeProductStore) GetByURL(ctx context.Context, exec store.Querier, url string) (*models.Product, error) {
	return nil, store.ErrNotFound
}
func (f *fakeProductStore) GetByFingerprint(ctx context.Context, exec store.Querier, fp string) (*models.Product, error) {
	return nil, store.ErrNotFound
}
func (f *fakeProductStore) GetByID(ctx context.Context, exec store.Querier, id uuid.UUID) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}
func (f *fakeProductStore) FindByNamePrefix(ctx context.Context, exec store.Querier, pt models.ProductTypeEnum, prefix string, limit int) ([]store.ProductNameCandidate, error) {
	return nil, nil
}
func (f *fakeProductStore) ListSkeletons(ctx context.Context, exec store.Querier, limit int) ([]*models.Product, error) {
	if limit < len(f.skeletons) {
		return f.skeletons[:limit], nil
	}
	return f.skeletons, nil
}
func (f *fakeProductStore) Create(ctx context.Context, exec store.Querier, p *models.Product) error {
	return nil
}
func (f *fakeProductStore) UpdateEmptyColumns(ctx context.Context, exec store.Querier, id uuid.UUID, patch models.FieldMap) error {
	return nil
}
func (f *fakeProductStore) AppendListFields(ctx context.Context, exec store.Querier, id uuid.UUID, lists map[string][]string) error {
	return nil
}
func (f *fakeProductStore) UpdateStatusAndECP(ctx context.Context, exec store.Querier, id uuid.UUID, status models.ProductStatusEnum, completeness, ecpTotal decimal.Decimal, ecpByGroup []byte) error {
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

type fakeDiscoveryRunner struct {
	mu          sync.Mutex
	runErr      error
	runCalls    int
	onRun       func(job *models.CrawlJob)
	enrichCalls []*models.Product
	enrichErr   error
}

func (f *fakeDiscoveryRunner) Run(ctx context.Context, schedule *models.Schedule, job *models.CrawlJob) error {
	f.mu.Lock()
	f.runCalls++
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(job)
	}
	return f.runErr
}

func (f *fakeDiscoveryRunner) EnrichSkeleton(ctx context.Context, job *models.CrawlJob, product *models.Product) error {
	f.mu.Lock()
	f.enrichCalls = append(f.enrichCalls, product)
	f.mu.Unlock()
	return f.enrichErr
}

type fakeVerificationRunner struct {
	mu        sync.Mutex
	calls     []uuid.UUID
	verifyErr error
}

func (f *fakeVerificationRunner) VerifyProductByID(ctx context.Context, productID uuid.UUID) error {
	f.mu.Lock()
	f.calls = append(f.calls, productID)
	f.mu.Unlock()
	return f.verifyErr
}

type fakeCompetitionRunner struct {
	calls   int
	lastURL string
	err     error
}

func (f *fakeCompetitionRunner) HandleDiscoveredCompetition(ctx context.Context, sourceURL, title string, productTypes []models.ProductTypeEnum) error {
	f.calls++
	f.lastURL = sourceURL
	return f.err
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeScheduleStore, *fakeJobStore, *fakeProductStore, *fakeDiscoveryRunner, *fakeCompetitionRunner) {
	t.Helper()
	schedules := newFakeScheduleStore()
	jobs := newFakeJobStore()
	products := newFakeProductStore()
	discovery := &fakeDiscoveryRunner{}
	competition := &fakeCompetitionRunner{}
	s := New(schedules, jobs, products, nil, discovery, competition, Config{})
	return s, schedules, jobs, products, discovery, competition
}

func TestCheckDueSchedules_CreatesPendingJobPerDueSchedule(t *testing.T) {
	s, schedules, jobs, _, _, _ := newTestScheduler(t)
	schedules.due = []*models.Schedule{
		{ID: uuid.New(), Slug: "weekly-scan", Category: models.ScheduleCategoryDiscovery},
		{ID: uuid.New(), Slug: "iwsc-watch", Category: models.ScheduleCategoryCompetition},
	}

	s.checkDueSchedules(context.Background())

	require.Len(t, jobs.byID, 2)
	for _, j := range jobs.byID {
		assert.Equal(t, models.JobStatusPending, j.Status)
		require.NotNil(t, j.ScheduleID)
	}
}

func TestRunScheduledJob_DiscoveryCategoryCompletesAndRecordsStats(t *testing.T) {
	s, schedules, jobs, _, discovery, _ := newTestScheduler(t)
	sch := &models.Schedule{ID: uuid.New(), Slug: "weekly-scan", Category: models.ScheduleCategoryDiscovery, Frequency: time.Hour}
	schedules.bySlug[sch.Slug] = sch
	job := &models.CrawlJob{ID: uuid.New(), Status: models.JobStatusPending}
	require.NoError(t, jobs.Create(context.Background(), nil, job))

	discovery.onRun = func(j *models.CrawlJob) {
		_ = jobs.IncrementCounters(context.Background(), nil, j.ID, models.JobCounterDeltas{PagesProcessed: 3, ProductsFound: 5, ProductsNew: 2, ProductsUpdated: 1})
	}

	err := s.RunScheduledJob(context.Background(), sch.Slug, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, discovery.runCalls)

	stored, err := jobs.GetByID(context.Background(), nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	require.Len(t, schedules.statsRecorded, 1)
	assert.Equal(t, 5, schedules.statsRecorded[0].ProductsFound)
	assert.Equal(t, 2, schedules.statsRecorded[0].ProductsNew)
	require.NotNil(t, sch.NextRun)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), *sch.NextRun, 5*time.Second)
}

func TestRunScheduledJob_CompetitionCategoryInvokesCompetitionRunner(t *testing.T) {
	s, schedules, jobs, _, _, competition := newTestScheduler(t)
	baseURL := "https://iwsc.net/results/2024"
	sch := &models.Schedule{ID: uuid.New(), Slug: "iwsc-watch", Category: models.ScheduleCategoryCompetition, BaseURL: &baseURL, Frequency: 24 * time.Hour}
	schedules.bySlug[sch.Slug] = sch
	job := &models.CrawlJob{ID: uuid.New(), Status: models.JobStatusPending}
	require.NoError(t, jobs.Create(context.Background(), nil, job))

	err := s.RunScheduledJob(context.Background(), sch.Slug, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, competition.calls)
	assert.Equal(t, baseURL, competition.lastURL)

	stored, err := jobs.GetByID(context.Background(), nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
}

func TestRunScheduledJob_FailureMarksJobFailedWithoutRecordingStats(t *testing.T) {
	s, schedules, jobs, _, discovery, _ := newTestScheduler(t)
	sch := &models.Schedule{ID: uuid.New(), Slug: "weekly-scan", Category: models.ScheduleCategoryDiscovery, Frequency: time.Hour}
	schedules.bySlug[sch.Slug] = sch
	job := &models.CrawlJob{ID: uuid.New(), Status: models.JobStatusPending}
	require.NoError(t, jobs.Create(context.Background(), nil, job))
	discovery.runErr = errors.New("extraction backend unreachable")

	err := s.RunScheduledJob(context.Background(), sch.Slug, job.ID)
	require.Error(t, err)

	stored, getErr := jobs.GetByID(context.Background(), nil, job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "extraction backend unreachable")
	assert.Empty(t, schedules.statsRecorded)
}

func TestRunScheduledJob_CancellationDuringRunSkipsStats(t *testing.T) {
	s, schedules, jobs, _, discovery, _ := newTestScheduler(t)
	sch := &models.Schedule{ID: uuid.New(), Slug: "weekly-scan", Category: models.ScheduleCategoryDiscovery, Frequency: time.Hour}
	schedules.bySlug[sch.Slug] = sch
	job := &models.CrawlJob{ID: uuid.New(), Status: models.JobStatusPending}
	require.NoError(t, jobs.Create(context.Background(), nil, job))
	discovery.onRun = func(j *models.CrawlJob) { j.RequestCancel() }

	err := s.RunScheduledJob(context.Background(), sch.Slug, job.ID)
	require.NoError(t, err)

	stored, getErr := jobs.GetByID(context.Background(), nil, job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusCancelled, stored.Status)
	assert.Empty(t, schedules.statsRecorded)
}

func TestEnrichSkeletons_RunsEachSkeletonAndClosesJob(t *testing.T) {
	s, _, jobs, products, discovery, _ := newTestScheduler(t)
	products.skeletons = []*models.Product{
		{ID: uuid.New(), Name: "Glenfarclas 25 Year Old"},
		{ID: uuid.New(), Name: "Macallan Rare Cask"},
	}

	s.enrichSkeletons(context.Background())

	require.Len(t, discovery.enrichCalls, 2)
	require.Len(t, jobs.byID, 1)
	for _, j := range jobs.byID {
		assert.Equal(t, models.JobStatusCompleted, j.Status)
	}
}

func TestEnrichSkeletons_NoSkeletonsCreatesNoJob(t *testing.T) {
	s, _, jobs, _, discovery, _ := newTestScheduler(t)
	s.enrichSkeletons(context.Background())
	assert.Empty(t, discovery.enrichCalls)
	assert.Empty(t, jobs.byID)
}

func TestProcessEnrichmentQueue_PopsAndEnrichesQueuedProduct(t *testing.T) {
	schedules := newFakeScheduleStore()
	jobs := newFakeJobStore()
	products := newFakeProductStore()
	discovery := &fakeDiscoveryRunner{}
	competition := &fakeCompetitionRunner{}

	rdb, mock := redismock.NewClientMock()
	q := queue.New(rdb)

	productID := uuid.New()
	products.byID[productID] = &models.Product{ID: productID, Name: "Taylor Fladgate Vintage Port"}

	raw, err := json.Marshal(map[string]string{"product_id": productID.String()})
	require.NoError(t, err)
	encoded, err := json.Marshal(queue.Job{Kind: "enrich_product", Payload: raw})
	require.NoError(t, err)

	queueKey := "queue:" + queue.Enrichment
	mock.ExpectBLPop(popTimeout, queueKey).SetVal([]string{queueKey, string(encoded)})
	mock.ExpectBLPop(popTimeout, queueKey).RedisNil()

	s := New(schedules, jobs, products, q, discovery, competition, Config{ProcessQueueMaxURLs: 5})
	s.processEnrichmentQueue(context.Background())

	require.Len(t, discovery.enrichCalls, 1)
	assert.Equal(t, productID, discovery.enrichCalls[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEnrichmentQueue_VerifyProductKindDispatchesToVerificationRunner(t *testing.T) {
	schedules := newFakeScheduleStore()
	jobs := newFakeJobStore()
	products := newFakeProductStore()
	discovery := &fakeDiscoveryRunner{}
	competition := &fakeCompetitionRunner{}
	verification := &fakeVerificationRunner{}

	rdb, mock := redismock.NewClientMock()
	q := queue.New(rdb)

	productID := uuid.New()
	products.byID[productID] = &models.Product{ID: productID, Name: "Taylor Fladgate Vintage Port"}

	raw, err := json.Marshal(map[string]string{"product_id": productID.String()})
	require.NoError(t, err)
	encoded, err := json.Marshal(queue.Job{Kind: enrichmentKindVerify, Payload: raw})
	require.NoError(t, err)

	queueKey := "queue:" + queue.Enrichment
	mock.ExpectBLPop(popTimeout, queueKey).SetVal([]string{queueKey, string(encoded)})
	mock.ExpectBLPop(popTimeout, queueKey).RedisNil()

	s := New(schedules, jobs, products, q, discovery, competition, Config{ProcessQueueMaxURLs: 5})
	s.Verification = verification
	s.processEnrichmentQueue(context.Background())

	require.Len(t, verification.calls, 1)
	assert.Equal(t, productID, verification.calls[0])
	assert.Empty(t, discovery.enrichCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelJob_FlagsRegisteredJobAndReportsUnknown(t *testing.T) {
	s, _, _, _, _, _ := newTestScheduler(t)
	job := &models.CrawlJob{ID: uuid.New()}
	s.register(job)

	assert.True(t, s.CancelJob(job.ID))
	assert.True(t, job.CancelRequested())
	assert.False(t, s.CancelJob(uuid.New()))
}
