// Package scheduler implements the Scheduler (§4.9): a periodic beat
// dispatcher that drives the whole pipeline by checking due schedules,
// enriching skeleton products, and draining the enrichment queue the
// Competition Orchestrator feeds, following the teacher's
// internal/extraction GovernanceScheduler shape (ticker + stop channel +
// running flag) generalized to three independent duties.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/productpipeline/internal/httpapi"
	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/models"
	"github.com/shelfmark/productpipeline/internal/queue"
	"github.com/shelfmark/productpipeline/internal/store"
)

// Default intervals and batch bounds (§4.9 Periodic duties).
const (
	DefaultCheckDueInterval        = 5 * time.Minute
	DefaultEnrichSkeletonsInterval = 30 * time.Minute
	DefaultProcessQueueInterval    = 10 * time.Minute
	DefaultEnrichSkeletonsLimit    = 50
	DefaultProcessQueueMaxURLs     = 100
)

// popTimeout bounds how long processEnrichmentQueue blocks on an empty
// queue before concluding the backlog is drained for this tick.
const popTimeout = 2 * time.Second

// DiscoveryRunner is the slice of discovery.Orchestrator the Scheduler
// depends on: running a schedule's workload, and separately re-running a
// single skeleton product's discovery flow.
type DiscoveryRunner interface {
	Run(ctx context.Context, schedule *models.Schedule, job *models.CrawlJob) error
	EnrichSkeleton(ctx context.Context, job *models.CrawlJob, product *models.Product) error
}

// CompetitionRunner is the slice of competition.Orchestrator a competition-
// category schedule dispatches to.
type CompetitionRunner interface {
	HandleDiscoveredCompetition(ctx context.Context, sourceURL, title string, productTypes []models.ProductTypeEnum) error
}

// VerificationRunner is the slice of verification.Pipeline the
// process_enrichment_queue beat dispatches "verify_product" entries to
// (§4.6, §4.2 step 8).
type VerificationRunner interface {
	VerifyProductByID(ctx context.Context, productID uuid.UUID) error
}

// Config tunes the beat dispatcher's intervals and batch bounds, defaulting
// to the §4.9 constants.
type Config struct {
	CheckDueInterval        time.Duration
	EnrichSkeletonsInterval time.Duration
	ProcessQueueInterval    time.Duration
	EnrichSkeletonsLimit    int
	ProcessQueueMaxURLs     int
}

// DefaultConfig returns the spec's hardcoded intervals and bounds (§4.9).
func DefaultConfig() Config {
	return Config{
		CheckDueInterval:        DefaultCheckDueInterval,
		EnrichSkeletonsInterval: DefaultEnrichSkeletonsInterval,
		ProcessQueueInterval:    DefaultProcessQueueInterval,
		EnrichSkeletonsLimit:    DefaultEnrichSkeletonsLimit,
		ProcessQueueMaxURLs:     DefaultProcessQueueMaxURLs,
	}
}

func (c Config) withDefaults() Config {
	if c.CheckDueInterval <= 0 {
		c.CheckDueInterval = DefaultCheckDueInterval
	}
	if c.EnrichSkeletonsInterval <= 0 {
		c.EnrichSkeletonsInterval = DefaultEnrichSkeletonsInterval
	}
	if c.ProcessQueueInterval <= 0 {
		c.ProcessQueueInterval = DefaultProcessQueueInterval
	}
	if c.EnrichSkeletonsLimit <= 0 {
		c.EnrichSkeletonsLimit = DefaultEnrichSkeletonsLimit
	}
	if c.ProcessQueueMaxURLs <= 0 {
		c.ProcessQueueMaxURLs = DefaultProcessQueueMaxURLs
	}
	return c
}

// scheduledJobPayload is queued onto a schedule's category-specific queue
// (§4.9 "dispatch run_scheduled_job(schedule_id, job_id)"); it carries the
// schedule's slug rather than its id since ScheduleStore looks schedules up
// by slug.
type scheduledJobPayload struct {
	ScheduleSlug string `json:"schedule_slug"`
	JobID        string `json:"job_id"`
}

// queuedEnrichmentPayload mirrors the payload internal/competition's
// Orchestrator.enqueueEnrichment and this package's QueueDispatcher push
// onto queue.Enrichment.
type queuedEnrichmentPayload struct {
	ProductID string `json:"product_id"`
}

// Enrichment queue job kinds (§4.2 step 8, §4.9 process_enrichment_queue).
const (
	enrichmentKindSkeleton = "enrich_skeleton"
	enrichmentKindVerify   = "verify_product"
)

// Scheduler is the Scheduler (L9): it owns three independent beats and a
// registry of in-flight jobs so an external cancellation request (§5) can
// reach the right running *models.CrawlJob.
type Scheduler struct {
	Schedules   store.ScheduleStore
	Jobs        store.JobStore
	Products    store.ProductStore
	Queue       *queue.Queue
	Discovery    DiscoveryRunner
	Competition  CompetitionRunner
	Verification VerificationRunner

	// Progress, when set, receives a ProgressEvent at each job-status
	// transition so internal/httpapi's websocket route can stream it to
	// operators watching a job (§6). Left nil, broadcasting is skipped.
	Progress *httpapi.Hub

	cfg Config
	log *logging.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}

	jobsMu     sync.RWMutex
	activeJobs map[uuid.UUID]*models.CrawlJob
}

// New builds a Scheduler. cfg's zero-valued fields fall back to the §4.9
// defaults.
func New(schedules store.ScheduleStore, jobs store.JobStore, products store.ProductStore, q *queue.Queue,
	discovery DiscoveryRunner, competition CompetitionRunner, cfg Config) *Scheduler {
	return &Scheduler{
		Schedules: schedules, Jobs: jobs, Products: products, Queue: q,
		Discovery: discovery, Competition: competition,
		cfg: cfg.withDefaults(), log: logging.For("scheduler"),
		activeJobs: map[uuid.UUID]*models.CrawlJob{},
	}
}

// Start runs the three beats until ctx is cancelled or Stop is called. It
// blocks until all three beats have returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("scheduler starting",
		"check_due_interval", s.cfg.CheckDueInterval.String(),
		"enrich_skeletons_interval", s.cfg.EnrichSkeletonsInterval.String(),
		"process_queue_interval", s.cfg.ProcessQueueInterval.String(),
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.loop(ctx, s.cfg.CheckDueInterval, s.checkDueSchedules) }()
	go func() { defer wg.Done(); s.loop(ctx, s.cfg.EnrichSkeletonsInterval, s.enrichSkeletons) }()
	go func() { defer wg.Done(); s.loop(ctx, s.cfg.ProcessQueueInterval, s.processEnrichmentQueue) }()
	wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// Stop signals every beat to return after its current tick.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}
	close(s.stopChan)
	return nil
}

// IsRunning reports whether Start's beats are active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CancelJob flags a registered running job for cooperative cancellation
// (§5): the flow checks CancelRequested at its next safe suspension point
// and stops issuing Product Writer calls. Reports false if no job with
// that id is currently tracked.
func (s *Scheduler) CancelJob(id uuid.UUID) bool {
	s.jobsMu.RLock()
	job, ok := s.activeJobs[id]
	s.jobsMu.RUnlock()
	if !ok {
		return false
	}
	job.RequestCancel()
	return true
}

// broadcastProgress sends job's current counters to any websocket
// subscribers of its id; a no-op when no Hub is configured.
func (s *Scheduler) broadcastProgress(job *models.CrawlJob, status, message string) {
	if s.Progress == nil {
		return
	}
	s.Progress.Broadcast(httpapi.ProgressEvent{
		JobID:             job.ID,
		Status:            status,
		PagesProcessed:    job.PagesProcessed,
		ProductsFound:     job.ProductsFound,
		ProductsNew:       job.ProductsNew,
		ProductsDuplicate: job.ProductsDuplicate,
		Message:           message,
	})
}

func (s *Scheduler) register(job *models.CrawlJob) {
	s.jobsMu.Lock()
	s.activeJobs[job.ID] = job
	s.jobsMu.Unlock()
}

func (s *Scheduler) unregister(id uuid.UUID) {
	s.jobsMu.Lock()
	delete(s.activeJobs, id)
	s.jobsMu.Unlock()
}

// loop runs fn every interval until ctx is cancelled or the scheduler is
// stopped (teacher's GovernanceScheduler.schedulerLoop, generalized to any
// one of the three beats).
func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// checkDueSchedules implements §4.9's check_due_schedules beat.
func (s *Scheduler) checkDueSchedules(ctx context.Context) {
	due, err := s.Schedules.ListDue(ctx, nil, time.Now().UTC())
	if err != nil {
		s.log.Error("listing due schedules failed", err)
		return
	}
	for _, sch := range due {
		job := &models.CrawlJob{ID: uuid.New(), ScheduleID: &sch.ID, Status: models.JobStatusPending}
		if err := s.Jobs.Create(ctx, nil, job); err != nil {
			s.log.Error("creating crawl job failed", err, "schedule", sch.Slug)
			continue
		}
		if s.Queue == nil {
			continue
		}
		payload := scheduledJobPayload{ScheduleSlug: sch.Slug, JobID: job.ID.String()}
		if err := s.Queue.Push(ctx, sch.Category.Queue(), "run_schedule", payload); err != nil {
			s.log.Error("dispatching scheduled job failed", err, "schedule", sch.Slug)
		}
	}
}

// RunScheduledJob implements §4.9's run_scheduled_job lifecycle: pending ->
// running, invoke the flow matching the schedule's category, then
// completed/failed, advancing schedule.next_run and its aggregate counters.
// A queue consumer pops a scheduledJobPayload and calls this.
func (s *Scheduler) RunScheduledJob(ctx context.Context, scheduleSlug string, jobID uuid.UUID) error {
	sch, err := s.Schedules.GetBySlug(ctx, nil, scheduleSlug)
	if err != nil {
		return fmt.Errorf("loading schedule %s: %w", scheduleSlug, err)
	}
	job, err := s.Jobs.GetByID(ctx, nil, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}
	before := *job

	if err := s.Jobs.UpdateStatus(ctx, nil, job.ID, models.JobStatusRunning, nil); err != nil {
		return fmt.Errorf("marking job %s running: %w", jobID, err)
	}
	s.broadcastProgress(job, string(models.JobStatusRunning), "")

	s.register(job)
	runErr := s.runByCategory(ctx, sch, job)
	s.unregister(job.ID)

	if job.CancelRequested() {
		httpapi.RecordJobOutcome(string(models.JobStatusCancelled))
		s.broadcastProgress(job, string(models.JobStatusCancelled), "")
		return s.Jobs.UpdateStatus(ctx, nil, job.ID, models.JobStatusCancelled, nil)
	}
	if runErr != nil {
		msg := runErr.Error()
		httpapi.RecordJobOutcome(string(models.JobStatusFailed))
		s.broadcastProgress(job, string(models.JobStatusFailed), msg)
		if err := s.Jobs.UpdateStatus(ctx, nil, job.ID, models.JobStatusFailed, &msg); err != nil {
			s.log.Error("marking job failed also failed", err, "job_id", jobID.String())
		}
		return runErr
	}
	if err := s.Jobs.UpdateStatus(ctx, nil, job.ID, models.JobStatusCompleted, nil); err != nil {
		return fmt.Errorf("marking job %s completed: %w", jobID, err)
	}
	httpapi.RecordJobOutcome(string(models.JobStatusCompleted))
	s.broadcastProgress(job, string(models.JobStatusCompleted), "")

	after, err := s.Jobs.GetByID(ctx, nil, job.ID)
	if err != nil {
		return fmt.Errorf("reloading job %s for run stats: %w", jobID, err)
	}
	stats := models.RunStats{
		ProductsFound: after.ProductsFound - before.ProductsFound,
		ProductsNew:   after.ProductsNew - before.ProductsNew,
		ProductsDup:   after.ProductsDuplicate - before.ProductsDuplicate,
	}
	next := time.Now().UTC().Add(sch.Frequency)
	return s.Schedules.RecordRunStats(ctx, nil, sch.Slug, stats, &next)
}

func (s *Scheduler) runByCategory(ctx context.Context, sch *models.Schedule, job *models.CrawlJob) error {
	switch sch.Category {
	case models.ScheduleCategoryCompetition:
		if s.Competition == nil {
			return fmt.Errorf("no competition runner configured for schedule %s", sch.Slug)
		}
		if sch.BaseURL == nil {
			return fmt.Errorf("competition schedule %s has no base_url", sch.Slug)
		}
		return s.Competition.HandleDiscoveredCompetition(ctx, *sch.BaseURL, sch.Slug, scheduleProductTypes(sch))
	default:
		if s.Discovery == nil {
			return fmt.Errorf("no discovery runner configured for schedule %s", sch.Slug)
		}
		return s.Discovery.Run(ctx, sch, job)
	}
}

func scheduleProductTypes(sch *models.Schedule) []models.ProductTypeEnum {
	if sch.ProductType != nil {
		return []models.ProductTypeEnum{*sch.ProductType}
	}
	return []models.ProductTypeEnum{models.ProductTypeWhiskey, models.ProductTypePortWine}
}

// enrichSkeletons implements §4.9's enrich_skeletons beat: take the oldest
// skeletons lacking enrichment data and re-run discovery against each.
func (s *Scheduler) enrichSkeletons(ctx context.Context) {
	if s.Discovery == nil {
		return
	}
	skeletons, err := s.Products.ListSkeletons(ctx, nil, s.cfg.EnrichSkeletonsLimit)
	if err != nil {
		s.log.Error("listing skeleton products failed", err)
		return
	}
	if len(skeletons) == 0 {
		return
	}

	job := &models.CrawlJob{ID: uuid.New(), Status: models.JobStatusRunning}
	if err := s.Jobs.Create(ctx, nil, job); err != nil {
		s.log.Error("creating enrich_skeletons job failed", err)
		return
	}
	s.register(job)
	defer s.unregister(job.ID)

	for _, p := range skeletons {
		if job.CancelRequested() {
			break
		}
		if err := s.Discovery.EnrichSkeleton(ctx, job, p); err != nil {
			s.log.Warn("skeleton enrichment failed", "product_id", p.ID.String(), "error", err.Error())
		}
		s.broadcastProgress(job, string(models.JobStatusRunning), "enriched "+p.ID.String())
	}

	status := models.JobStatusCompleted
	if job.CancelRequested() {
		status = models.JobStatusCancelled
	}
	httpapi.RecordJobOutcome(string(status))
	s.broadcastProgress(job, string(status), "")
	if err := s.Jobs.UpdateStatus(ctx, nil, job.ID, status, nil); err != nil {
		s.log.Error("closing enrich_skeletons job failed", err)
	}
}

// processEnrichmentQueue implements §4.9's process_enrichment_queue beat:
// drain up to ProcessQueueMaxURLs entries the Competition Orchestrator
// queued and run enrichment for the product each one names.
func (s *Scheduler) processEnrichmentQueue(ctx context.Context) {
	if s.Queue == nil {
		return
	}
	for processed := 0; processed < s.cfg.ProcessQueueMaxURLs; processed++ {
		qjob, err := s.Queue.Pop(ctx, queue.Enrichment, popTimeout)
		if err != nil {
			s.log.Error("popping enrichment queue failed", err)
			return
		}
		if qjob == nil {
			return
		}
		s.runQueuedEnrichment(ctx, qjob)
	}
}

func (s *Scheduler) runQueuedEnrichment(ctx context.Context, qjob *queue.Job) {
	var payload queuedEnrichmentPayload
	if err := json.Unmarshal(qjob.Payload, &payload); err != nil {
		s.log.Warn("decoding enrichment queue payload failed", "error", err.Error())
		return
	}
	id, err := uuid.Parse(payload.ProductID)
	if err != nil {
		s.log.Warn("invalid product id in enrichment queue payload", "raw", payload.ProductID)
		return
	}

	if qjob.Kind == enrichmentKindVerify {
		if s.Verification == nil {
			s.log.Warn("no verification runner configured, dropping verify_product job", "product_id", payload.ProductID)
			return
		}
		if err := s.Verification.VerifyProductByID(ctx, id); err != nil {
			s.log.Warn("queued verification failed", "product_id", payload.ProductID, "error", err.Error())
		}
		return
	}

	if s.Discovery == nil {
		s.log.Warn("no discovery runner configured, dropping enrich_skeleton job", "product_id", payload.ProductID)
		return
	}
	product, err := s.Products.GetByID(ctx, nil, id)
	if err != nil {
		s.log.Warn("loading queued enrichment product failed", "product_id", payload.ProductID, "error", err.Error())
		return
	}
	job := &models.CrawlJob{ID: uuid.New(), Status: models.JobStatusRunning}
	if err := s.Discovery.EnrichSkeleton(ctx, job, product); err != nil {
		s.log.Warn("queued enrichment failed", "product_id", payload.ProductID, "error", err.Error())
	}
}
