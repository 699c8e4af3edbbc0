// Package worker implements the named-queue worker pool (§5): a cluster of
// goroutines, one fan-out per queue, each blocking-popping "run_schedule"
// jobs and handing them to the Scheduler's run_scheduled_job lifecycle.
// checkDueSchedules (internal/scheduler) is the producer; Pool is the
// consumer side the teacher's internal/services.CampaignWorkerService
// models with StartWorkers/workerLoop/processJob fan-out, generalized here
// to one worker set per named queue instead of one shared job table.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/productpipeline/internal/logging"
	"github.com/shelfmark/productpipeline/internal/queue"
)

// popTimeout bounds how long a single worker blocks on an empty queue
// before looping back to recheck ctx.
const popTimeout = 2 * time.Second

// scheduledJobKind is the only queue.Job.Kind a Pool knows how to handle;
// anything else is logged and dropped rather than panicking the worker.
const scheduledJobKind = "run_schedule"

// DefaultQueues are the queues checkDueSchedules actually dispatches onto
// (models.ScheduleCategoryEnum.Queue() never returns "search" or
// "enrichment" — enrichment has its own dedicated beat consumer).
var DefaultQueues = []string{queue.Default, queue.Discovery, queue.Crawl}

// scheduledJobPayload mirrors internal/scheduler's unexported
// scheduledJobPayload, the wire shape checkDueSchedules pushes.
type scheduledJobPayload struct {
	ScheduleSlug string `json:"schedule_slug"`
	JobID        string `json:"job_id"`
}

// ScheduledJobRunner is the slice of *scheduler.Scheduler a Pool depends on.
type ScheduledJobRunner interface {
	RunScheduledJob(ctx context.Context, scheduleSlug string, jobID uuid.UUID) error
}

// Pool is the worker-pool consumer for the schedule-dispatch queues (§5
// "a cluster of worker processes consuming from named queues"). It is the
// only non-test code that pops "run_schedule" jobs.
type Pool struct {
	Queue  *queue.Queue
	Runner ScheduledJobRunner

	Queues              []string
	ConcurrencyPerQueue int

	log *logging.Logger
}

// New builds a Pool. Queues/concurrency fall back to DefaultQueues and a
// single worker per queue when left zero-valued.
func New(q *queue.Queue, runner ScheduledJobRunner, queues []string, concurrencyPerQueue int) *Pool {
	if len(queues) == 0 {
		queues = DefaultQueues
	}
	if concurrencyPerQueue <= 0 {
		concurrencyPerQueue = 1
	}
	return &Pool{
		Queue: q, Runner: runner,
		Queues: queues, ConcurrencyPerQueue: concurrencyPerQueue,
		log: logging.For("worker"),
	}
}

// Start launches ConcurrencyPerQueue goroutines per queue and blocks until
// every one of them returns, i.e. until ctx is cancelled. Mirrors the
// teacher's StartWorkers(ctx, numWorkers)/sync.WaitGroup fan-out.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("worker pool starting", "queues", p.Queues, "concurrency_per_queue", p.ConcurrencyPerQueue)
	var wg sync.WaitGroup
	for _, queueName := range p.Queues {
		for i := 0; i < p.ConcurrencyPerQueue; i++ {
			wg.Add(1)
			go func(queueName string, workerNum int) {
				defer wg.Done()
				workerName := fmt.Sprintf("%s-%d", queueName, workerNum)
				p.log.Info("worker started", "worker", workerName)
				p.workerLoop(ctx, queueName, workerName)
				p.log.Info("worker stopped", "worker", workerName)
			}(queueName, i)
		}
	}
	wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) workerLoop(ctx context.Context, queueName, workerName string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		qjob, err := p.Queue.Pop(ctx, queueName, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("popping queue failed", err, "worker", workerName, "queue", queueName)
			continue
		}
		if qjob == nil {
			continue // BLPOP timed out with nothing queued; recheck ctx and poll again.
		}
		p.processJob(ctx, qjob, workerName)
	}
}

func (p *Pool) processJob(ctx context.Context, qjob *queue.Job, workerName string) {
	if qjob.Kind != scheduledJobKind {
		p.log.Warn("dropping queue job with unexpected kind", "worker", workerName, "kind", qjob.Kind)
		return
	}
	var payload scheduledJobPayload
	if err := json.Unmarshal(qjob.Payload, &payload); err != nil {
		p.log.Warn("decoding run_schedule payload failed", "worker", workerName, "error", err.Error())
		return
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		p.log.Warn("invalid job id in run_schedule payload", "worker", workerName, "raw", payload.JobID)
		return
	}
	p.log.Info("dispatching scheduled job", "worker", workerName, "schedule", payload.ScheduleSlug, "job_id", payload.JobID)
	if err := p.Runner.RunScheduledJob(ctx, payload.ScheduleSlug, jobID); err != nil {
		p.log.Warn("scheduled job run failed", "worker", workerName, "schedule", payload.ScheduleSlug, "job_id", payload.JobID, "error", err.Error())
	}
}
