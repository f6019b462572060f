package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"metricsync/internal/adapter"
	"metricsync/internal/metrics"
	"metricsync/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrJobNotFound distinguishes an unknown job id from a job that is
// simply still queued or active.
var ErrJobNotFound = errors.New("job not found")

type pending struct {
	jobID string
	opts  models.SyncOptions
}

// Queue accepts sync requests, tracks job lifecycle and drives the
// adapters from a pool of workers. Terminal states are immutable.
type Queue struct {
	adapters map[models.Source]adapter.Adapter
	journal  *Journal
	logger   *zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*models.Job

	ch      chan pending
	workers int
	wg      sync.WaitGroup
}

// New builds a queue over the given adapters. journal may be nil.
func New(adapters []adapter.Adapter, workers, buffer int, journal *Journal, logger *zerolog.Logger) *Queue {
	if workers <= 0 {
		workers = 3
	}
	if buffer <= 0 {
		buffer = 64
	}
	bySource := make(map[models.Source]adapter.Adapter, len(adapters))
	for _, a := range adapters {
		bySource[a.Source()] = a
	}
	return &Queue{
		adapters: bySource,
		journal:  journal,
		logger:   logger,
		jobs:     make(map[string]*models.Job),
		ch:       make(chan pending, buffer),
		workers:  workers,
	}
}

// Start launches the worker pool; workers exit when ctx is done.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			q.runWorker(ctx, id)
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Enqueue creates exactly one job for source. Duplicate source+date
// submissions are allowed here; the adapter's lock path collapses the
// redundant fetch work.
func (q *Queue) Enqueue(source models.Source, opts models.SyncOptions) (*models.Job, error) {
	if _, ok := q.adapters[source]; !ok {
		return nil, fmt.Errorf("no adapter registered for source %s", source)
	}

	job := &models.Job{
		ID:         uuid.NewString(),
		Source:     source,
		State:      models.JobQueued,
		EnqueuedAt: time.Now(),
	}
	if !opts.TargetDate.IsZero() {
		job.TargetDate = opts.TargetDate.Format(models.ISODateFormat)
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	if q.journal != nil {
		if err := q.journal.CreateJob(context.Background(), job); err != nil {
			q.logger.Warn().Err(err).Str("job_id", job.ID).Msg("journal create failed")
		}
	}

	select {
	case q.ch <- pending{jobID: job.ID, opts: opts}:
	default:
		q.recordResult(job.ID, models.SyncResult{Success: false, Error: "queue is full"})
		return q.snapshot(job.ID), errors.New("queue is full")
	}

	q.logger.Info().Str("job_id", job.ID).Str("source", string(source)).Msg("job enqueued")
	return q.snapshot(job.ID), nil
}

// EnqueueAll creates one job per known source in a single batch. A
// failure to enqueue one source does not stop the others.
func (q *Queue) EnqueueAll(opts models.SyncOptions) []*models.Job {
	jobs := make([]*models.Job, 0, len(models.KnownSources()))
	for _, source := range models.KnownSources() {
		if _, ok := q.adapters[source]; !ok {
			continue
		}
		job, err := q.Enqueue(source, opts)
		if err != nil {
			q.logger.Error().Err(err).Str("source", string(source)).Msg("enqueue failed")
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// Status returns a copy of the job's current state, or ErrJobNotFound.
func (q *Queue) Status(jobID string) (*models.Job, error) {
	job := q.snapshot(jobID)
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Snapshot lists copies of all known jobs.
func (q *Queue) Snapshot() []*models.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*models.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		copied := *job
		out = append(out, &copied)
	}
	return out
}

func (q *Queue) runWorker(ctx context.Context, id int) {
	q.logger.Debug().Int("worker", id).Msg("queue worker started")
	defer q.logger.Debug().Int("worker", id).Msg("queue worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-q.ch:
			q.process(ctx, p)
		}
	}
}

func (q *Queue) process(ctx context.Context, p pending) {
	q.mu.Lock()
	job, ok := q.jobs[p.jobID]
	if !ok || job.State != models.JobQueued {
		q.mu.Unlock()
		return
	}
	job.State = models.JobActive
	job.StartedAt = time.Now()
	source := job.Source
	q.mu.Unlock()

	if q.journal != nil {
		if err := q.journal.MarkActive(ctx, p.jobID); err != nil {
			q.logger.Warn().Err(err).Str("job_id", p.jobID).Msg("journal update failed")
		}
	}

	result := q.runAdapter(ctx, source, p.opts)
	q.recordResult(p.jobID, result)
}

// runAdapter invokes the adapter and contains any panic so a broken
// adapter can never take the worker loop down.
func (q *Queue) runAdapter(ctx context.Context, source models.Source, opts models.SyncOptions) (result models.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Str("source", string(source)).Interface("panic", r).Msg("adapter panicked")
			result = models.SyncResult{Success: false, Error: fmt.Sprintf("adapter panic: %v", r)}
		}
	}()
	return q.adapters[source].Sync(ctx, opts)
}

func (q *Queue) recordResult(jobID string, result models.SyncResult) {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok || job.State.Terminal() {
		q.mu.Unlock()
		return
	}
	job.Result = &result
	job.FinishedAt = time.Now()
	if result.Success {
		job.State = models.JobCompleted
	} else {
		job.State = models.JobFailed
	}
	if job.TargetDate == "" && result.Metrics != nil {
		job.TargetDate = result.Metrics.Date
	}
	state := job.State
	source := job.Source
	q.mu.Unlock()

	metrics.IncSyncJob(string(source), string(state))
	if q.journal != nil {
		if err := q.journal.MarkTerminal(context.Background(), jobID, state, &result); err != nil {
			q.logger.Warn().Err(err).Str("job_id", jobID).Msg("journal update failed")
		}
	}
	q.logger.Info().Str("job_id", jobID).Str("source", string(source)).Str("state", string(state)).Msg("job finished")
}

func (q *Queue) snapshot(jobID string) *models.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
