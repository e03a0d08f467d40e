// Package inmemory implements the job queue and store on Go channels and
// maps, for single-instance deployments and tests.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/logger"
)

// Config sizes the queue. Zero values select the defaults.
type Config struct {
	// BufferSize is how many jobs can wait before publishing blocks.
	BufferSize int
	// Workers is the number of concurrent handlers.
	Workers int
	// RetryBackoff is multiplied by the retry count before re-enqueueing.
	RetryBackoff time.Duration
}

const (
	DefaultBufferSize   = 100
	DefaultWorkers      = 5
	DefaultRetryBackoff = time.Second
)

// Queue is an in-memory implementation of job publisher and consumer.
// It is safe for concurrent use.
type Queue struct {
	cfg       Config
	jobChan   chan *jobs.ExtractDocumentJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	store     jobs.JobStore
	closed    bool
	started   bool
	retries   map[*time.Timer]struct{}
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(cfg Config, store jobs.JobStore) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	} else if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &Queue{
		cfg:       cfg,
		jobChan:   make(chan *jobs.ExtractDocumentJob, cfg.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		retries:   make(map[*time.Timer]struct{}),
	}
}

// PublishExtractDocument implements the Publisher interface. The queue
// keeps its own copy of job; the caller's value gets the assigned ID.
func (q *Queue) PublishExtractDocument(ctx context.Context, job *jobs.ExtractDocumentJob) error {
	job.Prepare(uuid.NewString, time.Now())
	return q.enqueue(ctx, job.Clone())
}

func (q *Queue) enqueue(ctx context.Context, job *jobs.ExtractDocumentJob) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishExtractDocument: save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface. It starts the configured number
// of workers, which run until ctx is done or the queue is stopped.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("Start: queue already started")
	}
	q.started = true

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs the handler once and records the outcome. Failed jobs are
// re-enqueued after RetryBackoff times the retry count, unless the error is
// permanent or the retry budget is spent.
func (q *Queue) processJob(ctx context.Context, job *jobs.ExtractDocumentJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("gcs_uri", job.GCSURI).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := q.runHandler(ctx, job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Msg("Job completed")

	case !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		backoff := time.Duration(job.RetryCount) * q.cfg.RetryBackoff
		log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")
		q.scheduleRetry(ctx, job.Clone(), backoff)

	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
	}

	q.save(ctx, job)
}

func (q *Queue) runHandler(ctx context.Context, job *jobs.ExtractDocumentJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	// The handler gets its own copy so it may fill result fields freely.
	work := job.Clone()
	err = handler(ctx, work)
	job.DocumentID = work.DocumentID
	job.ParsingRunID = work.ParsingRunID
	return err
}

func (q *Queue) scheduleRetry(ctx context.Context, job *jobs.ExtractDocumentJob, backoff time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(backoff, func() {
		q.mu.Lock()
		delete(q.retries, t)
		q.mu.Unlock()

		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.enqueue(ctx, job); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Str("job_id", job.JobID).Msg("Dropping job retry")
		}
	})
	q.retries[t] = struct{}{}
}

func (q *Queue) save(ctx context.Context, job *jobs.ExtractDocumentJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface. It cancels pending retries and
// waits for in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	for t := range q.retries {
		t.Stop()
	}
	q.retries = nil
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
