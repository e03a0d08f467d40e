// Package jobs defines the asynchronous extraction job model and the
// queue interfaces implemented by the in-memory and AMQP back ends.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExtractDocument extracts and ingests one stored document.
	JobTypeExtractDocument JobType = "extract_document"
)

// DefaultMaxRetries applies when a published job does not set MaxRetries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by JobStore lookups for unknown IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ExtractDocumentJob asks a worker to run the ingestion pipeline on a
// document stored in GCS.
type ExtractDocumentJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Kind selects the statement, receipt or chart extraction.
	Kind textparse.Kind `json:"kind"`

	// GCSURI is the GCS URI of the document to extract.
	GCSURI string `json:"gcs_uri"`

	// Providers overrides the configured provider chain when set.
	Providers []string `json:"providers,omitempty"`

	// Replace re-ingests a document that was already stored.
	Replace bool `json:"replace,omitempty"`

	// DocumentID and ParsingRunID are filled in by the worker.
	DocumentID   string `json:"document_id,omitempty"`
	ParsingRunID string `json:"parsing_run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExtractDocumentJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExtractDocumentJob) GetType() JobType {
	return JobTypeExtractDocument
}

// GetStatus implements the Job interface.
func (j *ExtractDocumentJob) GetStatus() JobStatus {
	return j.Status
}

// Clone returns a deep copy of the job.
func (j *ExtractDocumentJob) Clone() *ExtractDocumentJob {
	c := *j
	c.Providers = append([]string(nil), j.Providers...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Prepare fills the defaults of a job about to be published.
func (j *ExtractDocumentJob) Prepare(newID func() string, now time.Time) {
	if j.JobID == "" {
		j.JobID = newID()
	}
	if j.Kind == "" {
		j.Kind = textparse.KindStatement
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.MaxRetries == 0 {
		j.MaxRetries = DefaultMaxRetries
	}
}

// Publisher publishes jobs to a queue.
type Publisher interface {
	// PublishExtractDocument publishes a document extraction job.
	PublishExtractDocument(ctx context.Context, job *ExtractDocumentJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer consumes jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed; wrap it with Permanent to
// skip retries.
type JobHandler func(ctx context.Context, job Job) error

// PermanentError marks a handler failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so queues do not retry the job. Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped by Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ExtractDocumentJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ExtractDocumentJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExtractDocumentJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	DocumentID string
	GCSURI     string
	Kind       textparse.Kind
	Status     JobStatus

	// Limit and Offset paginate the result, ordered by creation time.
	Limit  int
	Offset int
}

// Matches reports whether job satisfies every set criterion.
func (f JobFilter) Matches(job *ExtractDocumentJob) bool {
	switch {
	case f.DocumentID != "" && job.DocumentID != f.DocumentID:
		return false
	case f.GCSURI != "" && job.GCSURI != f.GCSURI:
		return false
	case f.Kind != "" && job.Kind != f.Kind:
		return false
	case f.Status != "" && job.Status != f.Status:
		return false
	}
	return true
}
