package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

// ExtractorFactory builds an extractor for a job's own provider list.
type ExtractorFactory func(ctx context.Context, providerIDs []string) (Extractor, error)

// NewJobHandler returns a handler that ingests ExtractDocumentJobs. Jobs
// naming their own providers get an extractor from newExtractor; failures a
// retry cannot fix are marked permanent.
func NewJobHandler(deps Dependencies, opts Options, newExtractor ExtractorFactory) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		j, ok := job.(*jobs.ExtractDocumentJob)
		if !ok {
			return jobs.Permanent(fmt.Errorf("unexpected job type: %T", job))
		}

		d := deps
		if len(j.Providers) > 0 && newExtractor != nil {
			ex, err := newExtractor(ctx, j.Providers)
			if err != nil {
				return jobs.Permanent(fmt.Errorf("job %s: %w", j.JobID, err))
			}
			d.Extractor = ex
		}

		o := opts
		o.Replace = o.Replace || j.Replace
		state, err := IngestFromGCSWithDeps(ctx, j.GCSURI, j.Kind, d, o)
		j.DocumentID = state.DocumentID
		j.ParsingRunID = state.ParsingRunID
		if err != nil && IsPermanent(err) {
			return jobs.Permanent(err)
		}
		return err
	}
}

// IsPermanent reports whether an ingestion error would repeat on retry:
// duplicates, unusable model output, invalid records, unknown kinds and
// fatal provider failures. Exhausted retryable chains and storage errors
// are worth retrying.
func IsPermanent(err error) bool {
	var (
		dup *DuplicateDocumentError
		pf  *extraction.ParseFailedError
		pe  *textparse.ParseError
		ve  *domain.ValidationError
	)
	switch {
	case errors.As(err, &dup), errors.As(err, &pf), errors.As(err, &pe), errors.As(err, &ve):
		return true
	case errors.Is(err, errUnsupportedKind), errors.Is(err, extraction.ErrNoProviders):
		return true
	case extraction.IsFatal(err):
		return true
	}
	return false
}
