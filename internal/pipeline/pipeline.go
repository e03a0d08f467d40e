// Package pipeline ingests one stored document end to end: fetch, record,
// extract through the provider chain, store the raw output, validate and
// insert the records, and close the parsing run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/logger"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

var errUnsupportedKind = errors.New("unsupported document kind")

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Dependencies are the collaborators of the ingestion pipeline.
type Dependencies struct {
	Repo      DocumentRepository
	Storage   StorageService
	Extractor Extractor
}

func (d Dependencies) validate() error {
	switch {
	case d.Repo == nil:
		return errors.New("pipeline: nil DocumentRepository")
	case d.Storage == nil:
		return errors.New("pipeline: nil StorageService")
	case d.Extractor == nil:
		return errors.New("pipeline: nil Extractor")
	}
	return nil
}

// Options tune one ingestion.
type Options struct {
	UserID        string
	ParserVersion string

	// Replace re-ingests a document whose checksum is already stored; its
	// earlier successful runs become SUPERSEDED.
	Replace bool

	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.UserID == "" {
		o.UserID = DefaultUserID
	}
	if o.ParserVersion == "" {
		o.ParserVersion = DefaultParserVersion
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewIngestionPipeline creates the standard pipeline for one document.
func NewIngestionPipeline(deps Dependencies, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return NewPipeline(
		&FetchDocumentStep{Storage: deps.Storage},
		&CreateDocumentStep{Repo: deps.Repo, Replace: opts.Replace, Now: opts.Now},
		&StartParsingRunStep{Repo: deps.Repo, ParserVersion: opts.ParserVersion},
		&ExtractStep{Extractor: deps.Extractor},
		&StoreModelOutputStep{Repo: deps.Repo, Now: opts.Now},
		&TransformStep{Now: opts.Now},
		&SummarizeStep{},
		&InsertTransactionsStep{Repo: deps.Repo},
		&MarkSuccessStep{Repo: deps.Repo},
	)
}

// IngestFromGCSWithDeps ingests the document at gcsURI as kind. Once a
// parsing run exists, any failure marks it FAILED together with the provider
// attempts made so far. The returned state is never nil.
func IngestFromGCSWithDeps(ctx context.Context, gcsURI string, kind textparse.Kind, deps Dependencies, opts Options) (*PipelineState, error) {
	opts = opts.withDefaults()
	state := &PipelineState{GCSURI: gcsURI, Kind: kind, UserID: opts.UserID}

	if err := deps.validate(); err != nil {
		return state, err
	}
	if kind == "" {
		state.Kind = textparse.KindStatement
	} else if k, ok := textparse.ParseKind(string(kind)); ok {
		state.Kind = k
	} else {
		return state, fmt.Errorf("IngestFromGCS: %w %q", errUnsupportedKind, kind)
	}

	log := logger.FromContext(ctx).With().
		Str("gcs_uri", gcsURI).
		Str("kind", string(state.Kind)).
		Logger()
	ctx = logger.WithContext(ctx, log)

	if err := NewIngestionPipeline(deps, opts).Execute(ctx, state); err != nil {
		if state.ParsingRunID != "" {
			// The caller's context may be done; the run must still be closed.
			deps.Repo.MarkParsingRunFailed(context.WithoutCancel(ctx), state.ParsingRunID, err, runMetadata(state))
		}
		log.Error().
			Err(err).
			Str("document_id", state.DocumentID).
			Str("parsing_run_id", state.ParsingRunID).
			Msg("Ingestion failed")
		return state, err
	}

	log.Info().
		Str("document_id", state.DocumentID).
		Str("parsing_run_id", state.ParsingRunID).
		Int("transactions", len(state.Transactions)).
		Int("discrepancies", len(state.Discrepancies)).
		Msg("Ingestion completed")
	return state, nil
}
