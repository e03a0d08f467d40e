package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-analyzer/internal/aggregation"
	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
	infra "github.com/dvloznov/finance-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/finance-analyzer/internal/logger"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	GCSURI string
	Kind   textparse.Kind
	UserID string

	Object   *gcs.Object
	Checksum string

	DocumentID   string
	ParsingRunID string
	Reingest     bool

	Extraction    *extraction.Extraction
	Transactions  []*infra.TransactionRow
	Receipt       *infra.ReceiptRow
	ReceiptItems  []*infra.ReceiptLineItemRow
	Summary       aggregation.Summary
	Discrepancies []aggregation.Discrepancy
}

// Records returns the extracted records, or nil before extraction.
func (s *PipelineState) Records() []domain.Record {
	if s.Extraction == nil {
		return nil
	}
	return s.Extraction.Records
}

// Step 1: FetchDocumentStep downloads the file and computes its checksum.
type FetchDocumentStep struct {
	Storage StorageService
}

func (s *FetchDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	obj, err := s.Storage.Fetch(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("FetchDocument: %w", err)
	}
	if len(obj.Bytes) == 0 {
		return fmt.Errorf("FetchDocument: %s is empty", state.GCSURI)
	}
	state.Object = obj
	state.Checksum = Checksum(obj.Bytes)
	return nil
}

// Step 2: CreateDocumentStep records the document. A stored document with
// the same checksum is reused when Replace is set or when it has no
// successful run yet; otherwise it is a duplicate.
type CreateDocumentStep struct {
	Repo    DocumentRepository
	Replace bool
	Now     func() time.Time
}

func (s *CreateDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	existing, err := s.Repo.FindDocumentByChecksum(ctx, state.Checksum)
	if err != nil {
		return fmt.Errorf("CreateDocument: %w", err)
	}
	if existing != nil {
		log := logger.FromContext(ctx)
		if s.Replace {
			log.Info().
				Str("document_id", existing.DocumentID).
				Msg("Re-ingesting existing document")
			state.DocumentID = existing.DocumentID
			state.Reingest = true
			return nil
		}

		ingested, err := s.Repo.HasSuccessfulParsingRun(ctx, existing.DocumentID)
		if err != nil {
			return fmt.Errorf("CreateDocument: %w", err)
		}
		if ingested {
			return &DuplicateDocumentError{DocumentID: existing.DocumentID, Checksum: state.Checksum}
		}

		// An earlier attempt stored the document but never finished a run.
		log.Info().
			Str("document_id", existing.DocumentID).
			Msg("Resuming ingestion of unfinished document")
		state.DocumentID = existing.DocumentID
		return nil
	}

	row := newDocumentRow(state, s.Now())
	if err := s.Repo.InsertDocument(ctx, row); err != nil {
		return fmt.Errorf("CreateDocument: %w", err)
	}
	state.DocumentID = row.DocumentID
	return nil
}

// Step 3: StartParsingRunStep starts a parsing run (status=RUNNING).
type StartParsingRunStep struct {
	Repo          DocumentRepository
	ParserVersion string
}

func (s *StartParsingRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := s.Repo.StartParsingRun(ctx, state.DocumentID, documentType(state.Kind), s.ParserVersion)
	if err != nil {
		return fmt.Errorf("StartParsingRun: %w", err)
	}
	state.ParsingRunID = runID
	return nil
}

// Step 4: ExtractStep runs the provider chain and decodes the response.
type ExtractStep struct {
	Extractor Extractor
}

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	ex, err := s.Extractor.Extract(ctx, NewDocument(state.Kind, state.Object))
	// Keep the attempts on failure for the parsing run metadata.
	state.Extraction = ex
	if err != nil {
		return fmt.Errorf("Extract: %w", err)
	}
	return nil
}

// Step 5: StoreModelOutputStep stores the winning raw response.
type StoreModelOutputStep struct {
	Repo DocumentRepository
	Now  func() time.Time
}

func (s *StoreModelOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	run := state.Extraction.Run
	if run == nil {
		return fmt.Errorf("StoreModelOutput: extraction has no provider run")
	}
	row := &infra.ModelOutputRow{
		OutputID:      uuid.NewString(),
		ParsingRunID:  state.ParsingRunID,
		DocumentID:    state.DocumentID,
		ModelName:     run.Provider,
		ExtractedText: bigquery.NullString{StringVal: run.RawText, Valid: run.RawText != ""},
		CreatedTS:     bigquery.NullTimestamp{Timestamp: s.Now(), Valid: true},
	}
	if obj, err := textparse.ExtractObject(run.RawText); err == nil {
		if b, err := json.Marshal(obj); err == nil {
			row.RawJSON = bigquery.NullJSON{JSONVal: string(b), Valid: true}
		}
	}

	if err := s.Repo.InsertModelOutput(ctx, row); err != nil {
		return fmt.Errorf("StoreModelOutput: %w", err)
	}
	return nil
}

// Step 6: TransformStep maps records to transaction rows, and a receipt to
// its header and line items linked to the expense row.
type TransformStep struct {
	Now func() time.Time
}

func (s *TransformStep) Execute(ctx context.Context, state *PipelineState) error {
	now := s.Now()
	records := state.Records()

	rows := make([]*infra.TransactionRow, 0, len(records))
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("Transform: record %d: %w", i, err)
		}
		rows = append(rows, infra.NewTransactionRow(rec, state.UserID, state.DocumentID, state.ParsingRunID, now))
	}
	state.Transactions = rows

	if r := state.Extraction.Receipt; r != nil && len(rows) > 0 {
		state.Receipt, state.ReceiptItems = infra.NewReceiptRows(r, state.UserID, state.DocumentID, state.ParsingRunID, rows[0].TransactionID, now)
	}
	return nil
}

// Step 7: SummarizeStep aggregates the records and checks the statement's
// own overview against them. Disagreements are logged, not fatal.
type SummarizeStep struct{}

func (s *SummarizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Summary = aggregation.Summarize(domain.Bases(state.Records()))

	st := state.Extraction.Statement
	if st == nil {
		return nil
	}
	state.Discrepancies = aggregation.CompareOverview(st.ReportedOverview, state.Summary.Overview)

	log := logger.FromContext(ctx)
	for _, d := range state.Discrepancies {
		log.Warn().
			Str("document_id", state.DocumentID).
			Str("field", d.Field).
			Str("reported", d.Reported.String()).
			Str("computed", d.Computed.String()).
			Msg("Statement overview disagrees with its transactions")
	}
	return nil
}

// Step 8: InsertTransactionsStep writes transactions and any receipt.
type InsertTransactionsStep struct {
	Repo DocumentRepository
}

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Transactions) > 0 {
		if err := s.Repo.InsertTransactions(ctx, state.Transactions); err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
	}
	if state.Receipt != nil {
		if err := s.Repo.InsertReceipt(ctx, state.Receipt, state.ReceiptItems); err != nil {
			return fmt.Errorf("InsertTransactions: receipt: %w", err)
		}
	}
	return nil
}

// Step 9: MarkSuccessStep marks the parsing run as SUCCESS, superseding the
// document's earlier runs on re-ingestion.
type MarkSuccessStep struct {
	Repo DocumentRepository
}

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Reingest {
		if err := s.Repo.MarkParsingRunsAsSuperseded(ctx, state.DocumentID); err != nil {
			return fmt.Errorf("MarkSuccess: %w", err)
		}
	}
	if err := s.Repo.MarkParsingRunSucceeded(ctx, state.ParsingRunID, runMetadata(state)); err != nil {
		return fmt.Errorf("MarkSuccess: %w", err)
	}
	return nil
}

type runMetadataJSON struct {
	Provider      string                    `json:"provider,omitempty"`
	Attempts      []extraction.Attempt      `json:"attempts"`
	Discrepancies []aggregation.Discrepancy `json:"discrepancies,omitempty"`
}

// runMetadata serializes the provider attempts of the run. It returns nil
// when nothing was attempted.
func runMetadata(state *PipelineState) []byte {
	if state.Extraction == nil || state.Extraction.Run == nil {
		return nil
	}
	b, err := json.Marshal(runMetadataJSON{
		Provider:      state.Extraction.Run.Provider,
		Attempts:      state.Extraction.Run.Attempts,
		Discrepancies: state.Discrepancies,
	})
	if err != nil {
		return nil
	}
	return b
}
