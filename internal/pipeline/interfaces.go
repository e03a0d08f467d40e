package pipeline

import (
	"context"

	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
	infra "github.com/dvloznov/finance-analyzer/internal/infra/bigquery"
)

// DocumentRepository is the persistence the ingestion pipeline needs.
// infra.BigQueryDocumentRepository implements it.
type DocumentRepository interface {
	InsertDocument(ctx context.Context, row *infra.DocumentRow) error
	FindDocumentByChecksum(ctx context.Context, checksum string) (*infra.DocumentRow, error)

	StartParsingRun(ctx context.Context, documentID, parserType, parserVersion string) (string, error)
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error, metadata []byte)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, metadata []byte) error
	MarkParsingRunsAsSuperseded(ctx context.Context, documentID string) error
	HasSuccessfulParsingRun(ctx context.Context, documentID string) (bool, error)

	InsertModelOutput(ctx context.Context, row *infra.ModelOutputRow) error
	InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error
	InsertReceipt(ctx context.Context, header *infra.ReceiptRow, items []*infra.ReceiptLineItemRow) error
}

// StorageService fetches the source document.
type StorageService interface {
	Fetch(ctx context.Context, gcsURI string) (*gcs.Object, error)
}

// Extractor turns a document into typed records. *extraction.Service
// implements it.
type Extractor interface {
	Extract(ctx context.Context, doc extraction.Document) (*extraction.Extraction, error)
}
