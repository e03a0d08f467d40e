// Package bigquery stores extraction results in BigQuery: source documents,
// parsing runs with their provider attempts, raw model outputs, validated
// transactions and receipts. It also serves price bars for analysis.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// BigQueryDocumentRepository is the BigQuery implementation of the
// pipeline's repository. It holds a shared client to avoid creating a new
// connection for each operation.
type BigQueryDocumentRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQueryDocumentRepository creates a repository over dataset in projectID.
func NewBigQueryDocumentRepository(ctx context.Context, projectID, dataset string) (*BigQueryDocumentRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryDocumentRepository: creating client: %w", err)
	}
	return &BigQueryDocumentRepository{
		client:  client,
		dataset: dataset,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryDocumentRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *BigQueryDocumentRepository) InsertDocument(ctx context.Context, row *DocumentRow) error {
	return InsertDocumentWithClient(ctx, r.client, r.dataset, row)
}

func (r *BigQueryDocumentRepository) FindDocumentByChecksum(ctx context.Context, checksum string) (*DocumentRow, error) {
	return FindDocumentByChecksumWithClient(ctx, r.client, r.dataset, checksum)
}

func (r *BigQueryDocumentRepository) ListAllDocuments(ctx context.Context) ([]*DocumentRow, error) {
	return ListAllDocumentsWithClient(ctx, r.client, r.dataset)
}

func (r *BigQueryDocumentRepository) DeleteDocument(ctx context.Context, documentID string) error {
	return DeleteDocumentWithClient(ctx, r.client, r.dataset, documentID)
}

func (r *BigQueryDocumentRepository) StartParsingRun(ctx context.Context, documentID, parserType, parserVersion string) (string, error) {
	return StartParsingRunWithClient(ctx, r.client, r.dataset, documentID, parserType, parserVersion)
}

func (r *BigQueryDocumentRepository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error, metadata []byte) {
	MarkParsingRunFailedWithClient(ctx, r.client, r.dataset, parsingRunID, parseErr, metadata)
}

func (r *BigQueryDocumentRepository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, metadata []byte) error {
	return MarkParsingRunSucceededWithClient(ctx, r.client, r.dataset, parsingRunID, metadata)
}

func (r *BigQueryDocumentRepository) HasSuccessfulParsingRun(ctx context.Context, documentID string) (bool, error) {
	return HasSuccessfulParsingRunWithClient(ctx, r.client, r.dataset, documentID)
}

func (r *BigQueryDocumentRepository) MarkParsingRunsAsSuperseded(ctx context.Context, documentID string) error {
	return MarkParsingRunsAsSupersededWithClient(ctx, r.client, r.dataset, documentID)
}

func (r *BigQueryDocumentRepository) InsertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	return InsertModelOutputWithClient(ctx, r.client, r.dataset, row)
}

func (r *BigQueryDocumentRepository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, rows)
}

func (r *BigQueryDocumentRepository) InsertReceipt(ctx context.Context, header *ReceiptRow, items []*ReceiptLineItemRow) error {
	return InsertReceiptWithClient(ctx, r.client, r.dataset, header, items)
}

func (r *BigQueryDocumentRepository) QueryTransactionsByDateRange(ctx context.Context, startDate, endDate civil.Date) ([]*TransactionRow, error) {
	return QueryTransactionsByDateRangeWithClient(ctx, r.client, r.dataset, startDate, endDate)
}

func (r *BigQueryDocumentRepository) QueryPriceBars(ctx context.Context, symbol string, startDate, endDate civil.Date) (domain.PriceSeries, error) {
	return QueryPriceBarsWithClient(ctx, r.client, r.dataset, symbol, startDate, endDate)
}

// QueryRecords loads the stored transactions of [startDate, endDate] as
// validated records.
func (r *BigQueryDocumentRepository) QueryRecords(ctx context.Context, startDate, endDate civil.Date) ([]domain.Record, error) {
	rows, err := r.QueryTransactionsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return RecordsFromRows(rows)
}

// RecordsFromRows converts stored rows into records, failing on the first
// row that no longer validates.
func RecordsFromRows(rows []*TransactionRow) ([]domain.Record, error) {
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
