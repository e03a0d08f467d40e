package pipeline_test

import (
	"context"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
	infra "github.com/dvloznov/finance-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/finance-analyzer/internal/providers"
)

// MockDocumentRepository is a mock implementation of DocumentRepository.
// Calls lists the invoked methods in order.
type MockDocumentRepository struct {
	Calls []string

	InsertDocumentFunc              func(ctx context.Context, row *infra.DocumentRow) error
	FindDocumentByChecksumFunc      func(ctx context.Context, checksum string) (*infra.DocumentRow, error)
	StartParsingRunFunc             func(ctx context.Context, documentID, parserType, parserVersion string) (string, error)
	MarkParsingRunFailedFunc        func(ctx context.Context, parsingRunID string, parseErr error, metadata []byte)
	MarkParsingRunSucceededFunc     func(ctx context.Context, parsingRunID string, metadata []byte) error
	MarkParsingRunsAsSupersededFunc func(ctx context.Context, documentID string) error
	HasSuccessfulParsingRunFunc     func(ctx context.Context, documentID string) (bool, error)
	InsertModelOutputFunc           func(ctx context.Context, row *infra.ModelOutputRow) error
	InsertTransactionsFunc          func(ctx context.Context, rows []*infra.TransactionRow) error
	InsertReceiptFunc               func(ctx context.Context, header *infra.ReceiptRow, items []*infra.ReceiptLineItemRow) error
}

func (m *MockDocumentRepository) InsertDocument(ctx context.Context, row *infra.DocumentRow) error {
	m.Calls = append(m.Calls, "InsertDocument")
	if m.InsertDocumentFunc != nil {
		return m.InsertDocumentFunc(ctx, row)
	}
	return nil
}

func (m *MockDocumentRepository) FindDocumentByChecksum(ctx context.Context, checksum string) (*infra.DocumentRow, error) {
	m.Calls = append(m.Calls, "FindDocumentByChecksum")
	if m.FindDocumentByChecksumFunc != nil {
		return m.FindDocumentByChecksumFunc(ctx, checksum)
	}
	return nil, nil
}

func (m *MockDocumentRepository) StartParsingRun(ctx context.Context, documentID, parserType, parserVersion string) (string, error) {
	m.Calls = append(m.Calls, "StartParsingRun")
	if m.StartParsingRunFunc != nil {
		return m.StartParsingRunFunc(ctx, documentID, parserType, parserVersion)
	}
	return "test-run-id", nil
}

func (m *MockDocumentRepository) MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error, metadata []byte) {
	m.Calls = append(m.Calls, "MarkParsingRunFailed")
	if m.MarkParsingRunFailedFunc != nil {
		m.MarkParsingRunFailedFunc(ctx, parsingRunID, parseErr, metadata)
	}
}

func (m *MockDocumentRepository) MarkParsingRunSucceeded(ctx context.Context, parsingRunID string, metadata []byte) error {
	m.Calls = append(m.Calls, "MarkParsingRunSucceeded")
	if m.MarkParsingRunSucceededFunc != nil {
		return m.MarkParsingRunSucceededFunc(ctx, parsingRunID, metadata)
	}
	return nil
}

func (m *MockDocumentRepository) MarkParsingRunsAsSuperseded(ctx context.Context, documentID string) error {
	m.Calls = append(m.Calls, "MarkParsingRunsAsSuperseded")
	if m.MarkParsingRunsAsSupersededFunc != nil {
		return m.MarkParsingRunsAsSupersededFunc(ctx, documentID)
	}
	return nil
}

// HasSuccessfulParsingRun defaults to true, so a matching checksum is a
// duplicate unless a test says otherwise.
func (m *MockDocumentRepository) HasSuccessfulParsingRun(ctx context.Context, documentID string) (bool, error) {
	m.Calls = append(m.Calls, "HasSuccessfulParsingRun")
	if m.HasSuccessfulParsingRunFunc != nil {
		return m.HasSuccessfulParsingRunFunc(ctx, documentID)
	}
	return true, nil
}

func (m *MockDocumentRepository) InsertModelOutput(ctx context.Context, row *infra.ModelOutputRow) error {
	m.Calls = append(m.Calls, "InsertModelOutput")
	if m.InsertModelOutputFunc != nil {
		return m.InsertModelOutputFunc(ctx, row)
	}
	return nil
}

func (m *MockDocumentRepository) InsertTransactions(ctx context.Context, rows []*infra.TransactionRow) error {
	m.Calls = append(m.Calls, "InsertTransactions")
	if m.InsertTransactionsFunc != nil {
		return m.InsertTransactionsFunc(ctx, rows)
	}
	return nil
}

func (m *MockDocumentRepository) InsertReceipt(ctx context.Context, header *infra.ReceiptRow, items []*infra.ReceiptLineItemRow) error {
	m.Calls = append(m.Calls, "InsertReceipt")
	if m.InsertReceiptFunc != nil {
		return m.InsertReceiptFunc(ctx, header, items)
	}
	return nil
}

func (m *MockDocumentRepository) called(name string) bool {
	for _, c := range m.Calls {
		if c == name {
			return true
		}
	}
	return false
}

// MockStorageService is a mock implementation of StorageService.
type MockStorageService struct {
	FetchFunc func(ctx context.Context, gcsURI string) (*gcs.Object, error)
}

func (m *MockStorageService) Fetch(ctx context.Context, gcsURI string) (*gcs.Object, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, gcsURI)
	}
	return &gcs.Object{URI: gcsURI, Bytes: []byte("mock statement"), ContentType: "text/plain"}, nil
}

// MockProvider returns a fixed response or error.
type MockProvider struct {
	id       string
	response string
	err      error
}

func (m *MockProvider) ID() string { return m.id }

func (m *MockProvider) Extract(_ context.Context, _ providers.Document, _ string) (string, error) {
	return m.response, m.err
}

func newExtractor(ps ...providers.Provider) *extraction.Service {
	reg, err := providers.NewRegistry(ps...)
	if err != nil {
		panic(err)
	}
	noWait := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return extraction.NewService(extraction.New(extraction.Config{Sleep: noWait}, reg), nil)
}
