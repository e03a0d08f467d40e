package extraction

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

// Extraction is a typed extraction of one document. Exactly one of Statement,
// Receipt and Chart is set, matching Kind. Charts carry no Records.
type Extraction struct {
	Kind      textparse.Kind
	Records   []domain.Record
	Statement *textparse.Statement
	Receipt   *textparse.Receipt
	Chart     *textparse.ChartAnalysis
	Run       *Result
}

// ParseFailedError is a parse failure of a successful provider response.
// It does not trigger fallback; Run keeps the response for diagnostics.
type ParseFailedError struct {
	Run *Result
	Err error
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("provider %s returned unusable output: %v", e.Run.Provider, e.Err)
}

func (e *ParseFailedError) Unwrap() error { return e.Err }

// Service pairs the orchestrator with prompt selection and decoding.
type Service struct {
	orch      *Orchestrator
	providers []string
}

// NewService creates a service that tries providerIDs in order; nil uses the
// registry order.
func NewService(orch *Orchestrator, providerIDs []string) *Service {
	return &Service{orch: orch, providers: providerIDs}
}

// Extract dispatches on doc.Kind; an empty kind is treated as a statement.
func (s *Service) Extract(ctx context.Context, doc Document) (*Extraction, error) {
	switch doc.Kind {
	case textparse.KindReceipt:
		return s.ExtractReceipt(ctx, doc)
	case textparse.KindChart:
		return s.ExtractChart(ctx, doc)
	case textparse.KindStatement, "":
		return s.ExtractStatement(ctx, doc)
	default:
		return nil, fmt.Errorf("Extract: unsupported document kind %q", doc.Kind)
	}
}

// ExtractStatement runs the statement prompt and decodes the transactions.
func (s *Service) ExtractStatement(ctx context.Context, doc Document) (*Extraction, error) {
	doc.Kind = textparse.KindStatement
	run, err := s.run(ctx, doc)
	if err != nil {
		return &Extraction{Kind: doc.Kind, Run: run}, err
	}

	st, err := textparse.DecodeStatement(run.RawText)
	if err != nil {
		return &Extraction{Kind: doc.Kind, Run: run}, &ParseFailedError{Run: run, Err: err}
	}
	return &Extraction{Kind: doc.Kind, Records: st.Records, Statement: st, Run: run}, nil
}

// ExtractReceipt runs the receipt prompt and decodes the single expense.
func (s *Service) ExtractReceipt(ctx context.Context, doc Document) (*Extraction, error) {
	doc.Kind = textparse.KindReceipt
	run, err := s.run(ctx, doc)
	if err != nil {
		return &Extraction{Kind: doc.Kind, Run: run}, err
	}

	r, err := textparse.DecodeReceipt(run.RawText)
	if err != nil {
		return &Extraction{Kind: doc.Kind, Run: run}, &ParseFailedError{Run: run, Err: err}
	}
	return &Extraction{Kind: doc.Kind, Records: []domain.Record{r.Record}, Receipt: r, Run: run}, nil
}

// ExtractChart runs the chart prompt and decodes the charts and series.
func (s *Service) ExtractChart(ctx context.Context, doc Document) (*Extraction, error) {
	doc.Kind = textparse.KindChart
	run, err := s.run(ctx, doc)
	if err != nil {
		return &Extraction{Kind: doc.Kind, Run: run}, err
	}

	c, err := textparse.DecodeChart(run.RawText)
	if err != nil {
		return &Extraction{Kind: doc.Kind, Run: run}, &ParseFailedError{Run: run, Err: err}
	}
	return &Extraction{Kind: doc.Kind, Chart: c, Run: run}, nil
}

func (s *Service) run(ctx context.Context, doc Document) (*Result, error) {
	prompt, err := Prompt(doc.Kind)
	if err != nil {
		return &Result{}, err
	}
	return s.orch.Run(ctx, doc, prompt, s.providers)
}
