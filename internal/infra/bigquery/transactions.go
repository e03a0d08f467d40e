package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// numericScale is the scale of BigQuery NUMERIC columns.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID string `bigquery:"user_id"` // NULLABLE

	DocumentID   string `bigquery:"document_id"`    // NULLABLE
	ParsingRunID string `bigquery:"parsing_run_id"` // NULLABLE

	TransactionDate civil.Date        `bigquery:"transaction_date"` // REQUIRED
	TransactionTime bigquery.NullTime `bigquery:"transaction_time"` // NULLABLE

	Amount    *big.Rat `bigquery:"amount"`    // REQUIRED NUMERIC, never negative
	Direction string   `bigquery:"direction"` // REQUIRED, CREDIT or DEBIT

	RawDescription string `bigquery:"raw_description"` // REQUIRED
	CategoryName   string `bigquery:"category_name"`   // REQUIRED

	PaymentMode       bigquery.NullString `bigquery:"payment_mode"`       // NULLABLE
	ExternalReference bigquery.NullString `bigquery:"external_reference"` // NULLABLE
	ReferenceNo       bigquery.NullString `bigquery:"reference_no"`       // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// NewTransactionRow maps a validated record to a row of the given run.
func NewTransactionRow(rec domain.Record, userID, documentID, parsingRunID string, now time.Time) *TransactionRow {
	m := rec.Base()
	row := &TransactionRow{
		TransactionID:     uuid.NewString(),
		UserID:            userID,
		DocumentID:        documentID,
		ParsingRunID:      parsingRunID,
		TransactionDate:   m.Date,
		Amount:            m.Amount.Rat(),
		Direction:         string(m.Direction),
		RawDescription:    m.Description,
		CategoryName:      m.Category,
		PaymentMode:       nullString(m.PaymentMode),
		ExternalReference: nullString(m.ExternalID),
		ReferenceNo:       nullString(m.ReferenceNo),
		CreatedTS:         now,
	}
	if m.Time != nil {
		row.TransactionTime = bigquery.NullTime{Time: *m.Time, Valid: true}
	}
	return row
}

// Record converts a stored row back into a validated record.
func (r *TransactionRow) Record() (domain.Record, error) {
	if r.Amount == nil {
		return nil, fmt.Errorf("Record: transaction %s has no amount", r.TransactionID)
	}
	amount, err := decimal.NewFromString(r.Amount.FloatString(numericScale))
	if err != nil {
		return nil, fmt.Errorf("Record: transaction %s amount: %w", r.TransactionID, err)
	}

	m := domain.MonetaryRecord{
		Date:        r.TransactionDate,
		Description: r.RawDescription,
		Direction:   domain.Direction(r.Direction),
		Amount:      amount,
		Category:    r.CategoryName,
		PaymentMode: r.PaymentMode.StringVal,
		ExternalID:  r.ExternalReference.StringVal,
		ReferenceNo: r.ReferenceNo.StringVal,
	}
	if r.TransactionTime.Valid {
		t := r.TransactionTime.Time
		m.Time = &t
	}

	rec, err := domain.NewRecord(m)
	if err != nil {
		return nil, fmt.Errorf("Record: transaction %s: %w", r.TransactionID, err)
	}
	return rec, nil
}
