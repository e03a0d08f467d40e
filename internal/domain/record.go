package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Direction says whether money came in or went out. Amounts never carry the sign.
type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// ParseDirection accepts CREDIT/DEBIT and the common aliases models emit.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREDIT", "CR", "IN", "INCOME", "DEPOSIT":
		return Credit, nil
	case "DEBIT", "DR", "OUT", "EXPENSE", "WITHDRAWAL":
		return Debit, nil
	}
	return "", invalid("direction", s, "want CREDIT or DEBIT")
}

// MonetaryRecord is one dated, categorized money movement. Records are
// immutable once produced.
type MonetaryRecord struct {
	Date        civil.Date      `json:"date"`
	Time        *civil.Time     `json:"time,omitempty"`
	Description string          `json:"description"`
	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	PaymentMode string          `json:"paymentMode,omitempty"`
	ExternalID  string          `json:"externalId,omitempty"`
	ReferenceNo string          `json:"referenceNo,omitempty"`
}

// SignedAmount returns the amount as positive for credits and negative for debits.
func (r MonetaryRecord) SignedAmount() decimal.Decimal {
	if r.Direction == Debit {
		return r.Amount.Neg()
	}
	return r.Amount
}

// Timestamp combines the date with the optional clock time (midnight when absent).
func (r MonetaryRecord) Timestamp() time.Time {
	if r.Time == nil {
		return r.Date.In(time.UTC)
	}
	return civil.DateTime{Date: r.Date, Time: *r.Time}.In(time.UTC)
}

func (r MonetaryRecord) validateBase() error {
	if !r.Date.IsValid() {
		return invalid("date", r.Date.String(), "not a calendar date")
	}
	if r.Time != nil && !r.Time.IsValid() {
		return invalid("time", r.Time.String(), "not a clock time")
	}
	if r.Amount.IsNegative() {
		return invalid("amount", r.Amount.String(), "must be non-negative")
	}
	return nil
}

// Record is the tagged variant over income and expense records.
type Record interface {
	Base() MonetaryRecord
	Validate() error
	isRecord()
}

// IncomeRecord is a CREDIT record whose category is an income category.
type IncomeRecord struct {
	MonetaryRecord
}

func (r IncomeRecord) Base() MonetaryRecord { return r.MonetaryRecord }
func (IncomeRecord) isRecord()              {}

// Validate checks the shared invariants plus the income category set.
func (r IncomeRecord) Validate() error {
	if r.Direction != Credit {
		return invalid("direction", string(r.Direction), "income records must be CREDIT")
	}
	if err := r.validateBase(); err != nil {
		return err
	}
	_, err := incomeSet.Canonical(r.Category)
	return err
}

// ExpenseRecord is a DEBIT record whose category is an expense category.
type ExpenseRecord struct {
	MonetaryRecord
}

func (r ExpenseRecord) Base() MonetaryRecord { return r.MonetaryRecord }
func (ExpenseRecord) isRecord()              {}

// Validate checks the shared invariants plus the expense category set.
func (r ExpenseRecord) Validate() error {
	if r.Direction != Debit {
		return invalid("direction", string(r.Direction), "expense records must be DEBIT")
	}
	if err := r.validateBase(); err != nil {
		return err
	}
	_, err := expenseSet.Canonical(r.Category)
	return err
}

// NewRecord picks the variant from the record direction, canonicalizes the
// category against that variant's closed set and validates the result.
// Out-of-set categories are rejected, never coerced.
func NewRecord(m MonetaryRecord) (Record, error) {
	switch m.Direction {
	case Credit, Debit:
	default:
		return nil, invalid("direction", string(m.Direction), "want CREDIT or DEBIT")
	}

	category, err := CategoriesFor(m.Direction).Canonical(m.Category)
	if err != nil {
		return nil, err
	}
	m.Category = category
	m.Description = strings.TrimSpace(m.Description)

	var rec Record
	if m.Direction == Credit {
		rec = IncomeRecord{m}
	} else {
		rec = ExpenseRecord{m}
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Bases unwraps a slice of records for aggregation.
func Bases(records []Record) []MonetaryRecord {
	out := make([]MonetaryRecord, len(records))
	for i, r := range records {
		out[i] = r.Base()
	}
	return out
}
