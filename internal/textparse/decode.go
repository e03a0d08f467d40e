package textparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-analyzer/internal/aggregation"
	"github.com/dvloznov/finance-analyzer/internal/domain"
)

// Statement is a decoded statement extraction. Reported figures are what the
// model claimed; callers recompute them from Records.
type Statement struct {
	Records          []domain.Record
	ReportedDaily    []aggregation.DailySummary
	ReportedOverview aggregation.Overview
}

// ReceiptItem is one purchased line. Amount is null when the receipt line
// carried no price.
type ReceiptItem struct {
	Name   string              `json:"name"`
	Amount decimal.NullDecimal `json:"amount"`
}

// Receipt is a decoded receipt extraction. Receipts are always expenses.
type Receipt struct {
	Vendor string
	Items  []ReceiptItem
	Record domain.Record
}

// looseString accepts JSON strings, numbers and null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("want string or number, got %s", b)
	}
	*s = looseString(n.String())
	return nil
}

type wireTransaction struct {
	Date        looseString      `json:"date"`
	Time        looseString      `json:"time"`
	Description looseString      `json:"description"`
	Direction   looseString      `json:"direction"`
	Type        looseString      `json:"type"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    looseString      `json:"category"`
	PaymentMode looseString      `json:"paymentMode"`
	ExternalID  looseString      `json:"externalId"`
	ReferenceNo looseString      `json:"referenceNo"`
}

type wireDay struct {
	Date             looseString     `json:"date"`
	TotalCredit      decimal.Decimal `json:"totalCredit"`
	TotalDebit       decimal.Decimal `json:"totalDebit"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	TransactionCount int             `json:"transactionCount"`
}

type wireStatement struct {
	Transactions []wireTransaction   `json:"transactions"`
	DailySummary []wireDay           `json:"dailySummary"`
	Overview     aggregation.Overview `json:"overview"`
}

type wireItem struct {
	Name   string
	Amount *decimal.Decimal
}

func (w *wireItem) UnmarshalJSON(b []byte) error {
	var name looseString
	if err := json.Unmarshal(b, &name); err == nil {
		w.Name = string(name)
		return nil
	}
	var obj struct {
		Name   looseString      `json:"name"`
		Item   looseString      `json:"item"`
		Amount *decimal.Decimal `json:"amount"`
		Price  *decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	w.Name = string(obj.Name)
	if w.Name == "" {
		w.Name = string(obj.Item)
	}
	w.Amount = obj.Amount
	if w.Amount == nil {
		w.Amount = obj.Price
	}
	return nil
}

type wireReceipt struct {
	Vendor      looseString      `json:"vendor"`
	Description looseString      `json:"description"`
	Date        looseString      `json:"date"`
	Time        looseString      `json:"time"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    looseString      `json:"category"`
	PaymentMode looseString      `json:"paymentMode"`
	ReferenceNo looseString      `json:"referenceNo"`
	Items       []wireItem       `json:"items"`
}

// DecodeStatement parses text as a statement extraction and converts every
// transaction into a validated record. One bad transaction fails the whole
// statement.
func DecodeStatement(text string) (*Statement, error) {
	obj, err := Parse(text, KindStatement)
	if err != nil {
		return nil, err
	}
	var wire wireStatement
	if err := remarshal(obj, &wire); err != nil {
		return nil, &ParseError{Reason: "statement does not match the expected shape", Err: err}
	}

	st := &Statement{
		Records:          make([]domain.Record, 0, len(wire.Transactions)),
		ReportedDaily:    make([]aggregation.DailySummary, 0, len(wire.DailySummary)),
		ReportedOverview: wire.Overview,
	}
	for i, tx := range wire.Transactions {
		rec, err := tx.record()
		if err != nil {
			return nil, fmt.Errorf("DecodeStatement: transaction %d: %w", i, err)
		}
		st.Records = append(st.Records, rec)
	}
	for i, d := range wire.DailySummary {
		date, err := ParseDate(string(d.Date))
		if err != nil {
			return nil, badField(fmt.Sprintf("dailySummary[%d].date", i), "invalid date", err)
		}
		st.ReportedDaily = append(st.ReportedDaily, aggregation.DailySummary{
			Date:             date,
			TotalCredit:      d.TotalCredit,
			TotalDebit:       d.TotalDebit,
			NetAmount:        d.NetAmount,
			TransactionCount: d.TransactionCount,
		})
	}
	return st, nil
}

// DecodeReceipt parses text as a receipt extraction. The record is an
// expense dated on the receipt date and described by the vendor.
func DecodeReceipt(text string) (*Receipt, error) {
	obj, err := Parse(text, KindReceipt)
	if err != nil {
		return nil, err
	}
	var wire wireReceipt
	if err := remarshal(obj, &wire); err != nil {
		return nil, &ParseError{Reason: "receipt does not match the expected shape", Err: err}
	}

	description := string(wire.Description)
	if description == "" {
		description = string(wire.Vendor)
	}
	tx := wireTransaction{
		Date:        wire.Date,
		Time:        wire.Time,
		Description: looseString(description),
		Direction:   looseString(domain.Debit),
		Amount:      wire.Amount,
		Category:    wire.Category,
		PaymentMode: wire.PaymentMode,
		ReferenceNo: wire.ReferenceNo,
	}
	rec, err := tx.record()
	if err != nil {
		return nil, fmt.Errorf("DecodeReceipt: %w", err)
	}

	r := &Receipt{Vendor: string(wire.Vendor), Record: rec}
	for _, it := range wire.Items {
		item := ReceiptItem{Name: it.Name}
		if it.Amount != nil {
			item.Amount = decimal.NewNullDecimal(*it.Amount)
		}
		r.Items = append(r.Items, item)
	}
	return r, nil
}

// record converts a wire transaction. With no direction or type the sign of
// the amount decides and the magnitude is kept.
func (w wireTransaction) record() (domain.Record, error) {
	date, err := ParseDate(string(w.Date))
	if err != nil {
		return nil, &domain.ValidationError{Field: "date", Value: string(w.Date), Reason: "not a recognized date"}
	}
	if w.Amount == nil {
		return nil, &domain.ValidationError{Field: "amount", Reason: "missing"}
	}

	m := domain.MonetaryRecord{
		Date:        date,
		Description: string(w.Description),
		Amount:      *w.Amount,
		Category:    string(w.Category),
		PaymentMode: string(w.PaymentMode),
		ExternalID:  string(w.ExternalID),
		ReferenceNo: string(w.ReferenceNo),
	}

	if w.Time != "" {
		clock, err := ParseClock(string(w.Time))
		if err != nil {
			return nil, &domain.ValidationError{Field: "time", Value: string(w.Time), Reason: "not a recognized time"}
		}
		m.Time = &clock
	}

	dir := string(w.Direction)
	if dir == "" {
		dir = string(w.Type)
	}
	switch {
	case dir != "":
		if m.Direction, err = domain.ParseDirection(dir); err != nil {
			return nil, err
		}
	case m.Amount.IsNegative():
		m.Direction = domain.Debit
		m.Amount = m.Amount.Abs()
	default:
		m.Direction = domain.Credit
	}

	return domain.NewRecord(m)
}

func remarshal(obj map[string]any, v any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
