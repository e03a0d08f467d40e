package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

func mustRecord(t *testing.T, m domain.MonetaryRecord) domain.Record {
	t.Helper()
	rec, err := domain.NewRecord(m)
	if err != nil {
		t.Fatalf("NewRecord(%+v) unexpected error: %v", m, err)
	}
	return rec
}

func TestTransactionRowRoundTrip(t *testing.T) {
	clock := civil.Time{Hour: 9, Minute: 30}
	rec := mustRecord(t, domain.MonetaryRecord{
		Date:        civil.Date{Year: 2025, Month: 1, Day: 2},
		Time:        &clock,
		Description: "Coffee",
		Direction:   domain.Debit,
		Amount:      decimal.RequireFromString("3.75"),
		Category:    "Food",
		PaymentMode: "Card",
		ReferenceNo: "R-1",
	})

	now := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	row := NewTransactionRow(rec, "user", "doc-1", "run-1", now)

	if row.TransactionID == "" || row.DocumentID != "doc-1" || row.ParsingRunID != "run-1" {
		t.Errorf("row ids = %+v", row)
	}
	if row.Amount.Cmp(big.NewRat(375, 100)) != 0 || row.Direction != "DEBIT" {
		t.Errorf("row amount/direction = %s %s", row.Amount.FloatString(2), row.Direction)
	}
	if !row.TransactionTime.Valid || row.ExternalReference.Valid || !row.PaymentMode.Valid {
		t.Errorf("nullable columns = %+v", row)
	}

	back, err := row.Record()
	if err != nil {
		t.Fatalf("Record() unexpected error: %v", err)
	}
	got := back.Base()
	if _, ok := back.(domain.ExpenseRecord); !ok {
		t.Errorf("Record() = %T, want ExpenseRecord", back)
	}
	if !got.Amount.Equal(decimal.RequireFromString("3.75")) || got.Time == nil || *got.Time != clock || got.ReferenceNo != "R-1" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestTransactionRowRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		row  TransactionRow
	}{
		{"no amount", TransactionRow{TransactionDate: civil.Date{Year: 2025, Month: 1, Day: 1}, Direction: "CREDIT", CategoryName: "Salary"}},
		{"unknown category", TransactionRow{TransactionDate: civil.Date{Year: 2025, Month: 1, Day: 1}, Direction: "CREDIT", CategoryName: "Groceries", Amount: big.NewRat(1, 1)}},
		{"negative amount", TransactionRow{TransactionDate: civil.Date{Year: 2025, Month: 1, Day: 1}, Direction: "DEBIT", CategoryName: "Food", Amount: big.NewRat(-1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.row.Record(); err == nil {
				t.Error("Record() expected error, got nil")
			}
		})
	}

	if _, err := RecordsFromRows([]*TransactionRow{&tests[1].row}); err == nil {
		t.Error("RecordsFromRows() should fail on an invalid row")
	}
}

func TestNewReceiptRows(t *testing.T) {
	rec := mustRecord(t, domain.MonetaryRecord{
		Date:        civil.Date{Year: 2025, Month: 3, Day: 4},
		Description: "Fresh Mart",
		Direction:   domain.Debit,
		Amount:      decimal.RequireFromString("94.50"),
		Category:    "Groceries",
	})
	receipt := &textparse.Receipt{
		Vendor: "Fresh Mart",
		Record: rec,
		Items: []textparse.ReceiptItem{
			{Name: "Milk", Amount: decimal.NewNullDecimal(decimal.RequireFromString("25"))},
			{Name: "Bag"},
		},
	}

	header, items := NewReceiptRows(receipt, "user", "doc", "run", "tx-1", time.Now())
	if header.MerchantName != "Fresh Mart" || header.TotalAmount.Cmp(big.NewRat(189, 2)) != 0 {
		t.Errorf("header = %+v", header)
	}
	if header.LinkedTransactionID.StringVal != "tx-1" || header.PurchaseTime.Valid {
		t.Errorf("header links = %+v", header)
	}
	if len(items) != 2 || items[0].ReceiptID != header.ReceiptID || items[1].LineIndex != 1 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].TotalPrice.Cmp(big.NewRat(25, 1)) != 0 || items[1].TotalPrice != nil {
		t.Errorf("item prices = %v, %v", items[0].TotalPrice, items[1].TotalPrice)
	}
}
