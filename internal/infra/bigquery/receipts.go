package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

type ReceiptRow struct {
	ReceiptID string `bigquery:"receipt_id"` // REQUIRED
	UserID    string `bigquery:"user_id"`    // NULLABLE

	DocumentID   string `bigquery:"document_id"`    // REQUIRED
	ParsingRunID string `bigquery:"parsing_run_id"` // NULLABLE

	MerchantName string `bigquery:"merchant_name"` // NULLABLE

	PurchaseDate civil.Date        `bigquery:"purchase_date"` // REQUIRED
	PurchaseTime bigquery.NullTime `bigquery:"purchase_time"` // NULLABLE

	TotalAmount  *big.Rat `bigquery:"total_amount"`  // NUMERIC, REQUIRED
	CategoryName string   `bigquery:"category_name"` // REQUIRED

	PaymentMethod       bigquery.NullString `bigquery:"payment_method"`        // NULLABLE
	LinkedTransactionID bigquery.NullString `bigquery:"linked_transaction_id"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

type ReceiptLineItemRow struct {
	LineItemID string `bigquery:"line_item_id"` // REQUIRED
	ReceiptID  string `bigquery:"receipt_id"`   // REQUIRED

	LineIndex int64 `bigquery:"line_index"`

	Description string   `bigquery:"description"` // REQUIRED
	TotalPrice  *big.Rat `bigquery:"total_price"` // NULLABLE NUMERIC
}

// NewReceiptRows maps a decoded receipt to its header row and line items.
// linkedTransactionID ties the receipt to the expense row stored with it.
func NewReceiptRows(r *textparse.Receipt, userID, documentID, parsingRunID, linkedTransactionID string, now time.Time) (*ReceiptRow, []*ReceiptLineItemRow) {
	m := r.Record.Base()
	header := &ReceiptRow{
		ReceiptID:           uuid.NewString(),
		UserID:              userID,
		DocumentID:          documentID,
		ParsingRunID:        parsingRunID,
		MerchantName:        r.Vendor,
		PurchaseDate:        m.Date,
		TotalAmount:         m.Amount.Rat(),
		CategoryName:        m.Category,
		PaymentMethod:       nullString(m.PaymentMode),
		LinkedTransactionID: nullString(linkedTransactionID),
		CreatedTS:           now,
	}
	if m.Time != nil {
		header.PurchaseTime = bigquery.NullTime{Time: *m.Time, Valid: true}
	}

	items := make([]*ReceiptLineItemRow, 0, len(r.Items))
	for i, it := range r.Items {
		row := &ReceiptLineItemRow{
			LineItemID:  uuid.NewString(),
			ReceiptID:   header.ReceiptID,
			LineIndex:   int64(i),
			Description: it.Name,
		}
		if it.Amount.Valid {
			row.TotalPrice = it.Amount.Decimal.Rat()
		}
		items = append(items, row)
	}
	return header, items
}
