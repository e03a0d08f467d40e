package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// InsertReceiptWithClient inserts a receipt header and its line items.
func InsertReceiptWithClient(ctx context.Context, client *bigquery.Client, dataset string, header *ReceiptRow, items []*ReceiptLineItemRow) error {
	if err := client.Dataset(dataset).Table(receiptsTable).Inserter().Put(ctx, header); err != nil {
		return fmt.Errorf("InsertReceipt: inserting receipt: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	if err := client.Dataset(dataset).Table(receiptLineItemsTable).Inserter().Put(ctx, items); err != nil {
		return fmt.Errorf("InsertReceipt: inserting line items: %w", err)
	}
	return nil
}
