package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// DeleteDocumentWithClient deletes a document and everything derived from
// it: receipts, transactions, model outputs and parsing runs.
func DeleteDocumentWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID string) error {
	// Line items hang off receipts, so they go first.
	lineItems := fmt.Sprintf(`
		DELETE FROM %s
		WHERE receipt_id IN (SELECT receipt_id FROM %s WHERE document_id = @document_id)
	`, tableRef(client, dataset, receiptLineItemsTable), tableRef(client, dataset, receiptsTable))
	if err := deleteWhere(ctx, client, lineItems, documentID); err != nil {
		return fmt.Errorf("DeleteDocument: deleting receipt line items: %w", err)
	}

	for _, table := range []string{receiptsTable, transactionsTable, modelOutputsTable, parsingRunsTable, documentsTable} {
		stmt := fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = @document_id
	`, tableRef(client, dataset, table))
		if err := deleteWhere(ctx, client, stmt, documentID); err != nil {
			return fmt.Errorf("DeleteDocument: deleting %s: %w", table, err)
		}
	}

	return nil
}

func deleteWhere(ctx context.Context, client *bigquery.Client, stmt, documentID string) error {
	q := client.Query(stmt)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}
	return runDML(ctx, q)
}
