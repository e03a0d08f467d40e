package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	documentsTable        = "documents"
	parsingRunsTable      = "parsing_runs"
	modelOutputsTable     = "model_outputs"
	transactionsTable     = "transactions"
	receiptsTable         = "receipts"
	receiptLineItemsTable = "receipt_line_items"
	priceBarsTable        = "price_bars"
)

// tableRef returns the fully qualified, backtick-quoted name of table in
// dataset, using the client's project.
func tableRef(client *bigquery.Client, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", client.Project(), dataset, table)
}

// runDML runs a DML statement and waits for it to finish. DML is used
// instead of streaming inserts for rows that are updated later, so they
// never sit in the streaming buffer.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullJSON(b []byte) bigquery.NullJSON {
	return bigquery.NullJSON{JSONVal: string(b), Valid: len(b) > 0}
}
