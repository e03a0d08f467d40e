package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// InsertTransactionsWithClient inserts a batch of TransactionRow.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.DatasetInProject(client.Project(), dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}

	return nil
}

// QueryTransactionsByDateRangeWithClient returns the transactions dated
// within [startDate, endDate]. Only transactions of successful parsing runs
// are included, so failed and superseded runs drop out.
func QueryTransactionsByDateRangeWithClient(ctx context.Context, client *bigquery.Client, dataset string, startDate, endDate civil.Date) ([]*TransactionRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			t.transaction_id,
			t.user_id,
			t.document_id,
			t.parsing_run_id,
			t.transaction_date,
			t.transaction_time,
			t.amount,
			t.direction,
			t.raw_description,
			t.category_name,
			t.payment_mode,
			t.external_reference,
			t.reference_no,
			t.created_ts
		FROM %s t
		INNER JOIN %s pr
		  ON t.parsing_run_id = pr.parsing_run_id
		WHERE t.transaction_date >= @start_date
		  AND t.transaction_date <= @end_date
		  AND pr.status = @status
		ORDER BY t.transaction_date, t.created_ts
	`, tableRef(client, dataset, transactionsTable), tableRef(client, dataset, parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "start_date", Value: startDate},
		{Name: "end_date", Value: endDate},
		{Name: "status", Value: ParsingRunSucceeded},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDateRange: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDateRange: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
