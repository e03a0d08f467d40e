package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/dvloznov/finance-analyzer/internal/logger"
)

const maxErrorMessageLen = 2000

// StartParsingRunWithClient inserts a new parsing_runs row with
// status=RUNNING and returns the generated parsing_run_id.
func StartParsingRunWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID, parserType, parserVersion string) (string, error) {
	parsingRunID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s (
			parsing_run_id,
			document_id,
			started_ts,
			parser_type,
			parser_version,
			status
		)
		VALUES (
			@parsing_run_id,
			@document_id,
			@started_ts,
			@parser_type,
			@parser_version,
			@status
		)
	`, tableRef(client, dataset, parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "parsing_run_id", Value: parsingRunID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
		{Name: "parser_type", Value: parserType},
		{Name: "parser_version", Value: parserVersion},
		{Name: "status", Value: ParsingRunRunning},
	}

	if err := runDML(ctx, q); err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}

	return parsingRunID, nil
}

// MarkParsingRunFailedWithClient sets status=FAILED, finished_ts,
// error_message and the attempts metadata. Failures are logged, not
// returned: the caller is already reporting the original error.
func MarkParsingRunFailedWithClient(ctx context.Context, client *bigquery.Client, dataset, parsingRunID string, parseErr error, metadata []byte) {
	log := logger.FromContext(ctx)

	errMsg := ""
	if parseErr != nil {
		errMsg = parseErr.Error()
		if len(errMsg) > maxErrorMessageLen {
			errMsg = errMsg[:maxErrorMessageLen]
		}
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message,
		    metadata = @metadata
		WHERE parsing_run_id = @parsing_run_id
	`, tableRef(client, dataset, parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ParsingRunFailed},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "error_message", Value: errMsg},
		{Name: "metadata", Value: nullJSON(metadata)},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := runDML(ctx, q); err != nil {
		log.Error().
			Err(err).
			Str("parsing_run_id", parsingRunID).
			Msg("MarkParsingRunFailed: update failed")
	}
}

// MarkParsingRunSucceededWithClient sets status=SUCCESS, finished_ts and
// the attempts metadata, and clears error_message.
func MarkParsingRunSucceededWithClient(ctx context.Context, client *bigquery.Client, dataset, parsingRunID string, metadata []byte) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = "",
		    metadata = @metadata
		WHERE parsing_run_id = @parsing_run_id
	`, tableRef(client, dataset, parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ParsingRunSucceeded},
		{Name: "finished_ts", Value: time.Now()},
		{Name: "metadata", Value: nullJSON(metadata)},
		{Name: "parsing_run_id", Value: parsingRunID},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}

// MarkParsingRunsAsSupersededWithClient flags every successful run of a
// document as SUPERSEDED so its transactions drop out of queries.
func MarkParsingRunsAsSupersededWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID string) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status
		WHERE document_id = @document_id
		  AND status = @success
	`, tableRef(client, dataset, parsingRunsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: ParsingRunSuperseded},
		{Name: "document_id", Value: documentID},
		{Name: "success", Value: ParsingRunSucceeded},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkParsingRunsAsSuperseded: %w", err)
	}
	return nil
}

// HasSuccessfulParsingRunWithClient reports whether documentID has a run in
// status SUCCESS.
func HasSuccessfulParsingRunWithClient(ctx context.Context, client *bigquery.Client, dataset, documentID string) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS runs
		FROM %s
		WHERE document_id = @document_id
		  AND status = @status
	`, tableRef(client, dataset, parsingRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
		{Name: "status", Value: ParsingRunSucceeded},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("HasSuccessfulParsingRun: query read: %w", err)
	}

	var row struct {
		Runs int64 `bigquery:"runs"`
	}
	if err := it.Next(&row); err != nil {
		return false, fmt.Errorf("HasSuccessfulParsingRun: iter next: %w", err)
	}
	return row.Runs > 0, nil
}
