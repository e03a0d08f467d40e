package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Parsing run statuses.
const (
	ParsingRunRunning    = "RUNNING"
	ParsingRunSucceeded  = "SUCCESS"
	ParsingRunFailed     = "FAILED"
	ParsingRunSuperseded = "SUPERSEDED"
)

type ParsingRunRow struct {
	ParsingRunID string `bigquery:"parsing_run_id"` // REQUIRED
	DocumentID   string `bigquery:"document_id"`    // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	// ParserType is the extraction kind, ParserVersion the provider chain.
	ParserType    string `bigquery:"parser_type"`    // NULLABLE
	ParserVersion string `bigquery:"parser_version"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	// Metadata holds the provider attempts of the run.
	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}
