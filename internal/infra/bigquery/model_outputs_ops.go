package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// InsertModelOutputWithClient inserts a single ModelOutputRow. Uses DML
// INSERT to avoid streaming buffer issues on later deletes.
func InsertModelOutputWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *ModelOutputRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			output_id, parsing_run_id, document_id,
			model_name, model_version, raw_json,
			extracted_text, created_ts, notes, metadata
		)
		VALUES (
			@output_id, @parsing_run_id, @document_id,
			@model_name, @model_version, @raw_json,
			@extracted_text, @created_ts, @notes, @metadata
		)
	`, tableRef(client, dataset, modelOutputsTable)))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "parsing_run_id", Value: row.ParsingRunID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "model_version", Value: row.ModelVersion},
		{Name: "raw_json", Value: row.RawJSON},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "notes", Value: row.Notes},
		{Name: "metadata", Value: row.Metadata},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}
	return nil
}
