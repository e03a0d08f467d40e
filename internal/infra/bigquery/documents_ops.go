package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const documentColumns = `
			document_id,
			user_id,
			gcs_uri,
			document_type,
			upload_ts,
			processed_ts,
			parsing_status,
			original_filename,
			file_mime_type,
			checksum_sha256,
			metadata`

// InsertDocumentWithClient inserts a single DocumentRow into the documents
// table. It uses DML so the row can be deleted right away on re-ingestion.
func InsertDocumentWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *DocumentRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (%s
		)
		VALUES (
			@document_id, @user_id, @gcs_uri, @document_type,
			@upload_ts, @processed_ts, @parsing_status,
			@original_filename, @file_mime_type, @checksum_sha256, @metadata
		)
	`, tableRef(client, dataset, documentsTable), documentColumns))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: row.DocumentID},
		{Name: "user_id", Value: row.UserID},
		{Name: "gcs_uri", Value: row.GCSURI},
		{Name: "document_type", Value: row.DocumentType},
		{Name: "upload_ts", Value: row.UploadTS},
		{Name: "processed_ts", Value: row.ProcessedTS},
		{Name: "parsing_status", Value: row.ParsingStatus},
		{Name: "original_filename", Value: row.OriginalFilename},
		{Name: "file_mime_type", Value: row.FileMimeType},
		{Name: "checksum_sha256", Value: row.ChecksumSHA256},
		{Name: "metadata", Value: row.Metadata},
	}

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertDocument: %w", err)
	}
	return nil
}

// ListAllDocumentsWithClient retrieves all documents, newest first.
func ListAllDocumentsWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]*DocumentRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		ORDER BY upload_ts DESC
	`, documentColumns, tableRef(client, dataset, documentsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAllDocuments: reading query: %w", err)
	}

	var documents []*DocumentRow
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAllDocuments: iterating: %w", err)
		}
		documents = append(documents, &row)
	}

	return documents, nil
}

// FindDocumentByChecksumWithClient retrieves a document by its SHA-256
// checksum. Returns nil if no document with the given checksum exists.
func FindDocumentByChecksumWithClient(ctx context.Context, client *bigquery.Client, dataset, checksum string) (*DocumentRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE checksum_sha256 = @checksum
		LIMIT 1
	`, documentColumns, tableRef(client, dataset, documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "checksum", Value: checksum},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: reading query: %w", err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: reading row: %w", err)
	}

	return &row, nil
}
