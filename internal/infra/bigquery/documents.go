package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Document types stored in documents.document_type.
const (
	DocumentTypeStatement = "STATEMENT"
	DocumentTypeReceipt   = "RECEIPT"
	DocumentTypeChart     = "CHART"
)

type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // NULLABLE
	GCSURI     string `bigquery:"gcs_uri"`     // REQUIRED

	DocumentType string `bigquery:"document_type"` // REQUIRED

	UploadTS    time.Time              `bigquery:"upload_ts"`    // REQUIRED
	ProcessedTS bigquery.NullTimestamp `bigquery:"processed_ts"` // NULLABLE

	ParsingStatus string `bigquery:"parsing_status"` // NULLABLE

	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	FileMimeType     string `bigquery:"file_mime_type"`    // NULLABLE

	ChecksumSHA256 string `bigquery:"checksum_sha256"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE
}
