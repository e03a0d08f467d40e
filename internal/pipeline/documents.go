package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
	infra "github.com/dvloznov/finance-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

// DuplicateDocumentError is returned when the fetched file matches a stored
// document by checksum and re-ingestion was not requested.
type DuplicateDocumentError struct {
	DocumentID string
	Checksum   string
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("document already ingested as %s (sha256 %s)", e.DocumentID, e.Checksum)
}

// Checksum is the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func documentType(kind textparse.Kind) string {
	switch kind {
	case textparse.KindReceipt:
		return infra.DocumentTypeReceipt
	case textparse.KindChart:
		return infra.DocumentTypeChart
	default:
		return infra.DocumentTypeStatement
	}
}

// newDocumentRow builds the documents row for a freshly fetched file.
func newDocumentRow(state *PipelineState, now time.Time) *infra.DocumentRow {
	row := &infra.DocumentRow{
		DocumentID:       uuid.NewString(),
		UserID:           state.UserID,
		GCSURI:           state.GCSURI,
		DocumentType:     documentType(state.Kind),
		UploadTS:         now,
		ParsingStatus:    "PENDING",
		OriginalFilename: gcs.ExtractFilenameFromGCSURI(state.GCSURI),
		ChecksumSHA256:   state.Checksum,
	}
	if state.Object != nil {
		row.FileMimeType = state.Object.ContentType
	}
	return row
}

// NewDocument wraps a fetched object for the providers. Text content is sent
// as text; anything else goes as raw bytes with its MIME type.
func NewDocument(kind textparse.Kind, obj *gcs.Object) extraction.Document {
	doc := extraction.Document{Kind: kind, MIMEType: obj.ContentType}
	if strings.HasPrefix(obj.ContentType, "text/") {
		doc.Text = string(obj.Bytes)
	} else {
		doc.Bytes = obj.Bytes
	}
	return doc
}
