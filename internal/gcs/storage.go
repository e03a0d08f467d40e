// Package gcs moves source documents in and out of Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Object is a downloaded document with the content type stored on it.
type Object struct {
	URI         string
	Bytes       []byte
	ContentType string
}

// Storage wraps a shared storage client. It assumes Application Default
// Credentials are configured (gcloud auth application-default login).
type Storage struct {
	client *storage.Client
}

// NewStorage creates a storage client.
func NewStorage(ctx context.Context) (*Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorage: create storage client: %w", err)
	}
	return &Storage{client: client}, nil
}

// Close releases the client.
func (s *Storage) Close() error {
	return s.client.Close()
}

// UploadFile uploads a local file to bucket under objectName and returns
// its gs:// URI.
func (s *Storage) UploadFile(ctx context.Context, bucketName, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = DetectContentType(filePath)

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("UploadFile: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}

// Fetch downloads the object at a gs:// URI.
func (s *Storage) Fetch(ctx context.Context, gcsURI string) (*Object, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	contentType := rc.Attrs.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = DetectContentType(objectPath)
	}
	return &Object{URI: gcsURI, Bytes: data, ContentType: contentType}, nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object path.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// ObjectName builds a date-partitioned object name for an upload,
// e.g. "statements/2025/01/02/march.pdf".
func ObjectName(prefix, filePath string, now time.Time) string {
	return path.Join(prefix, now.Format("2006/01/02"), filepath.Base(filePath))
}

// DetectContentType guesses a MIME type from the file extension, falling
// back to application/pdf.
func DetectContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "application/pdf"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, ok := strings.Cut(t, ";"); ok {
			return base
		}
		return t
	}
	return "application/octet-stream"
}
