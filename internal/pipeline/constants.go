package pipeline

// Default values for document processing.
const (
	// DefaultUserID owns documents and transactions when no user is given.
	DefaultUserID = "default"

	// DefaultParserVersion is stored on every parsing run.
	DefaultParserVersion = "v1"
)
