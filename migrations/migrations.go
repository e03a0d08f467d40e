// Package migrations embeds the versioned schema scripts applied by
// cmd/migrate.
package migrations

import "embed"

// BigQuery holds the bigquery/NNNN_name.sql scripts.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS
