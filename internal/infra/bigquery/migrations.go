package bigquery

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-analyzer/internal/logger"
)

const schemaMigrationsTable = "schema_migrations"

// Placeholders substituted into migration scripts before they run.
const (
	projectPlaceholder = "{{PROJECT_ID}}"
	datasetPlaceholder = "{{DATASET_ID}}"
)

var migrationFilePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is one versioned schema script.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	// Checksum is taken over the script before placeholder substitution,
	// so the same script applied to another dataset keeps its checksum.
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// ParseMigrationFilename splits "0001_name.sql" into its version and name.
func ParseMigrationFilename(filename string) (int, string, bool) {
	m := migrationFilePattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// LoadMigrations reads every NNNN_name.sql file at the root of fsys, sorted
// by version. Files that do not follow the naming pattern are skipped;
// two files with the same version are an error.
func LoadMigrations(ctx context.Context, fsys fs.FS) ([]Migration, error) {
	log := logger.FromContext(ctx)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: reading directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := ParseMigrationFilename(entry.Name())
		if !ok {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid migration name")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("LoadMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("LoadMigrations: reading %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Render substitutes the project and dataset placeholders.
func (m Migration) Render(project, dataset string) string {
	sql := strings.ReplaceAll(m.SQL, projectPlaceholder, project)
	return strings.ReplaceAll(sql, datasetPlaceholder, dataset)
}

// PendingMigrations returns the migrations not yet applied, in order. An
// applied migration whose script has since changed is an error.
func PendingMigrations(all []Migration, applied []AppliedMigration) ([]Migration, error) {
	done := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		done[am.Version] = am
	}

	var pending []Migration
	for _, m := range all {
		am, ok := done[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			return nil, fmt.Errorf("PendingMigrations: %s was changed after being applied", m.Filename)
		}
	}
	return pending, nil
}

// EnsureMigrationsTable creates schema_migrations when it does not exist.
func EnsureMigrationsTable(ctx context.Context, client *bigquery.Client, dataset string) error {
	q := client.Query(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, tableRef(client, dataset, schemaMigrationsTable)))

	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("EnsureMigrationsTable: %w", err)
	}
	return nil
}

// AppliedMigrations lists the recorded migrations, oldest version first. A
// missing schema_migrations table yields an empty list.
func AppliedMigrations(ctx context.Context, client *bigquery.Client, dataset string) ([]AppliedMigration, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, tableRef(client, dataset, schemaMigrationsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("AppliedMigrations: query read: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("AppliedMigrations: iter next: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

// ApplyMigration runs m against dataset and records it in schema_migrations.
func ApplyMigration(ctx context.Context, client *bigquery.Client, dataset string, m Migration, appliedBy string) error {
	if err := runDML(ctx, client.Query(m.Render(client.Project(), dataset))); err != nil {
		return fmt.Errorf("ApplyMigration: %s: %w", m.Filename, err)
	}

	q := client.Query(fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, tableRef(client, dataset, schemaMigrationsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("ApplyMigration: recording %s: %w", m.Filename, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	return strings.Contains(err.Error(), "Not found")
}
