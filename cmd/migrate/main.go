package main

import (
	"context"
	"flag"
	"io/fs"
	"os"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/finance-analyzer/internal/config"
	infra "github.com/dvloznov/finance-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/finance-analyzer/internal/logger"
	"github.com/dvloznov/finance-analyzer/migrations"
)

func main() {
	cfg := config.Load()

	projectID := flag.String("project", cfg.ProjectID, "GCP project ID (defaults to GOOGLE_CLOUD_PROJECT)")
	datasetID := flag.String("dataset", cfg.Dataset, "BigQuery dataset ID (defaults to BQ_DATASET)")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name recorded as the applier")
	dir := flag.String("migrations", "", "Read migrations from this directory instead of the embedded set")
	dryRun := flag.Bool("dry-run", false, "List pending migrations without applying them")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	if *projectID == "" {
		log.Fatal().Msg("-project flag or GOOGLE_CLOUD_PROJECT is required")
	}

	source, err := migrationSource(*dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open migrations")
	}

	all, err := infra.LoadMigrations(ctx, source)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(all)).Msg("Found migration files")

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log = log.With().Str("project", *projectID).Str("dataset", *datasetID).Logger()
	ctx = logger.WithContext(ctx, log)

	if err := infra.EnsureMigrationsTable(ctx, client, *datasetID); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := infra.AppliedMigrations(ctx, client, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found applied migrations")

	pending, err := infra.PendingMigrations(all, applied)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration history does not match migration files")
	}
	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply, schema is up to date")
		return
	}

	for _, m := range pending {
		if *dryRun {
			log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Pending migration")
			continue
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")
		if err := infra.ApplyMigration(ctx, client, *datasetID, m, *appliedBy); err != nil {
			log.Fatal().Err(err).Int("version", m.Version).Msg("Failed to apply migration")
		}
	}

	if !*dryRun {
		log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
}

// migrationSource returns dir as a filesystem, or the embedded scripts when
// dir is empty.
func migrationSource(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(migrations.BigQuery, "bigquery")
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return os.DirFS(dir), nil
}
