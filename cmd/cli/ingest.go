package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/config"
	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/pipeline"
)

func runIngest(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the document")
	kindFlag := fs.String("kind", "statement", "Document kind: statement, receipt or chart")
	replace := fs.Bool("replace", false, "Re-ingest a document that was already stored")
	userID := fs.String("user", pipeline.DefaultUserID, "Owner of the document")
	fs.Parse(args)

	if *gcsURI == "" {
		log.Fatal().Msg("Error: -gcs-uri is required")
	}
	kind := parseKindFlag(log, *kindFlag)

	ctx, cancel := context.WithTimeout(commandContext(log), 5*time.Minute)
	defer cancel()

	deps, err := f.PipelineDependencies(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}

	state, err := pipeline.IngestFromGCSWithDeps(ctx, *gcsURI, kind, deps, pipeline.Options{UserID: *userID, Replace: *replace})
	if err != nil {
		var dup *pipeline.DuplicateDocumentError
		if errors.As(err, &dup) {
			log.Fatal().Str("document_id", dup.DocumentID).Msg("Document already ingested; use -replace to re-ingest")
		}
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested %d transactions as document %s (run %s).\n",
		len(state.Transactions), state.DocumentID, state.ParsingRunID)
	for _, d := range state.Discrepancies {
		fmt.Printf("  warning: statement %s is %s, transactions add up to %s\n", d.Field, d.Reported, d.Computed)
	}
}

func runEnqueue(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the document")
	kindFlag := fs.String("kind", "statement", "Document kind: statement, receipt or chart")
	providerList := fs.String("providers", "", "Comma-separated provider chain for this job")
	replace := fs.Bool("replace", false, "Re-ingest a document that was already stored")
	fs.Parse(args)

	if *gcsURI == "" {
		log.Fatal().Msg("Error: -gcs-uri is required")
	}
	if f.Config().JobBackend != config.JobBackendAMQP {
		log.Fatal().Msg("Error: enqueue needs JOB_BACKEND=amqp; the memory queue lives inside the worker")
	}
	kind := parseKindFlag(log, *kindFlag)

	ctx, cancel := context.WithTimeout(commandContext(log), 30*time.Second)
	defer cancel()

	queue, err := f.JobQueue(ctx, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to job queue")
	}

	job := &jobs.ExtractDocumentJob{
		Kind:      kind,
		GCSURI:    *gcsURI,
		Providers: splitList(*providerList),
		Replace:   *replace,
	}
	if err := queue.PublishExtractDocument(ctx, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish job")
	}

	fmt.Printf("Enqueued job %s for %s.\n", job.JobID, job.GCSURI)
}
