package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/config"
	"github.com/dvloznov/finance-analyzer/internal/jobs"
	"github.com/dvloznov/finance-analyzer/internal/jobs/inmemory"
	"github.com/dvloznov/finance-analyzer/internal/logger"
	"github.com/dvloznov/finance-analyzer/internal/pipeline"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

func main() {
	kindFlag := flag.String("kind", "statement", "Kind of the documents given as arguments")
	replace := flag.Bool("replace", false, "Re-ingest documents given as arguments")
	flag.Parse()

	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	kind, ok := textparse.ParseKind(*kindFlag)
	if !ok {
		log.Fatal().Str("kind", *kindFlag).Msg("-kind must be statement, receipt or chart")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	f := app.NewFactory(cfg)
	defer f.Close()

	deps, err := f.PipelineDependencies(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}

	jobStore := inmemory.NewStore()
	queue, err := f.JobQueue(ctx, jobStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize job queue")
	}

	log.Info().
		Str("backend", cfg.JobBackend).
		Int("workers", cfg.WorkerCount).
		Strs("providers", cfg.Providers).
		Msg("Starting worker service")

	ingest := pipeline.NewJobHandler(deps, pipeline.Options{}, f.Extractor)
	handler := func(ctx context.Context, job jobs.Job) error {
		log.Info().
			Str("job_id", job.GetID()).
			Str("job_type", string(job.GetType())).
			Msg("Processing job")
		return ingest(ctx, job)
	}

	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	// Documents named on the command line are queued at startup.
	for _, uri := range flag.Args() {
		job := &jobs.ExtractDocumentJob{Kind: kind, GCSURI: uri, Replace: *replace}
		if err := queue.PublishExtractDocument(ctx, job); err != nil {
			log.Error().Err(err).Str("gcs_uri", uri).Msg("Failed to enqueue document")
			continue
		}
		log.Info().Str("job_id", job.JobID).Str("gcs_uri", uri).Msg("Enqueued document")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	if done, err := jobStore.ListJobs(context.Background(), jobs.JobFilter{}); err == nil && len(done) > 0 {
		counts := map[jobs.JobStatus]int{}
		for _, j := range done {
			counts[j.Status]++
		}
		log.Info().
			Int("completed", counts[jobs.JobStatusCompleted]).
			Int("failed", counts[jobs.JobStatusFailed]).
			Int("pending", counts[jobs.JobStatusPending]+counts[jobs.JobStatusRetrying]).
			Msg("Job summary")
	}

	log.Info().Msg("Worker service exited")
}
