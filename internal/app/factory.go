// Package app wires configuration into the cloud-backed services shared by
// the CLI and the worker.
package app

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/dvloznov/finance-analyzer/internal/config"
	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
	infra "github.com/dvloznov/finance-analyzer/internal/infra/bigquery"
	"github.com/dvloznov/finance-analyzer/internal/jobs"
	jobsamqp "github.com/dvloznov/finance-analyzer/internal/jobs/amqp"
	"github.com/dvloznov/finance-analyzer/internal/jobs/inmemory"
	"github.com/dvloznov/finance-analyzer/internal/logger"
	"github.com/dvloznov/finance-analyzer/internal/pipeline"
	"github.com/dvloznov/finance-analyzer/internal/providers"
)

// Factory creates clients from one configuration and owns their cleanup.
type Factory struct {
	cfg *config.Config

	mu      sync.Mutex
	gemini  *genai.Client
	closers []func() error
}

// NewFactory creates a factory for cfg.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// Config returns the configuration the factory was built with.
func (f *Factory) Config() *config.Config {
	return f.cfg
}

func (f *Factory) geminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gemini != nil {
		return f.gemini, nil
	}
	client, err := providers.NewGeminiClient(ctx, f.cfg.GeminiAPIVersion)
	if err != nil {
		return nil, err
	}
	f.gemini = client
	return client, nil
}

// ExtractionService builds a service over providerIDs, or the configured
// chain when providerIDs is empty.
func (f *Factory) ExtractionService(ctx context.Context, providerIDs []string) (*extraction.Service, error) {
	specs := f.providerSpecs(providerIDs)
	reg, err := f.Registry(ctx, specs)
	if err != nil {
		return nil, fmt.Errorf("ExtractionService: %w", err)
	}
	return extraction.NewService(extraction.New(f.cfg.Orchestrator(), reg), specs), nil
}

func (f *Factory) providerSpecs(providerIDs []string) []string {
	if len(providerIDs) == 0 {
		return f.cfg.Providers
	}
	return providerIDs
}

// Registry builds the providers named by providerIDs, or the configured
// chain when providerIDs is empty.
func (f *Factory) Registry(ctx context.Context, providerIDs []string) (*providers.Registry, error) {
	specs := f.providerSpecs(providerIDs)

	opts := providers.Options{
		OllamaURL:        f.cfg.OllamaURL,
		GeminiAPIVersion: f.cfg.GeminiAPIVersion,
	}
	for _, spec := range specs {
		if kind, _, err := providers.ParseSpec(spec); err == nil && kind == "gemini" {
			client, err := f.geminiClient(ctx)
			if err != nil {
				return nil, fmt.Errorf("Registry: %w", err)
			}
			opts.GeminiClient = client
			break
		}
	}

	return providers.BuildRegistry(ctx, specs, opts)
}

// Extractor adapts ExtractionService to pipeline.ExtractorFactory.
func (f *Factory) Extractor(ctx context.Context, providerIDs []string) (pipeline.Extractor, error) {
	return f.ExtractionService(ctx, providerIDs)
}

// Repository opens the BigQuery repository.
func (f *Factory) Repository(ctx context.Context) (*infra.BigQueryDocumentRepository, error) {
	if err := f.cfg.RequireCloud(); err != nil {
		return nil, err
	}
	repo, err := infra.NewBigQueryDocumentRepository(ctx, f.cfg.ProjectID, f.cfg.Dataset)
	if err != nil {
		return nil, err
	}
	f.onClose(repo.Close)
	return repo, nil
}

// Storage opens the GCS client.
func (f *Factory) Storage(ctx context.Context) (*gcs.Storage, error) {
	s, err := gcs.NewStorage(ctx)
	if err != nil {
		return nil, err
	}
	f.onClose(s.Close)
	return s, nil
}

// PipelineDependencies opens everything the ingestion pipeline needs.
func (f *Factory) PipelineDependencies(ctx context.Context) (pipeline.Dependencies, error) {
	repo, err := f.Repository(ctx)
	if err != nil {
		return pipeline.Dependencies{}, fmt.Errorf("PipelineDependencies: %w", err)
	}
	storage, err := f.Storage(ctx)
	if err != nil {
		return pipeline.Dependencies{}, fmt.Errorf("PipelineDependencies: %w", err)
	}
	svc, err := f.ExtractionService(ctx, nil)
	if err != nil {
		return pipeline.Dependencies{}, fmt.Errorf("PipelineDependencies: %w", err)
	}
	return pipeline.Dependencies{Repo: repo, Storage: storage, Extractor: svc}, nil
}

// JobQueue is a job back end that both publishes and consumes.
type JobQueue interface {
	jobs.Publisher
	jobs.Consumer
}

// JobQueue opens the configured job back end. store records job state for
// the in-memory back end and may be nil.
func (f *Factory) JobQueue(ctx context.Context, store jobs.JobStore) (JobQueue, error) {
	switch f.cfg.JobBackend {
	case config.JobBackendAMQP:
		client, err := jobsamqp.NewClient(ctx, f.cfg.AMQPURL, f.cfg.AMQPExchange, f.cfg.AMQPQueue, f.cfg.WorkerCount)
		if err != nil {
			return nil, fmt.Errorf("JobQueue: %w", err)
		}
		log := logger.FromContext(ctx)
		log.Info().
			Str("exchange", f.cfg.AMQPExchange).
			Str("queue", f.cfg.AMQPQueue).
			Msg("Initialized AMQP job queue")
		f.onClose(client.Close)
		return client, nil
	case config.JobBackendMemory, "":
		q := inmemory.NewQueue(inmemory.Config{
			BufferSize:   f.cfg.QueueSize,
			Workers:      f.cfg.WorkerCount,
			RetryBackoff: f.cfg.JobRetryBackoff,
		}, store)
		f.onClose(q.Close)
		return q, nil
	default:
		return nil, fmt.Errorf("JobQueue: unsupported job backend %q", f.cfg.JobBackend)
	}
}

func (f *Factory) onClose(fn func() error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closers = append(f.closers, fn)
}

// Close releases every client the factory opened, newest first.
func (f *Factory) Close() error {
	f.mu.Lock()
	closers := f.closers
	f.closers = nil
	f.mu.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
