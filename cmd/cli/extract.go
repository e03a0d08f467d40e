package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/finance-analyzer/internal/aggregation"
	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/domain"
	"github.com/dvloznov/finance-analyzer/internal/extraction"
	"github.com/dvloznov/finance-analyzer/internal/gcs"
	"github.com/dvloznov/finance-analyzer/internal/pipeline"
	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

type receiptOutput struct {
	Vendor string                  `json:"vendor"`
	Items  []textparse.ReceiptItem `json:"items"`
}

type extractOutput struct {
	Source        string                    `json:"source"`
	Kind          textparse.Kind            `json:"kind"`
	Provider      string                    `json:"provider,omitempty"`
	Attempts      []extraction.Attempt      `json:"attempts"`
	Records       []domain.MonetaryRecord   `json:"records,omitempty"`
	Receipt       *receiptOutput            `json:"receipt,omitempty"`
	Chart         *textparse.ChartAnalysis  `json:"chart,omitempty"`
	Summary       *aggregation.Summary      `json:"summary,omitempty"`
	Discrepancies []aggregation.Discrepancy `json:"discrepancies,omitempty"`
	Error         string                    `json:"error,omitempty"`
}

func parseKindFlag(log zerolog.Logger, s string) textparse.Kind {
	kind, ok := textparse.ParseKind(s)
	if !ok {
		log.Fatal().Str("kind", s).Msg("Error: -kind must be statement, receipt or chart")
	}
	return kind
}

func readLocalFile(path string) (*gcs.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("readLocalFile: %w", err)
	}
	return &gcs.Object{URI: path, Bytes: data, ContentType: gcs.DetectContentType(path)}, nil
}

// extractObject runs one extraction and never fails: errors are reported
// in the output next to the attempts made.
func extractObject(ctx context.Context, svc *extraction.Service, kind textparse.Kind, obj *gcs.Object) extractOutput {
	out := extractOutput{Source: obj.URI, Kind: kind}

	ex, err := svc.Extract(ctx, pipeline.NewDocument(kind, obj))
	if ex != nil && ex.Run != nil {
		out.Provider = ex.Run.Provider
		out.Attempts = ex.Run.Attempts
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}

	if ex.Chart != nil {
		out.Chart = ex.Chart
		return out
	}

	out.Records = domain.Bases(ex.Records)
	if ex.Receipt != nil {
		out.Receipt = &receiptOutput{Vendor: ex.Receipt.Vendor, Items: ex.Receipt.Items}
	}

	state := &pipeline.PipelineState{Kind: kind, Extraction: ex}
	if err := (&pipeline.SummarizeStep{}).Execute(ctx, state); err == nil {
		out.Summary = &state.Summary
		out.Discrepancies = state.Discrepancies
	}
	return out
}

func runExtract(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a local statement, receipt or chart")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the document")
	kindFlag := fs.String("kind", "statement", "Document kind: statement, receipt or chart")
	providerList := fs.String("providers", "", "Comma-separated provider chain (defaults to EXTRACTION_PROVIDERS)")
	fs.Parse(args)

	if (*filePath == "") == (*gcsURI == "") {
		log.Fatal().Msg("Usage: cli extract -file PATH | -gcs-uri URI [-kind statement|receipt|chart]")
	}
	kind := parseKindFlag(log, *kindFlag)

	ctx, cancel := context.WithTimeout(commandContext(log), 5*time.Minute)
	defer cancel()

	svc, err := f.ExtractionService(ctx, splitList(*providerList))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build providers")
	}

	var obj *gcs.Object
	if *filePath != "" {
		obj, err = readLocalFile(*filePath)
	} else {
		var storage *gcs.Storage
		if storage, err = f.Storage(ctx); err == nil {
			obj, err = storage.Fetch(ctx, *gcsURI)
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read document")
	}

	out := extractObject(ctx, svc, kind, obj)
	printJSON(log, out)
	if out.Error != "" {
		os.Exit(1)
	}
}

func runExtractBatch(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("extract-batch", flag.ExitOnError)
	kindFlag := fs.String("kind", "statement", "Document kind: statement, receipt or chart")
	providerList := fs.String("providers", "", "Comma-separated provider chain (defaults to EXTRACTION_PROVIDERS)")
	concurrency := fs.Int("concurrency", f.Config().WorkerCount, "Maximum concurrent extractions")
	fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		log.Fatal().Msg("Usage: cli extract-batch [-kind K] FILE...")
	}
	kind := parseKindFlag(log, *kindFlag)

	ctx, cancel := context.WithTimeout(commandContext(log), 15*time.Minute)
	defer cancel()

	svc, err := f.ExtractionService(ctx, splitList(*providerList))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build providers")
	}

	results := make([]extractOutput, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*concurrency, 1))
	for i, path := range files {
		g.Go(func() error {
			obj, err := readLocalFile(path)
			if err != nil {
				results[i] = extractOutput{Source: path, Kind: kind, Error: err.Error()}
				return nil
			}
			results[i] = extractObject(gctx, svc, kind, obj)
			log.Info().
				Str("file", filepath.Base(path)).
				Str("provider", results[i].Provider).
				Int("records", len(results[i].Records)).
				Msg("Extracted")
			return nil
		})
	}
	_ = g.Wait()

	printJSON(log, results)
	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}
