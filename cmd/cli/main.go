package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/config"
	"github.com/dvloznov/finance-analyzer/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	f := app.NewFactory(cfg)
	defer f.Close()

	args := os.Args[2:]
	switch os.Args[1] {
	case "extract":
		runExtract(log, f, args)
	case "extract-batch":
		runExtractBatch(log, f, args)
	case "ingest":
		runIngest(log, f, args)
	case "enqueue":
		runEnqueue(log, f, args)
	case "upload":
		runUpload(log, f, args)
	case "documents":
		runDocuments(log, f, args)
	case "delete":
		runDelete(log, f, args)
	case "analyze":
		runAnalyze(log, f, args)
	case "summarize":
		runSummarize(log, f, args)
	case "goal":
		runGoal(log, args)
	case "providers":
		runProviders(log, f, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Analyzer CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract        Extract records from a local file or GCS object")
	fmt.Println("  extract-batch  Extract several local files concurrently")
	fmt.Println("  ingest         Run the ingestion pipeline on a GCS object")
	fmt.Println("  enqueue        Publish an extraction job for the worker")
	fmt.Println("  upload         Upload a file to GCS")
	fmt.Println("  documents      List stored documents")
	fmt.Println("  delete         Delete a document and everything derived from it")
	fmt.Println("  analyze        Technical analysis of a price series")
	fmt.Println("  summarize      Summarize stored transactions over a date range")
	fmt.Println("  goal           Months needed to reach a savings goal")
	fmt.Println("  providers      Check that the configured providers are reachable")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func commandContext(log zerolog.Logger) context.Context {
	return logger.WithContext(context.Background(), log)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(log zerolog.Logger, v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
