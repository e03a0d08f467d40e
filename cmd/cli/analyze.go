package main

import (
	"flag"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-analyzer/internal/analysis"
	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/domain"
)

type analyzeOutput struct {
	*analysis.Snapshot
	Forecast []float64 `json:"forecast,omitempty"`
}

func runAnalyze(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	filePath := fs.String("file", "", "JSON file with a price series")
	symbol := fs.String("symbol", "", "Symbol to load from BigQuery")
	startFlag := fs.String("start", "", "First bar date (YYYY-MM-DD) with -symbol")
	endFlag := fs.String("end", "", "Last bar date (YYYY-MM-DD) with -symbol; defaults to today")
	smaFlag := fs.String("sma", "20,50", "Comma-separated SMA windows")
	rsiPeriod := fs.Int("rsi", 14, "RSI period")
	fastWindow := fs.Int("fast", 20, "Fast SMA window for the recommendation")
	slowWindow := fs.Int("slow", 50, "Slow SMA window for the recommendation")
	forecast := fs.Int("forecast", 0, "Number of illustrative future prices")
	fs.Parse(args)

	if (*filePath == "") == (*symbol == "") {
		log.Fatal().Msg("Usage: cli analyze -file bars.json | -symbol S -start YYYY-MM-DD [-end YYYY-MM-DD] [-forecast N]")
	}

	var windows []int
	for _, s := range splitList(*smaFlag) {
		w, err := strconv.Atoi(s)
		if err != nil || w <= 0 {
			log.Fatal().Str("window", s).Msg("Error: -sma takes positive integers")
		}
		windows = append(windows, w)
	}

	var (
		series domain.PriceSeries
		err    error
	)
	if *filePath != "" {
		series, err = analysis.LoadSeriesFile(*filePath)
	} else {
		start := parseDateFlag(log, "start", *startFlag, civil.Date{})
		end := parseDateFlag(log, "end", *endFlag, civil.DateOf(time.Now()))
		ctx := commandContext(log)
		repo, rerr := f.Repository(ctx)
		if rerr != nil {
			log.Fatal().Err(rerr).Msg("Failed to create repository")
		}
		series, err = repo.QueryPriceBars(ctx, *symbol, start, end)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load price series")
	}

	snap, err := analysis.Analyze(series, analysis.Options{
		SMAWindows: windows,
		RSIPeriod:  *rsiPeriod,
		FastWindow: *fastWindow,
		SlowWindow: *slowWindow,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	out := analyzeOutput{Snapshot: snap}
	if *forecast > 0 {
		if out.Forecast, err = analysis.PredictPrices(series.Closes(), *forecast, nil); err != nil {
			log.Fatal().Err(err).Msg("Forecast failed")
		}
	}
	printJSON(log, out)
}

// parseDateFlag parses a YYYY-MM-DD flag value. An empty value yields def,
// and is fatal when def is the zero date.
func parseDateFlag(log zerolog.Logger, name, value string, def civil.Date) civil.Date {
	if value == "" {
		if !def.IsValid() {
			log.Fatal().Msgf("Error: -%s is required", name)
		}
		return def
	}
	d, err := civil.ParseDate(value)
	if err != nil {
		log.Fatal().Err(err).Msgf("Error: -%s must be YYYY-MM-DD", name)
	}
	return d
}
