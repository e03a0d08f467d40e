package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-analyzer/internal/app"
	"github.com/dvloznov/finance-analyzer/internal/providers"
)

func runProviders(log zerolog.Logger, f *app.Factory, args []string) {
	fs := flag.NewFlagSet("providers", flag.ExitOnError)
	providerList := fs.String("providers", "", "Comma-separated provider chain (defaults to EXTRACTION_PROVIDERS)")
	fs.Parse(args)

	ctx := commandContext(log)
	reg, err := f.Registry(ctx, splitList(*providerList))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build providers")
	}

	health := reg.CheckHealth(ctx)
	for _, h := range health {
		if h.Error != "" {
			log.Warn().Str("provider", h.ID).Str("error", h.Error).Msg("Provider unreachable")
		}
	}
	printJSON(log, health)
	if !providers.Healthy(health) {
		os.Exit(1)
	}
}
