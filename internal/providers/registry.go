package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Options carries the settings BuildRegistry needs for each provider kind.
type Options struct {
	OllamaURL        string
	GeminiAPIVersion string

	// GeminiClient is reused when set; otherwise one is created on the first
	// gemini entry.
	GeminiClient *genai.Client
}

// BuildRegistry turns an ordered list of "kind:model" specs into a Registry.
// Supported kinds are gemini, ollama and heuristic (model "receipt").
func BuildRegistry(ctx context.Context, specs []string, opts Options) (*Registry, error) {
	var ps []Provider
	gemini := opts.GeminiClient

	for _, spec := range specs {
		kind, model, err := ParseSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("BuildRegistry: %w", err)
		}

		switch kind {
		case "gemini":
			if gemini == nil {
				version := opts.GeminiAPIVersion
				if version == "" {
					version = "v1"
				}
				if gemini, err = NewGeminiClient(ctx, version); err != nil {
					return nil, fmt.Errorf("BuildRegistry: %w", err)
				}
			}
			ps = append(ps, NewGemini(gemini, model))
		case "ollama":
			ps = append(ps, NewOllama(opts.OllamaURL, model))
		case "heuristic":
			if model != "receipt" {
				return nil, fmt.Errorf("BuildRegistry: unknown heuristic provider %q", model)
			}
			ps = append(ps, NewHeuristicReceipt())
		default:
			return nil, fmt.Errorf("BuildRegistry: unknown provider kind %q in %q", kind, spec)
		}
	}

	return NewRegistry(ps...)
}
