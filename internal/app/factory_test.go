package app

import (
	"context"
	"strings"
	"testing"

	"github.com/dvloznov/finance-analyzer/internal/config"
	"github.com/dvloznov/finance-analyzer/internal/jobs/inmemory"
	"github.com/dvloznov/finance-analyzer/internal/logger"
)

func TestFactory_JobQueue(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{name: "Memory", backend: config.JobBackendMemory},
		{name: "DefaultsToMemory", backend: ""},
		{name: "Unsupported", backend: "kafka", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := logger.WithContext(context.Background(), logger.Nop())
			f := NewFactory(&config.Config{JobBackend: tt.backend, WorkerCount: 2, QueueSize: 4})
			defer f.Close()

			q, err := f.JobQueue(ctx, inmemory.NewStore())
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), tt.backend) {
					t.Fatalf("JobQueue() error = %v, want unsupported backend", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("JobQueue() unexpected error: %v", err)
			}
			if _, ok := q.(*inmemory.Queue); !ok {
				t.Errorf("JobQueue() = %T, want *inmemory.Queue", q)
			}
		})
	}
}

func TestFactory_RegistryUsesConfiguredChain(t *testing.T) {
	f := NewFactory(&config.Config{
		Providers: []string{"ollama:llama3", "heuristic:receipt"},
		OllamaURL: "http://localhost:1",
	})
	defer f.Close()

	reg, err := f.Registry(context.Background(), nil)
	if err != nil {
		t.Fatalf("Registry() unexpected error: %v", err)
	}
	if ids := strings.Join(reg.IDs(), ","); ids != "ollama:llama3,heuristic:receipt" {
		t.Errorf("IDs() = %q", ids)
	}

	reg, err = f.Registry(context.Background(), []string{"heuristic:receipt"})
	if err != nil {
		t.Fatalf("Registry(override) unexpected error: %v", err)
	}
	if ids := strings.Join(reg.IDs(), ","); ids != "heuristic:receipt" {
		t.Errorf("IDs() = %q, want the override", ids)
	}
}
