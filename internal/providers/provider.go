// Package providers implements the inference back ends that turn a document
// plus prompt into free-form text. Each provider exposes one Extract call;
// the Registry supplies them to the orchestrator by identifier.
package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-analyzer/internal/textparse"
)

// Document is the payload handed to a provider: inline text, raw bytes, or a
// locator of a previously hosted file. At least one must be set.
type Document struct {
	Kind     textparse.Kind
	Text     string
	Bytes    []byte
	MIMEType string
	URI      string
}

// Empty reports whether the document carries no content at all.
func (d Document) Empty() bool {
	return d.Text == "" && len(d.Bytes) == 0 && d.URI == ""
}

// Provider is one inference back end.
type Provider interface {
	// ID is the "kind:model" identifier used in provider lists.
	ID() string

	// Extract returns the raw response body, which may embed JSON in prose.
	Extract(ctx context.Context, doc Document, prompt string) (string, error)
}

// Registry resolves provider identifiers. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry registers ps in order. Duplicate identifiers are rejected.
func NewRegistry(ps ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		id := p.ID()
		if _, dup := r.providers[id]; dup {
			return nil, fmt.Errorf("NewRegistry: duplicate provider %q", id)
		}
		r.providers[id] = p
		r.order = append(r.order, id)
	}
	return r, nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns the identifiers in registration order, which is the default
// fallback order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// ParseSpec splits "kind:model" on the first colon, so model names may
// contain colons themselves (ollama:deepseek-r1:1.5b).
func ParseSpec(spec string) (kind, model string, err error) {
	kind, model, ok := strings.Cut(strings.TrimSpace(spec), ":")
	if !ok || kind == "" || model == "" {
		return "", "", fmt.Errorf("invalid provider %q: want kind:model", spec)
	}
	return strings.ToLower(kind), model, nil
}
