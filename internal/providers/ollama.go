package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaURL is the local Ollama endpoint.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// StatusError is a non-2xx reply from an HTTP provider. The status code is
// what the orchestrator classifies on.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// StatusCode exposes the HTTP status for failure classification.
func (e *StatusError) StatusCode() int { return e.Code }

// Ollama calls a locally hosted model through the /api/generate endpoint.
type Ollama struct {
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewOllama creates a provider for model at baseURL. The per-call deadline
// comes from the context, so the HTTP client carries no timeout of its own.
func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &Ollama{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: 0.3,
		httpClient:  &http.Client{},
	}
}

func (o *Ollama) ID() string { return "ollama:" + o.model }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Images  []string       `json:"images,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Extract sends one non-streaming generate request.
func (o *Ollama) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	body, err := o.buildRequest(doc, prompt)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama %s: %w", o.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama %s: %w", o.model, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))})
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ollama %s: decode response: %w", o.model, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama %s: %s", o.model, out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("ollama %s: no response from model", o.model)
	}
	return out.Response, nil
}

func (o *Ollama) buildRequest(doc Document, prompt string) (*ollamaRequest, error) {
	if doc.Empty() {
		return nil, fmt.Errorf("ollama: document has no content")
	}

	var b strings.Builder
	b.WriteString(prompt)
	if doc.URI != "" {
		b.WriteString("\n\nDocument URL: " + doc.URI)
	}
	if doc.Text != "" {
		b.WriteString("\n\nDocument text:\n" + doc.Text)
	}

	req := &ollamaRequest{
		Model:   o.model,
		Stream:  false,
		Options: map[string]any{"temperature": o.temperature},
	}
	if len(doc.Bytes) > 0 {
		if !strings.HasPrefix(doc.MIMEType, "image/") {
			if doc.Text == "" && doc.URI == "" {
				return nil, fmt.Errorf("ollama: %s documents need extracted text", mimeOrDefault(doc.MIMEType))
			}
		} else {
			req.Images = []string{base64.StdEncoding.EncodeToString(doc.Bytes)}
		}
	}
	req.Prompt = b.String()
	return req, nil
}

// Version pings /api/version to check that the server is up.
func (o *Ollama) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/version", nil)
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode}
	}

	var v struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("ollama: decode version: %w", err)
	}
	return v.Version, nil
}
