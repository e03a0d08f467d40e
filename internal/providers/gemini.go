package providers

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini calls a Gemini model through the genai SDK. Documents are sent as
// inline bytes, a Cloud Storage file reference, or plain text.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a genai client using ambient credentials
// (GOOGLE_API_KEY or Vertex AI environment settings).
func NewGeminiClient(ctx context.Context, apiVersion string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: apiVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return client, nil
}

// NewGemini wraps a shared client for one model.
func NewGemini(client *genai.Client, model string) *Gemini {
	return &Gemini{client: client, model: model}
}

func (g *Gemini) ID() string { return "gemini:" + g.model }

// Extract sends the prompt followed by the document parts.
func (g *Gemini) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	parts, err := geminiParts(doc, prompt)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini %s: generate content: %w", g.model, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini %s: empty response from model", g.model)
	}
	return text, nil
}

func geminiParts(doc Document, prompt string) ([]*genai.Part, error) {
	if doc.Empty() {
		return nil, fmt.Errorf("gemini: document has no content")
	}

	parts := []*genai.Part{{Text: prompt}}
	switch {
	case len(doc.Bytes) > 0:
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: mimeOrDefault(doc.MIMEType), Data: doc.Bytes},
		})
	case strings.HasPrefix(doc.URI, "gs://"):
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{FileURI: doc.URI, MIMEType: mimeOrDefault(doc.MIMEType)},
		})
	case doc.URI != "":
		parts = append(parts, &genai.Part{Text: "Document URL: " + doc.URI})
	}
	if doc.Text != "" {
		parts = append(parts, &genai.Part{Text: "Document text:\n" + doc.Text})
	}
	return parts, nil
}

func mimeOrDefault(mime string) string {
	if mime == "" {
		return "application/pdf"
	}
	return mime
}
