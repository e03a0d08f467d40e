// Package textparse turns free-form inference output into validated JSON
// objects. It performs no I/O.
package textparse

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// Kind selects the required top-level keys of an extraction.
type Kind string

const (
	KindStatement Kind = "statement"
	KindReceipt   Kind = "receipt"
	KindChart     Kind = "chart"
)

var requiredFields = map[Kind][]string{
	KindStatement: {"transactions", "dailySummary", "overview"},
	KindReceipt:   {"amount", "category", "date"},
	KindChart:     nil,
}

// anyOfFields lists keys of which a kind needs at least one.
var anyOfFields = map[Kind][]string{
	KindChart: {"charts", "timeBasedData"},
}

// ParseKind maps a user-supplied kind name to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindStatement:
		return KindStatement, true
	case KindReceipt:
		return KindReceipt, true
	case KindChart:
		return KindChart, true
	}
	return "", false
}

// RequiredFields returns the keys a kind must carry, in check order.
func RequiredFields(kind Kind) []string {
	return append([]string(nil), requiredFields[kind]...)
}

// ExtractObject finds one JSON object in text. It tries the whole text first
// (after dropping Markdown code fences), then the substring from the first
// '{' to the last '}'. Numbers are kept as json.Number.
func ExtractObject(text string) (map[string]any, error) {
	if obj, ok := decodeObject(stripCodeFences(text)); ok {
		return obj, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if obj, ok := decodeObject(text[start : end+1]); ok {
			return obj, nil
		}
	}

	return nil, &ParseError{Reason: ErrNoJSON.Error(), Err: ErrNoJSON}
}

// Parse extracts the object, normalizes numeric and free-text fields and
// checks the kind's required keys. A partial object is a hard failure.
func Parse(text string, kind Kind) (map[string]any, error) {
	obj, err := ExtractObject(text)
	if err != nil {
		return nil, err
	}
	if _, ok := requiredFields[kind]; !ok {
		return nil, &ParseError{Reason: "unknown extraction kind " + string(kind)}
	}
	if err := Normalize(obj); err != nil {
		return nil, err
	}
	if err := Validate(obj, kind); err != nil {
		return nil, err
	}
	return obj, nil
}

// Validate reports the first required key of kind that obj lacks. A key
// holding JSON null or a blank string counts as missing.
func Validate(obj map[string]any, kind Kind) error {
	fields, ok := requiredFields[kind]
	if !ok {
		return &ParseError{Reason: "unknown extraction kind " + string(kind)}
	}
	for _, name := range fields {
		if !present(obj, name) {
			return missingField(name)
		}
	}
	if anyOf := anyOfFields[kind]; len(anyOf) > 0 {
		for _, name := range anyOf {
			if present(obj, name) {
				return nil
			}
		}
		return &ParseError{
			Reason: "missing required field: one of " + strings.Join(anyOf, ", "),
			Field:  anyOf[0],
		}
	}
	return nil
}

func present(obj map[string]any, name string) bool {
	v, ok := obj[name]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return false
	}
	return true
}

func decodeObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Trailing garbage means the text was not a single JSON value.
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// stripCodeFences removes a leading ```json / ``` line and a trailing ```.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		return s
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// Marshal renders a parsed object back to compact JSON, e.g. for storage of
// the model output.
func Marshal(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
