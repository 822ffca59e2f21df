// Package parser turns raw model responses into thinking and final text.
// Extraction is an ordered list of strategies; the first non-empty match wins.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TextExtractor pulls the answer text out of one response shape.
type TextExtractor interface {
	Extract(raw any) (string, bool)
}

// ExtractorFunc adapts a function to TextExtractor.
type ExtractorFunc func(raw any) (string, bool)

// Extract calls f.
func (f ExtractorFunc) Extract(raw any) (string, bool) { return f(raw) }

// DefaultExtractors returns the extraction strategies in priority order.
func DefaultExtractors() []TextExtractor {
	return []TextExtractor{
		ExtractorFunc(stringPayload),
		FieldExtractor{Fields: []string{"response", "display_text", "output"}},
		ExtractorFunc(messageContent),
		ExtractorFunc(choicesContent),
		ExtractorFunc(serialized),
	}
}

// ExtractText runs extractors in order over raw and returns the first
// non-empty result, trimmed. []byte and json.RawMessage are decoded first.
func ExtractText(raw any, extractors []TextExtractor) string {
	raw = decodeBytes(raw)
	for _, e := range extractors {
		if s, ok := e.Extract(raw); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func decodeBytes(raw any) any {
	var b []byte
	switch t := raw.(type) {
	case []byte:
		b = t
	case json.RawMessage:
		b = t
	default:
		return raw
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	return v
}

func stringPayload(raw any) (string, bool) {
	s, ok := raw.(string)
	return s, ok && s != ""
}

// FieldExtractor reads the first non-empty top-level field.
type FieldExtractor struct {
	Fields []string
}

// Extract implements TextExtractor.
func (f FieldExtractor) Extract(raw any) (string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	for _, k := range f.Fields {
		if s := stringify(m[k]); s != "" {
			return s, true
		}
	}
	return "", false
}

// messageContent handles chat responses: {"message": {"content": ...}}
// or a plain string message.
func messageContent(raw any) (string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	switch msg := m["message"].(type) {
	case map[string]any:
		s, _ := msg["content"].(string)
		return s, s != ""
	case string:
		return msg, msg != ""
	}
	return "", false
}

// choicesContent handles OpenAI style {"choices": [{"message": {...}} | {"text": ...}]}.
func choicesContent(raw any) (string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	choices, ok := m["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	if msg, ok := first["message"].(map[string]any); ok {
		s, _ := msg["content"].(string)
		return s, s != ""
	}
	s, _ := first["text"].(string)
	return s, s != ""
}

func serialized(raw any) (string, bool) {
	if raw == nil {
		return "", false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprint(raw), true
	}
	return string(b), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
