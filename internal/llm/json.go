// Package llm holds helpers for working with raw text-generation output.
package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSON = errors.New("no JSON object in model output")

// ExtractJSON pulls the first JSON object or array out of a model reply,
// tolerating markdown code fences and surrounding prose.
func ExtractJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	open := s[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, ErrNoJSON
}

// Decode extracts and unmarshals the first JSON value in a model reply.
func Decode(raw string, v interface{}) error {
	b, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
