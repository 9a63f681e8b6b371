package mcq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"jamesfarrell.me/video-mcq/internal/apperr"
)

// ParseQuestions reads a generator reply. It tolerates markdown code fences,
// prose around the JSON and a single object in place of an array.
func ParseQuestions(content string) ([]RawQuestion, error) {
	body := extractJSON(content)
	if body == "" {
		return nil, fmt.Errorf("no JSON found in reply: %q", truncate(content, 200))
	}

	var questions []RawQuestion
	if strings.HasPrefix(body, "{") {
		var single RawQuestion
		if err := json.Unmarshal([]byte(body), &single); err != nil {
			return nil, fmt.Errorf("JSON parsing failed: %w", err)
		}
		questions = []RawQuestion{single}
	} else if err := json.Unmarshal([]byte(body), &questions); err != nil {
		return nil, fmt.Errorf("JSON parsing failed: %w", err)
	}

	for _, q := range questions {
		if q.Error {
			return nil, errors.New(q.Message)
		}
	}
	return questions, nil
}

// extractJSON returns the first balanced JSON array or object in content.
func extractJSON(content string) string {
	content = stripFences(strings.TrimSpace(content))

	start := strings.IndexAny(content, "[{")
	if start == -1 {
		return ""
	}
	content = content[start:]

	depth := 0
	inString, escaped := false, false
	for i, r := range content {
		switch {
		case escaped:
			escaped = false
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
			if depth == 0 {
				return content[:i+1]
			}
		}
	}
	return content
}

// stripFences returns the body of the first fenced code block holding JSON.
// Content without such a block is returned unchanged.
func stripFences(content string) string {
	open := strings.Index(content, "```")
	if open == -1 {
		return content
	}
	rest := content[open+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl == -1 {
		return content
	}
	rest = rest[nl+1:]
	end := strings.Index(rest, "```")
	if end == -1 {
		return content
	}
	block := rest[:end]
	if !strings.ContainsAny(block, "[{") {
		return content
	}
	return block
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func providerError(provider string, err error) error {
	var perr *apperr.ProviderError
	if errors.As(err, &perr) {
		return err
	}
	return &apperr.ProviderError{Provider: provider, Err: err}
}
