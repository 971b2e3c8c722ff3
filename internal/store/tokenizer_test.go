package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple camelCase",
			input:    "getUserById",
			expected: []string{"get", "User", "By", "Id"},
		},
		{
			name:     "PascalCase",
			input:    "HybridSearch",
			expected: []string{"Hybrid", "Search"},
		},
		{
			name:     "acronym prefix",
			input:    "HTTPHandler",
			expected: []string{"HTTP", "Handler"},
		},
		{
			name:     "acronym in middle",
			input:    "parseHTTPRequest",
			expected: []string{"parse", "HTTP", "Request"},
		},
		{
			name:     "single word",
			input:    "handler",
			expected: []string{"handler"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitCamelCase(tt.input))
		})
	}
}

func TestSplitCodeToken(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "snake_case",
			input:    "get_user_by_id",
			expected: []string{"get", "user", "by", "id"},
		},
		{
			name:     "mixed snake and camel",
			input:    "parse_HTTPRequest",
			expected: []string{"parse", "HTTP", "Request"},
		},
		{
			name:     "leading underscore",
			input:    "_private",
			expected: []string{"private"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitCodeToken(tt.input))
		})
	}
}

func TestTokenizeCode(t *testing.T) {
	// Given code-like text with mixed identifier styles
	text := "func ParseQuery(rawInput string) error { return validateRawInput(rawInput) }"

	// When tokenizing
	tokens := TokenizeCode(text)

	// Then identifiers are split and lowercased
	assert.Contains(t, tokens, "parse")
	assert.Contains(t, tokens, "query")
	assert.Contains(t, tokens, "raw")
	assert.Contains(t, tokens, "input")
	assert.Contains(t, tokens, "validate")

	// Single-char tokens are filtered
	assert.NotContains(t, tokens, "{")
}

func TestFilterStopWords(t *testing.T) {
	stopWords := BuildStopWordMap([]string{"func", "return"})
	tokens := []string{"func", "parse", "return", "query"}

	filtered := FilterStopWords(tokens, stopWords)

	assert.Equal(t, []string{"parse", "query"}, filtered)
}
