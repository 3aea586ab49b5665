package llm

import (
	"testing"
)

func TestCleanCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "csv code block",
			input:    "```csv\ncompany_name,city\nAcme,Phoenix\n```",
			expected: "company_name,city\nAcme,Phoenix",
		},
		{
			name:     "generic code block",
			input:    "```\na,b\n1,2\n```",
			expected: "a,b\n1,2",
		},
		{
			name:     "fence without language keeps first csv line",
			input:    "```a,b\n1,2\n```",
			expected: "a,b\n1,2",
		},
		{
			name:     "plain text",
			input:    "  a,b\n1,2\n\n",
			expected: "a,b\n1,2",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CleanCodeBlock(tt.input)
			if result != tt.expected {
				t.Errorf("CleanCodeBlock() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractTextFromResponse_Nil(t *testing.T) {
	if _, err := extractTextFromResponse(nil); err == nil {
		t.Error("expected error for nil response")
	}
}
