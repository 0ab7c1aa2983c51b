package dispatch

import (
	"errors"
	"testing"

	"github.com/Sol-I/stark-ai/internal/domain"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		format  domain.ParserFormat
		body    string
		want    string
		wantErr bool
	}{
		{
			name:   "openai",
			format: domain.ParserOpenAI,
			body:   `{"choices":[{"message":{"role":"assistant","content":"The answer is 42."}}]}`,
			want:   "The answer is 42.",
		},
		{
			name:   "anthropic",
			format: domain.ParserAnthropic,
			body:   `{"content":[{"type":"text","text":"Hello from Claude."}]}`,
			want:   "Hello from Claude.",
		},
		{
			name:   "google",
			format: domain.ParserGoogle,
			body:   `{"candidates":[{"content":{"parts":[{"text":"Hello from Gemini."}]}}]}`,
			want:   "Hello from Gemini.",
		},
		{
			name:   "huggingface",
			format: domain.ParserHuggingFace,
			body:   `[{"generated_text":"Hello from HF."}]`,
			want:   "Hello from HF.",
		},
		{
			name:    "openai empty choices",
			format:  domain.ParserOpenAI,
			body:    `{"choices":[]}`,
			wantErr: true,
		},
		{
			name:    "anthropic shape mismatch",
			format:  domain.ParserAnthropic,
			body:    `{"choices":[{"message":{"content":"wrong family"}}]}`,
			wantErr: true,
		},
		{
			name:    "google empty parts",
			format:  domain.ParserGoogle,
			body:    `{"candidates":[{"content":{"parts":[]}}]}`,
			wantErr: true,
		},
		{
			name:    "huggingface empty list",
			format:  domain.ParserHuggingFace,
			body:    `[]`,
			wantErr: true,
		},
		{
			name:    "blank answer rejected",
			format:  domain.ParserOpenAI,
			body:    `{"choices":[{"message":{"content":"   "}}]}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			format:  domain.ParserOpenAI,
			body:    `<html>Bad Gateway</html>`,
			wantErr: true,
		},
		{
			name:    "unknown format",
			format:  domain.ParserFormat("cohere"),
			body:    `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnswer("test", tt.format, []byte(tt.body))
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("parseAnswer() error = %v, want ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnswer() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short latin rounds up to one", "hi", 1},
		{"latin", "hello world, how are you", 6},
		{"cyrillic", "привет мир", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
