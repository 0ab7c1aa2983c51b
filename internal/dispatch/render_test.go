package dispatch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Sol-I/stark-ai/internal/domain"
)

func renderTestProvider() domain.ProviderConfig {
	return domain.ProviderConfig{
		Name:         "openrouter",
		EndpointBase: "https://openrouter.ai/api/v1",
		URLTemplate:  "chat/completions",
		HeaderTemplate: map[string]string{
			"Authorization": "Bearer {api_key}",
		},
		BodyTemplate:   `{"model":"{model_name}","messages":[{"role":"user","content":"{prompt}"}]}`,
		ResponseParser: domain.ParserOpenAI,
		Model:          "meta-llama/llama-3-8b",
		Priority:       1,
		Enabled:        true,
		Credential:     "sk-or-secret",
	}
}

func TestRender_SubstitutesAllPlaceholders(t *testing.T) {
	p := renderTestProvider()

	got, err := render(&p, "hello")
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if got.URL != "https://openrouter.ai/api/v1/chat/completions" {
		t.Errorf("URL = %s", got.URL)
	}
	if auth := got.Headers["Authorization"]; auth != "Bearer sk-or-secret" {
		t.Errorf("Authorization = %s", auth)
	}
	if ct := got.Headers["Content-Type"]; ct != "application/json" {
		t.Errorf("Content-Type = %s, want application/json default", ct)
	}

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatalf("rendered body is not valid JSON: %v", err)
	}
	if body.Model != "meta-llama/llama-3-8b" {
		t.Errorf("model = %s", body.Model)
	}
	if body.Messages[0].Content != "hello" {
		t.Errorf("content = %s", body.Messages[0].Content)
	}
}

func TestRender_EscapesPromptForJSON(t *testing.T) {
	p := renderTestProvider()
	prompt := "line one\nsays \"hi\"\tand a backslash \\"

	got, err := render(&p, prompt)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}

	var body struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatalf("rendered body is not valid JSON: %v", err)
	}
	if body.Messages[0].Content != prompt {
		t.Errorf("content round-trip = %q, want %q", body.Messages[0].Content, prompt)
	}
}

func TestRender_KeyInURL(t *testing.T) {
	p := renderTestProvider()
	p.HeaderTemplate = nil
	p.EndpointBase = "https://generativelanguage.googleapis.com/v1beta"
	p.URLTemplate = "models/{model_name}:generateContent?key={api_key}"
	p.Credential = "AIza-test"
	p.Model = "gemini-pro"

	got, err := render(&p, "hi")
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	want := "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent?key=AIza-test"
	if got.URL != want {
		t.Errorf("URL = %s, want %s", got.URL, want)
	}
}

func TestRender_LeftoverPlaceholderFails(t *testing.T) {
	p := renderTestProvider()
	p.Credential = "" // {api_key} in headers cannot be resolved

	_, err := render(&p, "hi")
	var rerr *RenderError
	if !errors.As(err, &rerr) {
		t.Fatalf("render() error = %v, want RenderError", err)
	}
	if rerr.Placeholder != domain.PlaceholderAPIKey {
		t.Errorf("Placeholder = %s, want %s", rerr.Placeholder, domain.PlaceholderAPIKey)
	}
}

func TestBuildPrompt(t *testing.T) {
	history := domain.History{
		{Role: domain.RoleUser, Content: "what is 2+2?"},
		{Role: domain.RoleAssistant, Content: "4"},
	}

	got := buildPrompt(history, "and 3+3?")
	want := "User: what is 2+2?\nAssistant: 4\nUser: and 3+3?\nAssistant: "
	if got != want {
		t.Errorf("buildPrompt() = %q, want %q", got, want)
	}
}

func TestBuildPrompt_EmptyHistory(t *testing.T) {
	got := buildPrompt(nil, "hello")
	want := "User: hello\nAssistant: "
	if got != want {
		t.Errorf("buildPrompt() = %q, want %q", got, want)
	}
}

func TestValidateProviders(t *testing.T) {
	good := renderTestProvider()

	badJSON := renderTestProvider()
	badJSON.Name = "broken"
	badJSON.BodyTemplate = `{"model": {model_name}` // unterminated

	disabled := badJSON
	disabled.Enabled = false

	if err := ValidateProviders([]domain.ProviderConfig{good}); err != nil {
		t.Errorf("ValidateProviders(good) error = %v", err)
	}
	if err := ValidateProviders([]domain.ProviderConfig{good, badJSON}); err == nil {
		t.Error("ValidateProviders(badJSON) error = nil, want error")
	}
	if err := ValidateProviders([]domain.ProviderConfig{good, disabled}); err != nil {
		t.Errorf("ValidateProviders(disabled bad) error = %v, want nil (disabled skipped)", err)
	}
}
