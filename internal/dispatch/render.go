package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sol-I/stark-ai/internal/domain"
)

// renderedRequest is a fully substituted, ready-to-send provider request.
type renderedRequest struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// render substitutes the provider's templates with concrete values. The
// prompt is JSON-escaped before it is spliced into the body template so
// quotes and newlines in user input cannot break the payload. Rendering
// fails if any known placeholder survives substitution: every provider
// must be fully renderable from (prompt, credential) alone.
func render(p *domain.ProviderConfig, prompt string) (*renderedRequest, error) {
	if p.Credential == "" && p.NeedsCredential() {
		return nil, &RenderError{Provider: p.Name, Placeholder: domain.PlaceholderAPIKey}
	}

	urlReplacer := strings.NewReplacer(
		domain.PlaceholderModel, p.Model,
		domain.PlaceholderAPIKey, p.Credential,
	)
	url := urlReplacer.Replace(p.Endpoint())

	headers := make(map[string]string, len(p.HeaderTemplate))
	for name, tmpl := range p.HeaderTemplate {
		headers[name] = strings.ReplaceAll(tmpl, domain.PlaceholderAPIKey, p.Credential)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}

	bodyReplacer := strings.NewReplacer(
		domain.PlaceholderModel, p.Model,
		domain.PlaceholderPrompt, jsonEscape(prompt),
		domain.PlaceholderAPIKey, p.Credential,
	)
	body := bodyReplacer.Replace(p.BodyTemplate)

	if ph := leftoverPlaceholder(url, headers, body); ph != "" {
		return nil, &RenderError{Provider: p.Name, Placeholder: ph}
	}

	return &renderedRequest{URL: url, Headers: headers, Body: []byte(body)}, nil
}

// buildPrompt flattens a bounded history plus the latest user message into
// a single transcript for providers driven by a {prompt} placeholder.
func buildPrompt(history domain.History, message string) string {
	var b strings.Builder
	for _, turn := range history {
		switch turn.Role {
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(turn.Content)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant: ")
	return b.String()
}

// jsonEscape returns s escaped for inclusion inside a JSON string literal,
// without the surrounding quotes.
func jsonEscape(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail; keep the raw input as a
		// last resort.
		return s
	}
	return string(encoded[1 : len(encoded)-1])
}

// leftoverPlaceholder returns the first known placeholder still present in
// any rendered fragment, or "" when the rendering is complete.
func leftoverPlaceholder(url string, headers map[string]string, body string) string {
	known := []string{domain.PlaceholderAPIKey, domain.PlaceholderModel, domain.PlaceholderPrompt}
	for _, ph := range known {
		if strings.Contains(url, ph) || strings.Contains(body, ph) {
			return ph
		}
		for _, v := range headers {
			if strings.Contains(v, ph) {
				return ph
			}
		}
	}
	return ""
}

// ValidateProviders dry-runs rendering for each provider so template
// mistakes surface at startup instead of on the first live request.
func ValidateProviders(providers []domain.ProviderConfig) error {
	for i := range providers {
		p := &providers[i]
		if !p.Enabled {
			continue
		}
		if !p.IsValid() {
			return fmt.Errorf("provider %s: missing required fields or unknown parser", p.Name)
		}
		if _, err := render(p, "ping"); err != nil {
			return err
		}
		if !json.Valid([]byte(strings.NewReplacer(
			domain.PlaceholderModel, "m",
			domain.PlaceholderPrompt, "p",
			domain.PlaceholderAPIKey, "k",
		).Replace(p.BodyTemplate))) {
			return fmt.Errorf("provider %s: body_template does not render to valid JSON", p.Name)
		}
	}
	return nil
}
