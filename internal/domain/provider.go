// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

import "strings"

// ParserFormat selects how the answer text is extracted from a provider's
// response body.
type ParserFormat string

const (
	// ParserOpenAI reads choices[0].message.content (OpenAI-compatible
	// chat completion; also used by OpenRouter).
	ParserOpenAI ParserFormat = "openai"

	// ParserAnthropic reads content[0].text.
	ParserAnthropic ParserFormat = "anthropic"

	// ParserGoogle reads candidates[0].content.parts[0].text.
	ParserGoogle ParserFormat = "google"

	// ParserHuggingFace reads [0].generated_text from the inference API.
	ParserHuggingFace ParserFormat = "huggingface"
)

// IsValid reports whether the parser format is one of the known variants.
func (f ParserFormat) IsValid() bool {
	switch f {
	case ParserOpenAI, ParserAnthropic, ParserGoogle, ParserHuggingFace:
		return true
	default:
		return false
	}
}

// Template placeholders recognized during request rendering.
const (
	PlaceholderAPIKey = "{api_key}"
	PlaceholderModel  = "{model_name}"
	PlaceholderPrompt = "{prompt}"
)

// ProviderConfig describes one LLM backend: where to send requests, how to
// shape them, and how to read the answer back. Instances are built once at
// startup and shared read-only across concurrent requests.
type ProviderConfig struct {
	// Name is the unique registry key for this provider.
	Name string `json:"name" mapstructure:"name"`

	// EndpointBase is the base URL of the provider's API.
	EndpointBase string `json:"endpoint_base" mapstructure:"endpoint_base"`

	// URLTemplate is the path template appended to EndpointBase. It may
	// contain {model_name} and {api_key} placeholders.
	URLTemplate string `json:"url_template" mapstructure:"url_template"`

	// HeaderTemplate maps header names to value templates. Values may
	// contain the {api_key} placeholder.
	HeaderTemplate map[string]string `json:"header_template" mapstructure:"header_template"`

	// BodyTemplate is the JSON request payload with {model_name} and
	// {prompt} placeholders plus fixed parameters (max tokens,
	// temperature, streaming flag).
	BodyTemplate string `json:"body_template" mapstructure:"body_template"`

	// ResponseParser selects the answer extraction strategy.
	ResponseParser ParserFormat `json:"response_parser" mapstructure:"response_parser"`

	// Model is the provider-side model identifier substituted for
	// {model_name}.
	Model string `json:"model" mapstructure:"model"`

	// Priority orders candidates; lower values are tried first.
	Priority int `json:"priority" mapstructure:"priority"`

	// Enabled indicates whether this provider participates in dispatch.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Credential is the API secret. It is injected from the environment
	// at startup and must never be serialized or logged.
	Credential string `json:"-" mapstructure:"-"`
}

// IsValid checks if the provider has all fields required for rendering.
func (p *ProviderConfig) IsValid() bool {
	return p.Name != "" && p.EndpointBase != "" && p.BodyTemplate != "" && p.ResponseParser.IsValid()
}

// Endpoint returns the full URL template (base joined with path).
func (p *ProviderConfig) Endpoint() string {
	base := strings.TrimSuffix(p.EndpointBase, "/")
	if p.URLTemplate == "" {
		return base
	}
	return base + "/" + strings.TrimPrefix(p.URLTemplate, "/")
}

// NeedsCredential reports whether any of the provider's templates reference
// the {api_key} placeholder.
func (p *ProviderConfig) NeedsCredential() bool {
	if strings.Contains(p.URLTemplate, PlaceholderAPIKey) || strings.Contains(p.BodyTemplate, PlaceholderAPIKey) {
		return true
	}
	for _, v := range p.HeaderTemplate {
		if strings.Contains(v, PlaceholderAPIKey) {
			return true
		}
	}
	return false
}
