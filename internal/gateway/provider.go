package gateway

import "net/http"

// Provider identifies one of the interchangeable LLM backends. The set is
// closed: adding a provider means adding a spec entry here, which keeps
// provider selection a compile-time-checked change instead of an untyped
// lookup.
type Provider string

const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderPerplexity Provider = "perplexity"
)

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	_, ok := providerSpecs[p]
	return ok
}

// providerSpec holds what distinguishes one provider from another: the
// endpoint, the default model, and the auth-header shape. Anthropic rides
// the official SDK; the bearer-token providers share one chat-completions
// HTTP client.
type providerSpec struct {
	baseURL      string
	defaultModel string
	useSDK       bool
	authHeader   func(apiKey string, h http.Header)
}

func bearerAuth(apiKey string, h http.Header) {
	h.Set("Authorization", "Bearer "+apiKey)
}

func anthropicAuth(apiKey string, h http.Header) {
	h.Set("x-api-key", apiKey)
	h.Set("anthropic-version", "2023-06-01")
}

var providerSpecs = map[Provider]providerSpec{
	ProviderAnthropic: {
		baseURL:      "https://api.anthropic.com",
		defaultModel: "claude-sonnet-4-5-20250929",
		useSDK:       true,
		authHeader:   anthropicAuth,
	},
	ProviderOpenAI: {
		baseURL:      "https://api.openai.com/v1",
		defaultModel: "gpt-4o",
		authHeader:   bearerAuth,
	},
	ProviderPerplexity: {
		baseURL:      "https://api.perplexity.ai",
		defaultModel: "sonar-pro",
		authHeader:   bearerAuth,
	},
}

// DefaultModel returns the provider's default model id, or "" for an
// unknown provider.
func (p Provider) DefaultModel() string {
	return providerSpecs[p].defaultModel
}
