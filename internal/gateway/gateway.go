package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Gateway issues a single chat completion and returns the assistant text.
// It classifies failures (see Kind) and never retries; retry policy is
// call-site-specific and lives one layer up.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Message is one role-tagged prompt message.
type Message struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// Request is the normalized shape every provider accepts.
type Request struct {
	Model     string    // empty means the provider default
	Messages  []Message
	MaxTokens int64
}

// Settings configures a Client. APIKey may be empty; the credential check
// happens per call so the no-credential path is testable without network.
type Settings struct {
	Provider Provider
	APIKey   string
	Model    string // overrides the provider default when set
	BaseURL  string // overrides the provider endpoint when set
	HTTP     *http.Client
}

// Client is the production Gateway implementation.
type Client struct {
	provider Provider
	spec     providerSpec
	apiKey   string
	model    string
	http     *http.Client
	sdk      sdk.Client
}

// New builds a Client for the given provider. Unknown providers fail here
// rather than at call time.
func New(s Settings) (*Client, error) {
	spec, ok := providerSpecs[s.Provider]
	if !ok {
		return nil, eris.Errorf("gateway: unknown provider %q", s.Provider)
	}
	if s.BaseURL != "" {
		spec.baseURL = s.BaseURL
	}

	c := &Client{
		provider: s.Provider,
		spec:     spec,
		apiKey:   s.APIKey,
		model:    s.Model,
		http:     s.HTTP,
	}
	if c.model == "" {
		c.model = spec.defaultModel
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if spec.useSDK && s.APIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
		if s.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(s.BaseURL))
		}
		c.sdk = sdk.NewClient(opts...)
	}
	return c, nil
}

// Provider returns the backing provider.
func (c *Client) Provider() Provider { return c.provider }

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", &Error{
			Kind:     KindNoCredential,
			Provider: c.provider,
			Message:  "no API key configured",
		}
	}
	if req.Model == "" {
		req.Model = c.model
	}

	if c.spec.useSDK {
		return c.completeSDK(ctx, req)
	}
	return c.completeHTTP(ctx, req)
}

func (c *Client) completeSDK(ctx context.Context, req Request) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		if m.Role == "system" {
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		var apierr *sdk.Error
		if errors.As(err, &apierr) {
			return "", &Error{
				Kind:     classifyStatus(apierr.StatusCode),
				Provider: c.provider,
				Status:   apierr.StatusCode,
				Message:  apierr.Error(),
			}
		}
		return "", &Error{Kind: KindUnknown, Provider: c.provider, Message: err.Error()}
	}

	var b strings.Builder
	for _, block := range msg.Content {
		b.WriteString(block.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &Error{Kind: KindEmpty, Provider: c.provider, Message: "completion contained no text"}
	}
	return text, nil
}

// Wire types for the OpenAI-compatible chat-completions endpoint shared by
// the bearer-auth providers.
type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int64     `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) completeHTTP(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "gateway: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.spec.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "gateway: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.spec.authHeader(c.apiKey, httpReq.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: KindUnknown, Provider: c.provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "gateway: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{
			Kind:     classifyStatus(resp.StatusCode),
			Provider: c.provider,
			Status:   resp.StatusCode,
			Message:  excerpt(string(respBody), 500),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", eris.Wrap(err, "gateway: unmarshal response")
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", &Error{Kind: KindEmpty, Provider: c.provider, Message: "completion contained no text"}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
