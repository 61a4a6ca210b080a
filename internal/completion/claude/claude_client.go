package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"clausewise/internal/completion"
	"clausewise/internal/config"
	"clausewise/internal/port"
)

const (
	providerName     = "claude"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
	jsonInstruction  = "\n\nRespond with a single JSON object only. Do not wrap it in markdown or add any commentary."
)

func init() {
	completion.RegisterProvider(providerName, func(cfg *config.CompletionProviderConfig) (port.CompletionClient, error) {
		return NewClient(cfg), nil
	})
}

// Client implements port.CompletionClient using the Anthropic Messages API.
type Client struct {
	client *anthropic.Client
	model  string
}

// NewClient creates an Anthropic completion client from a provider config.
func NewClient(cfg *config.CompletionProviderConfig) *Client {
	return newClient(cfg, cfg.BaseURL)
}

// NewClientWithEndpoint creates a client pointing at a custom API base URL (for testing).
func NewClientWithEndpoint(cfg *config.CompletionProviderConfig, baseURL string) *Client {
	return newClient(cfg, baseURL)
}

func newClient(cfg *config.CompletionProviderConfig, baseURL string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		// Retries belong to the retry controller.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Client{client: &client, model: model}
}

func (c *Client) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	system := req.SystemPrompt
	if req.JSONMode {
		system += jsonInstruction
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if req.JSONMode && message.StopReason == anthropic.StopReasonMaxTokens {
		return nil, completion.NewError(completion.KindFatal, providerName, errors.New("json output truncated at max tokens"))
	}

	text := strings.TrimSpace(sb.String())
	if req.JSONMode {
		text = completion.StripCodeFences(text)
	}
	if text == "" {
		return nil, completion.NewError(completion.KindTransient, providerName, errors.New("no text content in response"))
	}

	model := string(message.Model)
	if model == "" {
		model = c.model
	}
	return &port.CompletionResponse{Text: text, Model: model}, nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		retryAfter := ""
		if apiErr.Response != nil {
			retryAfter = apiErr.Response.Header.Get("Retry-After")
		}
		return completion.FromStatus(providerName, apiErr.StatusCode, retryAfter, err)
	}
	return completion.NewError(completion.KindOf(err), providerName, err)
}
