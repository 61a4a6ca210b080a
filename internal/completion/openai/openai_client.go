package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"clausewise/internal/completion"
	"clausewise/internal/config"
	"clausewise/internal/port"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o"
)

func init() {
	completion.RegisterProvider(providerName, func(cfg *config.CompletionProviderConfig) (port.CompletionClient, error) {
		return NewClient(cfg), nil
	})
}

// Client implements port.CompletionClient using the OpenAI Chat Completions API.
type Client struct {
	client *goopenai.Client
	model  string
}

// NewClient creates an OpenAI completion client from a provider config.
// cfg.BaseURL selects an OpenAI-compatible endpoint.
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
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		oc.BaseURL = strings.TrimRight(baseURL, "/")
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		client: goopenai.NewClientWithConfig(oc),
		model:  model,
	}
}

func (c *Client) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	chatReq := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		MaxCompletionTokens: req.MaxOutputTokens,
		Temperature:         float32(req.Temperature),
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, completion.NewError(completion.KindTransient, providerName, errors.New("no choices in response"))
	}
	choice := resp.Choices[0]
	if req.JSONMode && choice.FinishReason == goopenai.FinishReasonLength {
		return nil, completion.NewError(completion.KindFatal, providerName, errors.New("json output truncated at max tokens"))
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, completion.NewError(completion.KindTransient, providerName, errors.New("empty completion"))
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return &port.CompletionResponse{Text: text, Model: model}, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return completion.FromStatus(providerName, apiErr.HTTPStatusCode, "", fmt.Errorf("api error: %s", apiErr.Message))
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return completion.FromStatus(providerName, reqErr.HTTPStatusCode, "", reqErr)
	}
	return completion.NewError(completion.KindOf(err), providerName, err)
}
