package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"clausewise/internal/completion"
	"clausewise/internal/config"
	"clausewise/internal/port"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.0-flash"
)

func init() {
	completion.RegisterProvider(providerName, func(cfg *config.CompletionProviderConfig) (port.CompletionClient, error) {
		return NewClient(cfg)
	})
}

// Client implements port.CompletionClient using the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini completion client from a provider config.
func NewClient(cfg *config.CompletionProviderConfig) (*Client, error) {
	return newClient(cfg, cfg.BaseURL)
}

// NewClientWithEndpoint creates a client pointing at a custom API base URL (for testing).
func NewClientWithEndpoint(cfg *config.CompletionProviderConfig, baseURL string) (*Client, error) {
	return newClient(cfg, baseURL)
}

func newClient(cfg *config.CompletionProviderConfig, baseURL string) (*Client, error) {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.JSONMode {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), gc)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, completion.NewError(completion.KindTransient, providerName, errors.New("no candidates in response"))
	}
	if req.JSONMode && resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return nil, completion.NewError(completion.KindFatal, providerName, errors.New("json output truncated at max tokens"))
	}

	text := strings.TrimSpace(resp.Text())
	if req.JSONMode {
		text = completion.StripCodeFences(text)
	}
	if text == "" {
		return nil, completion.NewError(completion.KindTransient, providerName, errors.New("empty completion"))
	}

	model := resp.ModelVersion
	if model == "" {
		model = c.model
	}
	return &port.CompletionResponse{Text: text, Model: model}, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return completion.FromStatus(providerName, apiErr.Code, "", err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return completion.FromStatus(providerName, apiErrPtr.Code, "", err)
	}
	return completion.NewError(completion.KindOf(err), providerName, err)
}
