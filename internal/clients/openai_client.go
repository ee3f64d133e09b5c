package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spacesedan/agora/internal/summary"
)

const (
	openAIRequestTimeout = 60 * time.Second
	DefaultOpenAIModel   = "gpt-4"
)

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient is a summary.Completer backed by chat completions.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = openAIRequestTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		// the summary service owns retry and fallback policy
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	slog.Info("[OpenAIClient] OpenAI client initialized",
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(cfg.Model),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req summary.CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", summary.NewCompletionError(summary.Unknown, errors.New("[OpenAIClient] no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck lists models as a cheap authenticated round trip.
func (c *OpenAIClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.client.Models.List(ctx); err != nil {
		slog.Warn("[OpenAIClient] Health check failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return summary.NewCompletionError(summary.KindFromStatus(apiErr.StatusCode),
			fmt.Errorf("[OpenAIClient] status %d: %w", apiErr.StatusCode, err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return summary.NewCompletionError(summary.Timeout, err)
	}
	return summary.NewCompletionError(summary.Unavailable, fmt.Errorf("[OpenAIClient] %w", err))
}
