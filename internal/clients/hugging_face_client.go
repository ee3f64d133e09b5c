package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/summary"
)

// HuggingFaceClient is a summary.Completer for a self-hosted text generation
// endpoint that accepts {"inputs", "parameters"} and answers {"summary"}.
type HuggingFaceClient struct {
	Client         *http.Client
	endpoint       string
	initialBackoff time.Duration
	maxRetries     int
}

type HuggingFaceConfig struct {
	Endpoint       string
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxRetries     int
}

func NewHuggingFaceClient(cfg HuggingFaceConfig) *HuggingFaceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = INITIAL_BACKOFF
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MAX_RETRIES
	}

	slog.Info("[HuggingFaceClient] Initializing Client",
		slog.Duration("timeout", cfg.Timeout),
		slog.String("endpoint", cfg.Endpoint))

	return &HuggingFaceClient{
		Client:         &http.Client{Timeout: cfg.Timeout},
		endpoint:       cfg.Endpoint,
		initialBackoff: cfg.InitialBackoff,
		maxRetries:     cfg.MaxRetries,
	}
}

func (h *HuggingFaceClient) Complete(ctx context.Context, req summary.CompletionRequest) (string, error) {
	input := models.SummaryRequest{
		Inputs: req.System + "\n\n" + req.Prompt,
		Parameters: models.SummaryParameters{
			MaxNewTokens: req.MaxTokens,
			Temperature:  req.Temperature,
		},
	}

	var result models.SummaryResponse
	slog.Info("[HuggingFaceClient] Requesting summary from summarization service")
	start := time.Now()

	if err := h.postJSON(ctx, h.endpoint, input, &result); err != nil {
		slog.Error("[HuggingFaceClient] Summary Request Failed",
			slog.Duration("elapsed", time.Since(start)))
		return "", err
	}

	slog.Info("[HuggingFaceClient] Summary request successful",
		slog.Duration("elapsed", time.Since(start)))
	return result.Summary, nil
}

// HealthCheck treats any non-5xx answer from the endpoint as healthy.
func (h *HuggingFaceClient) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := h.Client.Do(req)
	if err != nil {
		slog.Warn("[HuggingFaceClient] Health check failed", slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// DoWithRetry retries transport errors, 429 and 5xx with exponential backoff.
func (h *HuggingFaceClient) DoWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var resp *http.Response
	var err error
	backoff := h.initialBackoff

	for attempt := 0; attempt < h.maxRetries; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", USER_AGENT)

		resp, err = h.Client.Do(req)
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if attempt == h.maxRetries-1 {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}

		slog.Warn("[HuggingFaceClient] Request failed, will retry",
			slog.Int("attempt", attempt+1),
			slog.String("error", errMsg(err, resp)))

		if sleepErr := sleepCtx(ctx, backoff); sleepErr != nil {
			return nil, sleepErr
		}
		backoff *= 2
		if backoff > MAX_BACKOFF {
			backoff = MAX_BACKOFF
		}
	}

	return resp, err
}

func (h *HuggingFaceClient) postJSON(ctx context.Context, endpoint string, input interface{}, output interface{}) error {
	body, err := json.Marshal(input)
	if err != nil {
		return summary.NewCompletionError(summary.Unknown, fmt.Errorf("failed to marshal input: %w", err))
	}

	resp, err := h.DoWithRetry(ctx, body)
	if err != nil {
		slog.Error("[HuggingFaceClient] Failed request after retries",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()))

		kind := summary.Unavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = summary.Timeout
		}
		return summary.NewCompletionError(kind, fmt.Errorf("request failed after retries: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return summary.NewCompletionError(summary.Unavailable, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return summary.NewCompletionError(summary.KindFromStatus(resp.StatusCode),
			fmt.Errorf("[HuggingFaceClient] status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(respBody, output); err != nil {
		slog.Error("[HuggingFaceClient] Failed to unmarshal response",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			getPreview(respBody),
			slog.Int("raw_response_length", len(respBody)))

		return summary.NewCompletionError(summary.Unknown, fmt.Errorf("failed to unmarshal response: %w", err))
	}

	return nil
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}

func errMsg(err error, resp *http.Response) string {
	if err != nil {
		return err.Error()
	}
	if resp != nil {
		return fmt.Sprintf("status code %d", resp.StatusCode)
	}
	return "unknown error"
}
