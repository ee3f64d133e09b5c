package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/utils"
)

const (
	DefaultMaxTokens   = 250
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second

	fallbackPrefix = "Could not generate summary: "
	// NoCommentsText is shown instead of a summary when nothing survived filtering.
	NoCommentsText = "No usable comments to summarize."
)

var errUnhealthy = errors.New("summarizer reported unhealthy")

type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer is a text-completion backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

type Service struct {
	completer   Completer
	store       Store
	builder     *PromptBuilder
	timeout     time.Duration
	maxTokens   int
	temperature float64
	healthy     *atomic.Bool
	now         func() time.Time
}

type Option func(*Service)

// WithStore enables summary caching.
func WithStore(store Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(s *Service) {
		s.temperature = t
	}
}

func WithPromptBuilder(b *PromptBuilder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithHealth skips the summarizer while the flag is false.
func WithHealth(healthy *atomic.Bool) Option {
	return func(s *Service) {
		s.healthy = healthy
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{
		completer:   completer,
		builder:     defaultBuilder,
		timeout:     DefaultTimeout,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cached reports whether Get consults a summary store.
func (s *Service) Cached() bool {
	return s.store != nil
}

// Get returns the stored summary for the headline, generating and storing one
// on a miss. Failures come back as a fallback text, which is never stored.
func (s *Service) Get(ctx context.Context, headline string, group *models.SentimentGroup) string {
	if s.store != nil {
		text, ok, err := s.store.Lookup(ctx, headline)
		if err != nil {
			slog.Warn("[SummaryService] Cache lookup failed",
				slog.String("headline", headline),
				slog.String("error", err.Error()))
		}
		if ok {
			slog.Debug("[SummaryService] Cache hit", slog.String("headline", headline))
			return text
		}
	}

	text, err := s.Generate(ctx, headline, group)
	if errors.Is(err, ErrNoComments) {
		return NoCommentsText
	}
	if err != nil {
		return Fallback(err)
	}

	if s.store != nil {
		cached := models.CachedSummary{
			Headline:    headline,
			SummaryText: text,
			GeneratedAt: utils.Timestamp(s.now()),
		}
		if err := s.store.Save(ctx, cached); err != nil {
			slog.Warn("[SummaryService] Failed to store summary",
				slog.String("headline", headline),
				slog.String("error", err.Error()))
		}
	}
	return text
}

// Summarize generates a summary without consulting or filling the store.
func (s *Service) Summarize(ctx context.Context, headline string, group *models.SentimentGroup) string {
	text, err := s.Generate(ctx, headline, group)
	if errors.Is(err, ErrNoComments) {
		return NoCommentsText
	}
	if err != nil {
		return Fallback(err)
	}
	return text
}

// Generate calls the summarizer once. Failures are *CompletionError values.
func (s *Service) Generate(ctx context.Context, headline string, group *models.SentimentGroup) (string, error) {
	if group.Total() == 0 {
		return "", ErrNoComments
	}
	if s.healthy != nil && !s.healthy.Load() {
		return "", NewCompletionError(Unavailable, errUnhealthy)
	}

	prompt := s.builder.Build(headline, group)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	text, err := s.completer.Complete(ctx, CompletionRequest{
		System:      SystemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		err = tagCompletionError(ctx, err)
		slog.Error("[SummaryService] Summarizer call failed",
			slog.String("headline", headline),
			slog.String("kind", KindOf(err).String()),
			slog.String("error", err.Error()))
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", NewCompletionError(Unknown, errors.New("empty completion"))
	}

	slog.Info("[SummaryService] Summary generated",
		slog.String("headline", headline),
		slog.Duration("elapsed", s.now().Sub(start)))
	return text, nil
}

func tagCompletionError(ctx context.Context, err error) error {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewCompletionError(Timeout, err)
	}
	return NewCompletionError(Unknown, err)
}

// Fallback is the user-visible text shown when a summary could not be generated.
func Fallback(err error) string {
	return fmt.Sprintf("%s%v", fallbackPrefix, err)
}

// IsFallback reports whether text was produced by Fallback.
func IsFallback(text string) bool {
	return strings.HasPrefix(text, fallbackPrefix)
}
