package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/processing"
)

const (
	fetchAttempts = 3
	retryDelay    = 2 * time.Second
)

type HotLister interface {
	Hot(ctx context.Context, subreddit string) ([]models.Post, error)
}

type PostAnalyzer interface {
	Analyze(ctx context.Context, post models.Post) (*processing.Analysis, error)
}

// Warmer walks hot listings and analyzes each post once so the summary cache
// is populated before anyone opens the headline.
type Warmer struct {
	lister     HotLister
	analyzer   PostAnalyzer
	subreddits []string
	retryDelay time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
}

type WarmerOption func(*Warmer)

func WithRetryDelay(d time.Duration) WarmerOption {
	return func(w *Warmer) {
		w.retryDelay = d
	}
}

func NewWarmer(lister HotLister, analyzer PostAnalyzer, subreddits []string, opts ...WarmerOption) *Warmer {
	w := &Warmer{
		lister:     lister,
		analyzer:   analyzer,
		subreddits: subreddits,
		retryDelay: retryDelay,
		seen:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type WarmStats struct {
	Analyzed int
	Skipped  int
	Failed   int
}

// Warm runs one pass over every configured subreddit. Headlines analyzed in an
// earlier pass are skipped. It returns an error only when ctx ends the pass.
func (w *Warmer) Warm(ctx context.Context) (WarmStats, error) {
	var stats WarmStats
	start := time.Now()

	for _, sub := range w.subreddits {
		posts, err := w.fetchWithRetries(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			slog.Error("[Warmer] Failed to fetch hot listing",
				slog.String("subreddit", sub),
				slog.String("error", err.Error()))
			stats.Failed++
			continue
		}

		for _, post := range posts {
			if err := ctx.Err(); err != nil {
				slog.Warn("[Warmer] Context cancelled during warm pass")
				return stats, err
			}

			if w.markSeen(post.Title) {
				stats.Skipped++
				continue
			}

			if _, err := w.analyzer.Analyze(ctx, post); err != nil {
				slog.Warn("[Warmer] Failed to analyze post",
					slog.String("post_id", post.ID),
					slog.String("error", err.Error()))
				w.forget(post.Title)
				stats.Failed++
				continue
			}
			stats.Analyzed++
		}
	}

	slog.Info("[Warmer] Warm pass finished",
		slog.Int("analyzed", stats.Analyzed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("took", time.Since(start)))
	return stats, nil
}

// Run warms once immediately and then on every tick until ctx is done.
func (w *Warmer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Warm(ctx); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Warmer) fetchWithRetries(ctx context.Context, subreddit string) ([]models.Post, error) {
	var err error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		var posts []models.Post
		posts, err = w.lister.Hot(ctx, subreddit)
		if err == nil {
			return posts, nil
		}

		slog.Warn("[Warmer] Retrying hot listing",
			slog.String("subreddit", subreddit),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.retryDelay):
		}
	}
	return nil, fmt.Errorf("[Warmer] hot listing for %s failed after %d attempts: %w", subreddit, fetchAttempts, err)
}

// markSeen reports whether the headline was already warmed and records it.
func (w *Warmer) markSeen(headline string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[headline]; ok {
		return true
	}
	w.seen[headline] = struct{}{}
	return false
}

func (w *Warmer) forget(headline string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.seen, headline)
}
