package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spacesedan/agora/internal/models"
)

const (
	DefaultSearchLimit  = 2
	DefaultHotLimit     = 15
	DefaultCommentLimit = 30
	DefaultPageSize     = 5

	searchSort   = "relevance"
	searchWindow = "week"
)

var (
	ErrEmptyTopic       = errors.New("topic is required")
	ErrEmptySubreddit   = errors.New("subreddit is required")
	ErrAllSourcesFailed = errors.New("every curated subreddit failed")
)

// DefaultCuratedSubreddits is searched in order for topic queries.
var DefaultCuratedSubreddits = []string{
	"news", "worldnews", "politics", "uspolitics",
	"ukpolitics", "geopolitics", "europe", "MiddleEastNews",
	"technology", "Futurology", "science", "environment",
	"TrueOffMyChest", "ChangeMyView", "AskPolitics",
	"Philosophy", "CasualConversation", "UpliftingNews",
}

// ContentSource is the external headline and comment provider.
type ContentSource interface {
	Search(ctx context.Context, subreddit, query, sort, window string, limit int) ([]models.Post, error)
	Hot(ctx context.Context, subreddit string, limit int) ([]models.Post, error)
	Comments(ctx context.Context, postID string, limit int) ([]models.Comment, error)
}

type Finder struct {
	source      ContentSource
	subreddits  []string
	searchLimit int
	hotLimit    int
}

type FinderOption func(*Finder)

func WithSubreddits(subs []string) FinderOption {
	return func(f *Finder) {
		if len(subs) > 0 {
			f.subreddits = subs
		}
	}
}

func WithSearchLimit(n int) FinderOption {
	return func(f *Finder) {
		if n > 0 {
			f.searchLimit = n
		}
	}
}

func WithHotLimit(n int) FinderOption {
	return func(f *Finder) {
		if n > 0 {
			f.hotLimit = n
		}
	}
}

func NewFinder(source ContentSource, opts ...FinderOption) *Finder {
	f := &Finder{
		source:      source,
		subreddits:  DefaultCuratedSubreddits,
		searchLimit: DefaultSearchLimit,
		hotLimit:    DefaultHotLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Finder) Subreddits() []string {
	return f.subreddits
}

// Search queries every curated subreddit for the topic. A failing subreddit is
// skipped. Stickied posts are dropped and repeated titles keep the first post.
func (f *Finder) Search(ctx context.Context, topic string) ([]models.Post, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	var (
		posts  []models.Post
		seen   = make(map[string]struct{})
		failed int
	)

	for _, sub := range f.subreddits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := f.source.Search(ctx, sub, topic, searchSort, searchWindow, f.searchLimit)
		if err != nil {
			slog.Warn("[Finder] Skipping subreddit after search failure",
				slog.String("subreddit", sub),
				slog.String("topic", topic),
				slog.String("error", err.Error()))
			failed++
			continue
		}

		for _, post := range found {
			if post.Stickied {
				continue
			}
			if _, dup := seen[post.Title]; dup {
				continue
			}
			seen[post.Title] = struct{}{}
			posts = append(posts, post)
		}
	}

	if failed > 0 && failed == len(f.subreddits) {
		return nil, fmt.Errorf("[Finder] search %q: %w", topic, ErrAllSourcesFailed)
	}

	slog.Info("[Finder] Topic search complete",
		slog.String("topic", topic),
		slog.Int("headlines", len(posts)),
		slog.Int("failed_subreddits", failed))
	return posts, nil
}

// Hot returns the non-stickied hot posts of one subreddit.
func (f *Finder) Hot(ctx context.Context, subreddit string) ([]models.Post, error) {
	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, ErrEmptySubreddit
	}

	found, err := f.source.Hot(ctx, subreddit, f.hotLimit)
	if err != nil {
		return nil, fmt.Errorf("[Finder] hot listing for %s: %w", subreddit, err)
	}

	posts := make([]models.Post, 0, len(found))
	for _, post := range found {
		if !post.Stickied {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// Page is one 1-based page of a list. Start and End are 0-based item offsets.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
	Start      int `json:"start"`
	End        int `json:"end"`
}

// Paginate clamps page into [1, TotalPages]. An empty list has one empty page.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(items)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	if start > total {
		start = total
	}

	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []T{}
	}

	return Page[T]{
		Items:      pageItems,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		Start:      start,
		End:        end,
	}
}
