package processing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/sentiment"
)

// MaxDisplayComments caps the comments listed under each class.
const MaxDisplayComments = 10

// Summarizer returns a summary text for a headline. Failures come back as text.
type Summarizer interface {
	Get(ctx context.Context, headline string, group *models.SentimentGroup) string
}

// Section is the display view of one sentiment class.
type Section struct {
	Class     models.SentimentClass  `json:"sentiment_class"`
	Count     int                    `json:"count"`
	Highlight *models.ScoredComment  `json:"highlight,omitempty"`
	Extras    []models.ScoredComment `json:"extras"`
	Comments  []models.ScoredComment `json:"comments"`
}

type Analysis struct {
	Post           models.Post    `json:"post"`
	Sections       []Section      `json:"sections"`
	Counts         map[string]int `json:"counts"`
	FilteredOut    int            `json:"filtered_out"`
	ScoringErrors  int            `json:"scoring_errors"`
	TotalProcessed int            `json:"total_processed"`
	NoSignal       bool           `json:"no_signal"`
	Summary        string         `json:"summary,omitempty"`
}

type Analyzer struct {
	source       ContentSource
	aggregator   *sentiment.Aggregator
	summarizer   Summarizer
	commentLimit int
}

func NewAnalyzer(source ContentSource, aggregator *sentiment.Aggregator, summarizer Summarizer, commentLimit int) *Analyzer {
	if commentLimit <= 0 {
		commentLimit = DefaultCommentLimit
	}
	return &Analyzer{
		source:       source,
		aggregator:   aggregator,
		summarizer:   summarizer,
		commentLimit: commentLimit,
	}
}

// Analyze runs one full pass over a post's comments. The summarizer is not
// called when no comment survives filtering and scoring.
func (a *Analyzer) Analyze(ctx context.Context, post models.Post) (*Analysis, error) {
	start := time.Now()

	comments, err := a.source.Comments(ctx, post.ID, a.commentLimit)
	if err != nil {
		return nil, fmt.Errorf("[Analyzer] fetch comments for %s: %w", post.ID, err)
	}
	if len(comments) > a.commentLimit {
		comments = comments[:a.commentLimit]
	}

	result := a.aggregator.Aggregate(post.Title, comments)

	analysis := &Analysis{
		Post:           post,
		Sections:       buildSections(result.Group),
		Counts:         result.Group.Counts(),
		FilteredOut:    result.FilteredOut,
		ScoringErrors:  result.ScoringErrors,
		TotalProcessed: result.TotalProcessed,
		NoSignal:       result.NoSignal(),
	}

	if !analysis.NoSignal {
		analysis.Summary = a.summarizer.Get(ctx, post.Title, result.Group)
	}

	slog.Info("[Analyzer] Analysis complete",
		slog.String("post_id", post.ID),
		slog.Int("comments", result.TotalProcessed),
		slog.Bool("no_signal", analysis.NoSignal),
		slog.Duration("elapsed", time.Since(start)))
	return analysis, nil
}

func buildSections(group *models.SentimentGroup) []Section {
	sections := make([]Section, 0, len(models.CommentClasses))
	for _, class := range models.CommentClasses {
		comments := group.Comments(class)
		section := Section{
			Class:    class,
			Count:    len(comments),
			Extras:   sentiment.Extras(comments),
			Comments: capComments(comments, MaxDisplayComments),
		}
		if h, ok := sentiment.Highlight(comments); ok {
			section.Highlight = &h
		}
		if section.Extras == nil {
			section.Extras = []models.ScoredComment{}
		}
		sections = append(sections, section)
	}
	return sections
}

func capComments(comments []models.ScoredComment, n int) []models.ScoredComment {
	if len(comments) > n {
		comments = comments[:n]
	}
	out := make([]models.ScoredComment, len(comments))
	copy(out, comments)
	return out
}

// HotEntry is a hot post with its highest-scored top-level comment.
type HotEntry struct {
	Post       models.Post          `json:"post"`
	TopComment models.ScoredComment `json:"top_comment"`
}

// HotFeed picks the most upvoted comment of each post and orders the posts by
// that comment's polarity, most positive first. Posts without comments, or
// whose comments cannot be fetched or scored, are left out.
func (a *Analyzer) HotFeed(ctx context.Context, posts []models.Post) []HotEntry {
	entries := make([]HotEntry, 0, len(posts))

	for _, post := range posts {
		if ctx.Err() != nil {
			break
		}

		comments, err := a.source.Comments(ctx, post.ID, a.commentLimit)
		if err != nil {
			slog.Warn("[Analyzer] Skipping post after comment fetch failure",
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()))
			continue
		}
		if len(comments) == 0 {
			continue
		}

		top := comments[0]
		for _, c := range comments[1:] {
			if c.Score > top.Score {
				top = c
			}
		}

		scored, err := a.aggregator.ScoreOne(post.Title, top)
		if err != nil {
			slog.Warn("[Analyzer] Skipping post with unscorable top comment",
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()))
			continue
		}
		entries = append(entries, HotEntry{Post: post, TopComment: scored})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TopComment.Polarity > entries[j].TopComment.Polarity
	})
	return entries
}
