package sentiment

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/utils"
)

// Result is the outcome of one aggregation pass over a headline's comments.
//
// Group.Total() + FilteredOut + ScoringErrors == TotalProcessed.
type Result struct {
	Group          *models.SentimentGroup
	FilteredOut    int
	ScoringErrors  int
	TotalProcessed int
}

// NoSignal reports that no comment survived filtering and scoring. Callers
// must not summarize such a result.
func (r Result) NoSignal() bool {
	return r.Group.Total() == 0
}

type Aggregator struct {
	scorer  Scorer
	filter  Filter
	workers int
}

type AggregatorOption func(*Aggregator)

// WithWorkers scores comments concurrently. Per-class order still follows
// source order.
func WithWorkers(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithFilter(f Filter) AggregatorOption {
	return func(a *Aggregator) {
		a.filter = f
	}
}

func NewAggregator(scorer Scorer, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		scorer:  scorer,
		filter:  DefaultFilter(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type scoreOutcome struct {
	polarity float64
	err      error
}

// Aggregate filters, scores and classifies comments in source order. The
// headline only scopes the comment identifiers.
func (a *Aggregator) Aggregate(headline string, comments []models.Comment) Result {
	result := Result{
		Group:          models.NewSentimentGroup(),
		TotalProcessed: len(comments),
	}

	kept := make([]models.Comment, 0, len(comments))
	for _, comment := range comments {
		if !a.filter.Keep(comment.Body) {
			result.FilteredOut++
			continue
		}
		kept = append(kept, comment)
	}

	outcomes := a.scoreAll(kept)

	for i, comment := range kept {
		outcome := outcomes[i]
		if outcome.err != nil {
			slog.Warn("[Aggregator] Skipping unscorable comment",
				slog.String("comment_id", comment.ID),
				slog.String("error", outcome.err.Error()))
			result.ScoringErrors++
			continue
		}

		result.Group.Add(scored(headline, comment, outcome.polarity))
	}

	slog.Debug("[Aggregator] Aggregated comments",
		slog.Int("total", result.TotalProcessed),
		slog.Int("filtered_out", result.FilteredOut),
		slog.Int("scoring_errors", result.ScoringErrors),
		slog.Int("positive", result.Group.Count(models.Positive)),
		slog.Int("neutral", result.Group.Count(models.Neutral)),
		slog.Int("negative", result.Group.Count(models.Negative)))

	return result
}

// ScoreOne scores and classifies a single comment without filtering it.
func (a *Aggregator) ScoreOne(headline string, comment models.Comment) (models.ScoredComment, error) {
	outcome := a.score(comment.Body)
	if outcome.err != nil {
		return models.ScoredComment{}, outcome.err
	}
	return scored(headline, comment, outcome.polarity), nil
}

func scored(headline string, comment models.Comment, raw float64) models.ScoredComment {
	text := strings.TrimSpace(comment.Body)
	polarity := Round3(Clamp(raw))
	return models.ScoredComment{
		ID:        utils.CommentID(headline, text),
		Text:      text,
		Polarity:  polarity,
		Class:     Classify(polarity),
		Author:    authorName(comment.Author),
		CreatedAt: displayTime(comment),
	}
}

func (a *Aggregator) scoreAll(comments []models.Comment) []scoreOutcome {
	outcomes := make([]scoreOutcome, len(comments))
	if a.workers <= 1 || len(comments) < 2 {
		for i, c := range comments {
			outcomes[i] = a.score(c.Body)
		}
		return outcomes
	}

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, c := range comments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, body string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = a.score(body)
		}(i, c.Body)
	}
	wg.Wait()

	return outcomes
}

func (a *Aggregator) score(body string) (outcome scoreOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = scoreOutcome{err: errorFromPanic(r)}
		}
	}()

	p, err := a.scorer.Score(strings.TrimSpace(body))
	return scoreOutcome{polarity: p, err: err}
}

func authorName(author string) string {
	if author == "" {
		return "[deleted]"
	}
	return author
}

func displayTime(c models.Comment) string {
	if c.CreatedAt.IsZero() {
		return ""
	}
	return c.CreatedAt.UTC().Format(utils.DisplayLayout)
}

func errorFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("[Aggregator] scorer panicked: %w", err)
	}
	return fmt.Errorf("[Aggregator] scorer panicked: %v", r)
}
