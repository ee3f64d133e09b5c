package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/utils"
)

const DefaultTopHeadlines = 3

// ReflectionSource lists every stored headline reflection.
type ReflectionSource interface {
	All(ctx context.Context) ([]models.Reflection, error)
}

// Summarizer produces an uncached summary text; failures come back as text.
type Summarizer interface {
	Summarize(ctx context.Context, headline string, group *models.SentimentGroup) string
}

type HeadlineDigest struct {
	Headline    string `json:"headline"`
	Reflections int    `json:"reflections"`
	Summary     string `json:"summary"`
}

// Digest replays the previous UTC day's most reflected-on headlines.
type Digest struct {
	Date        string           `json:"date"`
	GeneratedAt string           `json:"generated_at"`
	Empty       bool             `json:"empty"`
	Headlines   []HeadlineDigest `json:"headlines"`
}

type Builder struct {
	source     ReflectionSource
	summarizer Summarizer
	top        int
	now        func() time.Time

	mu     sync.RWMutex
	latest *Digest
}

type Option func(*Builder)

func WithTopHeadlines(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.top = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

func NewBuilder(source ReflectionSource, summarizer Summarizer, opts ...Option) *Builder {
	b := &Builder{
		source:     source,
		summarizer: summarizer,
		top:        DefaultTopHeadlines,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type headlineBucket struct {
	headline string
	texts    []string
	count    int
	first    int
}

// Build summarizes the reflections written on the UTC day before now.
func (b *Builder) Build(ctx context.Context, now time.Time) (Digest, error) {
	all, err := b.source.All(ctx)
	if err != nil {
		return Digest{}, fmt.Errorf("[Digest] load reflections: %w", err)
	}

	day := now.UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	d := Digest{
		Date:        day,
		GeneratedAt: utils.Timestamp(now),
		Headlines:   []HeadlineDigest{},
	}

	buckets := make(map[string]*headlineBucket)
	for _, r := range all {
		ts, err := utils.ParseTimestamp(r.Timestamp)
		if err != nil || ts.Format(time.DateOnly) != day {
			continue
		}

		bucket, ok := buckets[r.Headline]
		if !ok {
			bucket = &headlineBucket{headline: r.Headline, first: len(buckets)}
			buckets[r.Headline] = bucket
		}
		bucket.count++
		if text := strings.TrimSpace(r.ReflectionText); text != "" {
			bucket.texts = append(bucket.texts, text)
		}
	}

	if len(buckets) == 0 {
		d.Empty = true
		return d, nil
	}

	ranked := make([]*headlineBucket, 0, len(buckets))
	for _, bucket := range buckets {
		ranked = append(ranked, bucket)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})
	if len(ranked) > b.top {
		ranked = ranked[:b.top]
	}

	for _, bucket := range ranked {
		group := models.NewSentimentGroup()
		for _, text := range bucket.texts {
			group.Add(models.ScoredComment{Text: text, Class: models.Reflections})
		}

		d.Headlines = append(d.Headlines, HeadlineDigest{
			Headline:    bucket.headline,
			Reflections: bucket.count,
			Summary:     b.summarizer.Summarize(ctx, bucket.headline, group),
		})
	}

	slog.Info("[Digest] Digest built",
		slog.String("date", day),
		slog.Int("headlines", len(d.Headlines)))
	return d, nil
}

// Refresh rebuilds the digest for the current clock and keeps it as latest.
func (b *Builder) Refresh(ctx context.Context) error {
	d, err := b.Build(ctx, b.now())
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.latest = &d
	b.mu.Unlock()
	return nil
}

// Latest returns the kept digest when it covers yesterday, building a fresh
// one otherwise.
func (b *Builder) Latest(ctx context.Context) (Digest, error) {
	now := b.now()
	want := now.UTC().AddDate(0, 0, -1).Format(time.DateOnly)

	b.mu.RLock()
	latest := b.latest
	b.mu.RUnlock()

	if latest != nil && latest.Date == want {
		return *latest, nil
	}

	if err := b.Refresh(ctx); err != nil {
		return Digest{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return *b.latest, nil
}
