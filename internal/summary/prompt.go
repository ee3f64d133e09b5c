package summary

import (
	"strings"

	"github.com/spacesedan/agora/internal/models"
)

const (
	// SystemPrompt frames every summarizer call.
	SystemPrompt = "You are a news analyst summarizing public emotional sentiment."

	// MaxExcerpts is the number of comments per class sent to the summarizer.
	MaxExcerpts = 2

	instruction = "\nSummarize public sentiment in 2-3 sentences. Capture emotional tone, major concerns, and common hopes. Be neutral and insightful."
)

type PromptBuilder struct {
	classes       []models.SentimentClass
	emptySections bool
}

type PromptOption func(*PromptBuilder)

// WithClasses sets the section order. Defaults to models.AllClasses.
func WithClasses(classes ...models.SentimentClass) PromptOption {
	return func(b *PromptBuilder) {
		b.classes = classes
	}
}

// WithEmptySections prints a section header for every configured class even
// when it has no comments.
func WithEmptySections(enabled bool) PromptOption {
	return func(b *PromptBuilder) {
		b.emptySections = enabled
	}
}

func NewPromptBuilder(opts ...PromptOption) *PromptBuilder {
	b := &PromptBuilder{classes: models.AllClasses}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build renders the headline and at most MaxExcerpts comments per class.
// Output depends only on the headline and the group contents.
func (b *PromptBuilder) Build(headline string, group *models.SentimentGroup) string {
	var sb strings.Builder
	sb.WriteString("Headline: ")
	sb.WriteString(headline)

	for _, class := range b.classes {
		comments := group.Comments(class)
		if len(comments) == 0 && !b.emptySections {
			continue
		}

		sb.WriteString("\n")
		sb.WriteString(class.String())
		sb.WriteString(" Comments:\n")

		if len(comments) > MaxExcerpts {
			comments = comments[:MaxExcerpts]
		}
		for _, c := range comments {
			sb.WriteString("- ")
			sb.WriteString(c.Text)
			sb.WriteString("\n")
		}
	}

	sb.WriteString(instruction)
	return sb.String()
}

var defaultBuilder = NewPromptBuilder()

// BuildPrompt renders a prompt with the default section policy.
func BuildPrompt(headline string, group *models.SentimentGroup) string {
	return defaultBuilder.Build(headline, group)
}
