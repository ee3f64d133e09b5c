package summary_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/summary"
)

func groupOf(entries map[models.SentimentClass][]string) *models.SentimentGroup {
	g := models.NewSentimentGroup()
	for _, class := range models.AllClasses {
		for _, text := range entries[class] {
			g.Add(models.ScoredComment{Text: text, Class: class})
		}
	}
	return g
}

const suffix = "\nSummarize public sentiment in 2-3 sentences. Capture emotional tone, major concerns, and common hopes. Be neutral and insightful."

func TestBuildPrompt_Template(t *testing.T) {
	g := groupOf(map[models.SentimentClass][]string{
		models.Positive: {"great", "love it", "third positive"},
		models.Negative: {"awful"},
	})

	got := summary.BuildPrompt("Rates cut", g)

	want := "Headline: Rates cut" +
		"\nPositive Comments:\n- great\n- love it\n" +
		"\nNegative Comments:\n- awful\n" +
		suffix
	require.Equal(t, want, got)
}

func TestBuildPrompt_CapsExcerptsPerClass(t *testing.T) {
	g := groupOf(map[models.SentimentClass][]string{
		models.Positive: {"p1", "p2", "p3", "p4"},
		models.Neutral:  {"n1", "n2", "n3"},
		models.Negative: {"x1", "x2", "x3", "x4", "x5"},
	})

	got := summary.BuildPrompt("H", g)

	require.Equal(t, 6, strings.Count(got, "\n- "))
	require.NotContains(t, got, "p3")
	require.NotContains(t, got, "n3")
	require.NotContains(t, got, "x3")
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	g := groupOf(map[models.SentimentClass][]string{
		models.Neutral:  {"meh"},
		models.Positive: {"yay"},
	})

	first := summary.BuildPrompt("H", g)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, summary.BuildPrompt("H", g))
	}
	require.Less(t, strings.Index(first, "Positive Comments"), strings.Index(first, "Neutral Comments"))
}

func TestBuildPrompt_ReflectionsSection(t *testing.T) {
	g := groupOf(map[models.SentimentClass][]string{
		models.Reflections: {"worried", "hopeful", "unsure"},
	})

	got := summary.BuildPrompt("Digest", g)

	require.Equal(t, "Headline: Digest\nReflections Comments:\n- worried\n- hopeful\n"+suffix, got)
}

func TestPromptBuilder_EmptySections(t *testing.T) {
	g := groupOf(map[models.SentimentClass][]string{
		models.Negative: {"bad"},
	})

	b := summary.NewPromptBuilder(
		summary.WithClasses(models.CommentClasses...),
		summary.WithEmptySections(true),
	)
	got := b.Build("H", g)

	want := "Headline: H" +
		"\nPositive Comments:\n" +
		"\nNeutral Comments:\n" +
		"\nNegative Comments:\n- bad\n" +
		suffix
	require.Equal(t, want, got)
}
