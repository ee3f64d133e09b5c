package utils_test

import (
	"strings"
	"testing"
	"time"

	"github.com/spacesedan/agora/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestCommentIDIsStableAndScopedToHeadline(t *testing.T) {
	a := utils.CommentID("Headline A", "same text")
	require.Equal(t, a, utils.CommentID("Headline A", "same text"))
	require.Len(t, a, 16)
	require.NotEqual(t, a, utils.CommentID("Headline B", "same text"))
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "short", utils.Snippet("short"))

	long := strings.Repeat("é", 150)
	got := utils.Snippet(long)
	require.Equal(t, 100, len([]rune(got)))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 34, 56, 123456000, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "naive iso with micros", raw: "2024-05-01T12:34:56.123456"},
		{name: "rfc3339", raw: "2024-05-01T12:34:56.123456Z"},
		{name: "offset", raw: "2024-05-01T14:34:56.123456+02:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := utils.ParseTimestamp(tt.raw)
			require.NoError(t, err)
			require.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := utils.ParseTimestamp("yesterday")
	require.Error(t, err)
}

func TestTimestampRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.FixedZone("x", 3600))
	raw := utils.Timestamp(ts)
	require.Equal(t, "2024-05-01T07:00:00.000000", raw)

	parsed, err := utils.ParseTimestamp(raw)
	require.NoError(t, err)
	require.True(t, ts.Equal(parsed))
}
