package clients

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/models"
)

func TestSummaryKey(t *testing.T) {
	a := summaryKey("Rates cut")
	require.True(t, strings.HasPrefix(a, VALKEY_SUMMARY_PREFIX))
	require.Equal(t, a, summaryKey("Rates cut"))
	// lookup is exact: case matters
	require.NotEqual(t, a, summaryKey("rates cut"))
}

func TestIsConnectionError(t *testing.T) {
	require.False(t, isConnectionError(nil))
	require.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
	require.True(t, isConnectionError(errors.New("read: i/o timeout")))
	require.True(t, isConnectionError(errors.New("unexpected EOF")))
	require.False(t, isConnectionError(errors.New("WRONGTYPE Operation against a key")))
}

// Runs against a real server when VALKEY_TEST_ADDR is set.
func TestValkeyStoreFirstWriterWins(t *testing.T) {
	addr := os.Getenv("VALKEY_TEST_ADDR")
	if addr == "" {
		t.Skip("VALKEY_TEST_ADDR not set")
	}

	vc, err := NewValkeyClient(ValkeyConfig{InitAddress: []string{addr}, TTL: time.Minute})
	require.NoError(t, err)
	defer vc.Close()

	ctx := context.Background()
	headline := "valkey-test " + time.Now().Format(time.RFC3339Nano)

	_, ok, err := vc.Lookup(ctx, headline)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, vc.Save(ctx, models.CachedSummary{Headline: headline, SummaryText: "first"}))
	require.NoError(t, vc.Save(ctx, models.CachedSummary{Headline: headline, SummaryText: "second"}))

	text, ok, err := vc.Lookup(ctx, headline)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", text)
}
