package summary_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/db"
	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/summary"
)

func newTableStore(t *testing.T, retention int) (*summary.TableStore, db.Backend) {
	t.Helper()

	backend, err := db.NewSQLiteBackend(filepath.Join(t.TempDir(), "summaries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	require.NoError(t, db.EnsureAll(context.Background(), backend))

	return summary.NewTableStore(backend, retention), backend
}

func TestTableStore_LookupFirstMatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTableStore(t, db.DefaultRetentionRows)

	_, ok, err := store.Lookup(ctx, "Headline A")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, models.CachedSummary{Headline: "Headline A", SummaryText: "first"}))
	require.NoError(t, store.Save(ctx, models.CachedSummary{Headline: "Headline A", SummaryText: "second"}))

	text, ok, err := store.Lookup(ctx, "Headline A")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", text)
}

func TestTableStore_TrimsOnSave(t *testing.T) {
	ctx := context.Background()
	store, backend := newTableStore(t, 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, models.CachedSummary{
			Headline:    fmt.Sprintf("h%d", i),
			SummaryText: "s",
		}))
	}

	records, err := backend.ReadAll(ctx, db.SummariesTable.Name)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "h2", records[0].Get("headline"))
}

func TestService_WithTableStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newTableStore(t, db.DefaultRetentionRows)
	require.NoError(t, store.Save(ctx, models.CachedSummary{Headline: "Headline A", SummaryText: "from table"}))

	completer := &countingCompleter{reply: "fresh"}
	svc := summary.NewService(completer, summary.WithStore(store))

	require.Equal(t, "from table", svc.Get(ctx, "Headline A", sampleGroup()))
	require.Equal(t, "fresh", svc.Get(ctx, "Headline B", sampleGroup()))
	require.Equal(t, "fresh", svc.Get(ctx, "Headline B", sampleGroup()))
	require.Equal(t, 1, completer.calls)
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache down")
}

func (failingStore) Save(context.Context, models.CachedSummary) error {
	return errors.New("cache down")
}

func TestLayeredStore_BackfillsFrontLayer(t *testing.T) {
	ctx := context.Background()
	front := &memStore{}
	back := &memStore{entries: []models.CachedSummary{{Headline: "H", SummaryText: "durable"}}}
	layered := summary.NewLayeredStore(front, back)

	text, ok, err := layered.Lookup(ctx, "H")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "durable", text)
	require.Len(t, front.entries, 1)

	text, ok, err = layered.Lookup(ctx, "H")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "durable", text)
	require.Equal(t, 1, back.lookups)
}

func TestLayeredStore_SkipsFailingLayer(t *testing.T) {
	ctx := context.Background()
	back := &memStore{entries: []models.CachedSummary{{Headline: "H", SummaryText: "durable"}}}
	layered := summary.NewLayeredStore(failingStore{}, back)

	text, ok, err := layered.Lookup(ctx, "H")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "durable", text)

	_, ok, err = layered.Lookup(ctx, "missing")
	require.False(t, ok)
	require.Error(t, err)

	err = layered.Save(ctx, models.CachedSummary{Headline: "N", SummaryText: "new"})
	require.Error(t, err)
	require.Len(t, back.entries, 2)
}
