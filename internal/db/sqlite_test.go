package db_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/db"
)

func newSQLite(t *testing.T) *db.SQLiteBackend {
	t.Helper()

	backend, err := db.NewSQLiteBackend(filepath.Join(t.TempDir(), "agora.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	require.NoError(t, db.EnsureAll(context.Background(), backend))
	return backend
}

func TestSQLiteBackend_AppendAndReadInOrder(t *testing.T) {
	ctx := context.Background()
	backend := newSQLite(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, backend.AppendRow(ctx, db.RepliesTable.Name,
			[]string{"r1", fmt.Sprintf("reply %d", i), "2024-05-01T00:00:00.000000"}))
	}

	records, err := backend.ReadAll(ctx, db.RepliesTable.Name)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		require.Equal(t, fmt.Sprintf("reply %d", i), rec.Get("reply"))
		require.Equal(t, "r1", rec.Get("reflection_id"))
	}
}

func TestSQLiteBackend_TablesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := newSQLite(t)

	require.NoError(t, backend.AppendRow(ctx, db.FieldNamesTable.Name, []string{"Maple", "t"}))

	records, err := backend.ReadAll(ctx, db.RepliesTable.Name)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSQLiteBackend_UnknownTable(t *testing.T) {
	ctx := context.Background()
	backend := newSQLite(t)

	err := backend.AppendRow(ctx, "Nope", []string{"a"})
	require.ErrorIs(t, err, db.ErrUnknownTable)

	_, err = backend.ReadAll(ctx, "Nope")
	require.ErrorIs(t, err, db.ErrUnknownTable)
}

func TestSQLiteBackend_RowShape(t *testing.T) {
	backend := newSQLite(t)

	err := backend.AppendRow(context.Background(), db.RepliesTable.Name, []string{"only-one"})
	require.ErrorIs(t, err, db.ErrRowShape)
}

func TestSQLiteBackend_TrimKeepsNewest(t *testing.T) {
	ctx := context.Background()
	backend := newSQLite(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, backend.AppendRow(ctx, db.FieldNamesTable.Name,
			[]string{fmt.Sprintf("name-%d", i), "t"}))
	}
	require.NoError(t, backend.AppendRow(ctx, db.RepliesTable.Name, []string{"r", "x", "t"}))

	require.NoError(t, backend.Trim(ctx, db.FieldNamesTable.Name, 4))

	records, err := backend.ReadAll(ctx, db.FieldNamesTable.Name)
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, "name-6", records[0].Get("field_name"))
	require.Equal(t, "name-9", records[3].Get("field_name"))

	others, err := backend.ReadAll(ctx, db.RepliesTable.Name)
	require.NoError(t, err)
	require.Len(t, others, 1)

	require.NoError(t, backend.Trim(ctx, db.FieldNamesTable.Name, 0))
	records, err = backend.ReadAll(ctx, db.FieldNamesTable.Name)
	require.NoError(t, err)
	require.Len(t, records, 4)
}

func TestSQLiteBackend_SchemaEvolution(t *testing.T) {
	ctx := context.Background()
	backend := newSQLite(t)

	old := db.Schema{Name: "Evolving", Headers: []string{"a", "b"}}
	require.NoError(t, backend.EnsureTable(ctx, old))
	require.NoError(t, backend.AppendRow(ctx, old.Name, []string{"1", "2"}))

	evolved := db.Schema{Name: "Evolving", Headers: []string{"a", "b", "c"}}
	require.NoError(t, backend.EnsureTable(ctx, evolved))
	require.NoError(t, backend.AppendRow(ctx, evolved.Name, []string{"3", "4", "5"}))

	records, err := backend.ReadAll(ctx, evolved.Name)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "", records[0].Get("c"))
	require.Equal(t, "5", records[1].Get("c"))
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agora.db")

	first, err := db.NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, db.EnsureAll(ctx, first))
	require.NoError(t, first.AppendRow(ctx, db.SummariesTable.Name, []string{"h", "s", "t"}))
	require.NoError(t, first.Close())

	second, err := db.NewSQLiteBackend(path)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, db.EnsureAll(ctx, second))

	records, err := second.ReadAll(ctx, db.SummariesTable.Name)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "s", records[0].Get("summary_text"))
}
