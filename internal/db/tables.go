package db

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrRowShape     = errors.New("row does not match table headers")
)

// DefaultRetentionRows is the number of newest rows kept per table.
const DefaultRetentionRows = 1000

// Schema names a logical table and its header row. Header order is the column
// order expected by AppendRow.
type Schema struct {
	Name    string
	Headers []string
}

var (
	ReflectionsTable = Schema{
		Name:    "Reflections",
		Headers: []string{"reflection_id", "headline", "emotions", "trust_level", "reflection", "timestamp"},
	}
	RepliesTable = Schema{
		Name:    "Replies",
		Headers: []string{"reflection_id", "reply", "timestamp"},
	}
	CommentReactionsTable = Schema{
		Name:    "CommentReactions",
		Headers: []string{"headline", "comment_snippet", "reaction", "timestamp"},
	}
	CommentReflectionsTable = Schema{
		Name:    "CommentReflections",
		Headers: []string{"field_name", "headline", "comment_snippet", "reflection", "emotion", "timestamp"},
	}
	FieldNamesTable = Schema{
		Name:    "FieldNames",
		Headers: []string{"field_name", "timestamp"},
	}
	SummariesTable = Schema{
		Name:    "Summaries",
		Headers: []string{"headline", "summary_text", "timestamp"},
	}
)

var AllSchemas = []Schema{
	ReflectionsTable,
	RepliesTable,
	CommentReactionsTable,
	CommentReflectionsTable,
	FieldNamesTable,
	SummariesTable,
}

// Record is one stored row keyed by header. Columns added by a later schema
// read as empty strings on older rows.
type Record map[string]string

func (r Record) Get(key string) string {
	return r[key]
}

// Backend is an append-mostly store of named tables. Rows come back in
// append order. There is no uniqueness enforcement.
type Backend interface {
	EnsureTable(ctx context.Context, schema Schema) error
	AppendRow(ctx context.Context, table string, row []string) error
	ReadAll(ctx context.Context, table string) ([]Record, error)
	// Trim deletes the oldest rows so that at most maxRows remain.
	Trim(ctx context.Context, table string, maxRows int) error
	Close() error
}

// EnsureAll provisions every table the dashboard uses.
func EnsureAll(ctx context.Context, backend Backend) error {
	for _, schema := range AllSchemas {
		if err := backend.EnsureTable(ctx, schema); err != nil {
			return fmt.Errorf("[DB] ensure table %s: %w", schema.Name, err)
		}
	}
	return nil
}

func recordFromRow(schema Schema, row []string) (Record, error) {
	if len(row) != len(schema.Headers) {
		return nil, fmt.Errorf("%w: %s expects %d columns, got %d",
			ErrRowShape, schema.Name, len(schema.Headers), len(row))
	}

	rec := make(Record, len(row))
	for i, header := range schema.Headers {
		rec[header] = row[i]
	}
	return rec, nil
}
