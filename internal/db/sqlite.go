package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps every logical table in one rows table, ordered by an
// autoincrement sequence.
type SQLiteBackend struct {
	conn    *sql.DB
	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("[SQLite] open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	b := &SQLiteBackend{conn: conn, schemas: make(map[string]Schema)}
	if err := b.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("[SQLite] init schema: %w", err)
	}

	slog.Info("[SQLite] Opened table store", slog.String("path", path))
	return b, nil
}

func (b *SQLiteBackend) Close() error {
	return b.conn.Close()
}

func (b *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS table_schemas (
		name TEXT PRIMARY KEY,
		headers TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS table_rows (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		cells TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_table_rows_table ON table_rows(table_name, seq);
	`

	_, err := b.conn.Exec(schema)
	return err
}

func (b *SQLiteBackend) EnsureTable(ctx context.Context, schema Schema) error {
	headers, err := json.Marshal(schema.Headers)
	if err != nil {
		return fmt.Errorf("[SQLite] marshal headers: %w", err)
	}

	query := `
	INSERT INTO table_schemas (name, headers) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET headers = excluded.headers
	`
	if _, err := b.conn.ExecContext(ctx, query, schema.Name, string(headers)); err != nil {
		return fmt.Errorf("[SQLite] register table %s: %w", schema.Name, err)
	}

	b.mu.Lock()
	b.schemas[schema.Name] = schema
	b.mu.Unlock()
	return nil
}

func (b *SQLiteBackend) schema(table string) (Schema, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	schema, ok := b.schemas[table]
	if !ok {
		return Schema{}, fmt.Errorf("[SQLite] %w: %s", ErrUnknownTable, table)
	}
	return schema, nil
}

func (b *SQLiteBackend) AppendRow(ctx context.Context, table string, row []string) error {
	schema, err := b.schema(table)
	if err != nil {
		return err
	}

	rec, err := recordFromRow(schema, row)
	if err != nil {
		return err
	}

	cells, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("[SQLite] marshal row: %w", err)
	}

	_, err = b.conn.ExecContext(ctx,
		`INSERT INTO table_rows (table_name, cells) VALUES (?, ?)`, table, string(cells))
	if err != nil {
		return fmt.Errorf("[SQLite] append row to %s: %w", table, err)
	}
	return nil
}

func (b *SQLiteBackend) ReadAll(ctx context.Context, table string) ([]Record, error) {
	if _, err := b.schema(table); err != nil {
		return nil, err
	}

	rows, err := b.conn.QueryContext(ctx,
		`SELECT cells FROM table_rows WHERE table_name = ? ORDER BY seq`, table)
	if err != nil {
		return nil, fmt.Errorf("[SQLite] read %s: %w", table, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("[SQLite] scan row: %w", err)
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("[SQLite] unmarshal row: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (b *SQLiteBackend) Trim(ctx context.Context, table string, maxRows int) error {
	if maxRows <= 0 {
		return nil
	}

	query := `
	DELETE FROM table_rows
	WHERE table_name = ? AND seq NOT IN (
		SELECT seq FROM table_rows WHERE table_name = ? ORDER BY seq DESC LIMIT ?
	)
	`
	res, err := b.conn.ExecContext(ctx, query, table, table, maxRows)
	if err != nil {
		return fmt.Errorf("[SQLite] trim %s: %w", table, err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		slog.Info("[SQLite] Trimmed table",
			slog.String("table", table),
			slog.Int64("deleted", n))
	}
	return nil
}
