package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS nodes (
	key  TEXT PRIMARY KEY,
	body TEXT NOT NULL
)`

// sqliteSnapshot keeps one row per top-level node ("tasks", "contacts"),
// with the subtree stored as JSON.
type sqliteSnapshot struct {
	db *sql.DB
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func newSQLiteSnapshot(path string) (*sqliteSnapshot, error) {
	if path == "" {
		return nil, fmt.Errorf("creating sqlite snapshot: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	// One connection, so the busy timeout applies to every statement.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring snapshot database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}
	return &sqliteSnapshot{db: db}, nil
}

func (s *sqliteSnapshot) Load() (map[string]any, error) {
	return loadNodes(context.Background(), s.db)
}

// Save replaces every row.
func (s *sqliteSnapshot) Save(root map[string]any) error {
	return s.Transact(func(map[string]any) (map[string]any, error) { return root, nil })
}

// Transact runs inside a BEGIN IMMEDIATE transaction, which takes the
// database write lock before the rows are read.
func (s *sqliteSnapshot) Transact(fn func(map[string]any) (map[string]any, error)) error {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("opening snapshot connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("starting snapshot transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	current, err := loadNodes(ctx, conn)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := writeNodes(ctx, conn, next); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	committed = true
	return nil
}

func (s *sqliteSnapshot) Close() error {
	return s.db.Close()
}

func loadNodes(ctx context.Context, q querier) (map[string]any, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, body FROM nodes")
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	root := make(map[string]any)
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var v any
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, fmt.Errorf("decoding snapshot node %q: %w", key, err)
		}
		root[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return root, nil
}

func writeNodes(ctx context.Context, e execer, root map[string]any) error {
	if _, err := e.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	for key, v := range root {
		body, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding snapshot node %q: %w", key, err)
		}
		if _, err := e.ExecContext(ctx, "INSERT INTO nodes (key, body) VALUES (?, ?)", key, string(body)); err != nil {
			return fmt.Errorf("writing snapshot node %q: %w", key, err)
		}
	}
	return nil
}
