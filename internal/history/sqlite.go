package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const createHistorySQL = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	created_at TEXT NOT NULL,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_kind_created ON history(kind, created_at DESC, id DESC);`

// SQLiteStore implements Store in a local SQLite file. Pages are read with
// keyset pagination on (created_at, id).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath. Use
// ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "history.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createHistorySQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history(id, kind, created_at, data) VALUES(?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.CreatedAt, string(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) (Page, error) {
	after, err := decodeCursor(q.Cursor, "createdAt", "id")
	if err != nil {
		return Page{}, err
	}

	// one extra row tells whether another page exists
	var rows *sql.Rows
	if after == nil {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, kind, created_at, data FROM history
			WHERE kind = ?
			ORDER BY created_at DESC, id DESC LIMIT ?`,
			string(q.Kind), q.Limit+1)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, kind, created_at, data FROM history
			WHERE kind = ? AND (created_at < ? OR (created_at = ? AND id < ?))
			ORDER BY created_at DESC, id DESC LIMIT ?`,
			string(q.Kind), after["createdAt"], after["createdAt"], after["id"], q.Limit+1)
	}
	if err != nil {
		return Page{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	page := Page{Items: []Record{}}
	for rows.Next() {
		var rec Record
		var kind, data string
		if err := rows.Scan(&rec.ID, &kind, &rec.CreatedAt, &data); err != nil {
			return Page{}, fmt.Errorf("scan row: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Payload = []byte(data)
		page.Items = append(page.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("iterate rows: %w", err)
	}

	if len(page.Items) > q.Limit {
		page.Items = page.Items[:q.Limit]
		last := page.Items[len(page.Items)-1]
		page.NextCursor = encodeCursor(map[string]string{"createdAt": last.CreatedAt, "id": last.ID})
	}
	return page, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
