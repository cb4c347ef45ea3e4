package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/fabric-mcp/internal/apperr"
	"github.com/starford/fabric-mcp/internal/checksum"
)

const documentsSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	content    BLOB NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite implements Provider on a single-table SQLite database.
type SQLite struct {
	conn *sql.DB
}

var (
	_ Provider    = (*SQLite)(nil)
	_ Checksummer = (*SQLite)(nil)
)

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(documentsSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Exists reports whether a row is stored under key.
func (s *SQLite) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Read returns the document content stored under key.
func (s *SQLite) Read(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, `SELECT content FROM documents WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: read %s: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Write upserts the document under key.
func (s *SQLite) Write(ctx context.Context, key string, content []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO documents (key, content, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, key, content, checksum.Sum(content), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

// Checksum returns the stored checksum for key, or "" when absent.
func (s *SQLite) Checksum(ctx context.Context, key string) (string, error) {
	var cs string
	err := s.conn.QueryRowContext(ctx, `SELECT checksum FROM documents WHERE key = ?`, key).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: checksum %s: %w", key, err)
	}
	return cs, nil
}
