package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS pdf_history (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	file_content TEXT NOT NULL,
	uploaded_at INTEGER NOT NULL,
	UNIQUE (user_id, file_name)
);
CREATE INDEX IF NOT EXISTS idx_pdf_history_user_uploaded ON pdf_history (user_id, uploaded_at DESC);
`

// SQLiteStore persists records in a SQLite database via modernc.org/sqlite
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and migrates) the database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("recordstore: mkdir: %w", err)
		}
	}

	// pragmas in the DSN apply to every pooled connection, not just the first
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("recordstore: open: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("recordstore: migrate: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("recordstore: ping: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Exists reports whether the user already has a record with this file name
func (s *SQLiteStore) Exists(ctx context.Context, userID, fileName string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM pdf_history WHERE user_id = ? AND file_name = ? LIMIT 1`,
		userID, fileName,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recordstore: exists: %w", err)
	}
	return true, nil
}

// Insert stores rec; the UNIQUE constraint makes the duplicate check atomic
func (s *SQLiteStore) Insert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pdf_history (id, user_id, file_name, file_content, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.FileName, rec.Text, rec.UploadedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrDuplicate
		}
		return fmt.Errorf("recordstore: insert: %w", err)
	}
	return nil
}

// List returns the user's records, newest first
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, file_name, file_content, uploaded_at FROM pdf_history
		 WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("recordstore: list: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("recordstore: list: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recordstore: list: %w", err)
	}
	return records, nil
}

// Get returns the user's record with id
func (s *SQLiteStore) Get(ctx context.Context, userID, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, file_name, file_content, uploaded_at FROM pdf_history
		 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("recordstore: get: %w", err)
	}
	return rec, nil
}

// Delete removes the user's record with id
func (s *SQLiteStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pdf_history WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("recordstore: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recordstore: delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var uploadedAt int64
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.Text, &uploadedAt); err != nil {
		return nil, err
	}
	rec.UploadedAt = time.Unix(0, uploadedAt).UTC()
	return &rec, nil
}
