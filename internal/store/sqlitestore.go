package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/google/uuid"
)

// SQLiteStore keeps documents in the records table. Writes are held in
// memory until Commit applies them in one transaction.
type SQLiteStore struct {
	db     *sql.DB
	staged map[string][]byte
}

func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, staged: make(map[string][]byte)}
}

// Refresh is a no-op; the database is always current.
func (s *SQLiteStore) Refresh(ctx context.Context) error {
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		set[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for key := range s.staged {
		set[key] = true
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *SQLiteStore) Read(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.staged[key]; ok {
		return append([]byte(nil), data...), nil
	}

	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return body, nil
}

func (s *SQLiteStore) Write(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.staged[key] = append([]byte(nil), data...)
	return nil
}

// Commit upserts the staged documents and logs the commit in one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, message string) (bool, error) {
	if len(s.staged) == 0 {
		return false, nil
	}
	keys := make([]string, 0, len(s.staged))
	for key := range s.staged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, key := range keys {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (key, body, revision, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT(key) DO UPDATE SET body = excluded.body, revision = records.revision + 1, updated_at = excluded.updated_at`,
			key, s.staged[key], now)
		if err != nil {
			return false, fmt.Errorf("failed to write %s: %w", key, err)
		}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO commits (id, message, keys, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), message, strings.Join(keys, ","), now)
	if err != nil {
		return false, fmt.Errorf("failed to record commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.staged = make(map[string][]byte)
	return true, nil
}

// Revision returns how many times key has been committed.
func (s *SQLiteStore) Revision(ctx context.Context, key string) (int, error) {
	var revision int
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM records WHERE key = ?`, key).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("document %s: %w", key, models.ErrNotFound)
	}
	return revision, err
}

// CommitMessages lists commit messages, oldest first.
func (s *SQLiteStore) CommitMessages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT message FROM commits ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var message string
		if err := rows.Scan(&message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
