// Package transcript keeps a local SQLite log of the messages exchanged in
// each conversation.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleSpeaker Role = "speaker"
)

type Entry struct {
	ID             int64
	ConversationID string
	Role           Role
	SpeakerID      string
	Text           string
	Interrupted    bool
	CreatedAt      time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS transcript_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	speaker_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	interrupted INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS transcript_entries_conversation
	ON transcript_entries (conversation_id, id);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for transcript entries.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path. ":memory:" opens a
// private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps in-memory databases shared and serialises writes.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append stores entry and returns its id. A zero CreatedAt is set to now.
func (s *Store) Append(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.ConversationID) == "" {
		return 0, fmt.Errorf("conversation id is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO transcript_entries (conversation_id, role, speaker_id, text, interrupted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ConversationID, string(entry.Role), entry.SpeakerID, entry.Text, entry.Interrupted, toMillis(entry.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transcript entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transcript entry id: %w", err)
	}
	return id, nil
}

// List returns the last limit entries of a conversation, oldest first. A
// limit of zero or less returns every entry.
func (s *Store) List(ctx context.Context, conversationID string, limit int) ([]Entry, error) {
	query := `SELECT id, conversation_id, role, speaker_id, text, interrupted, created_at
		FROM transcript_entries WHERE conversation_id = ? ORDER BY id DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transcript entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			role      string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.ConversationID, &role, &entry.SpeakerID, &entry.Text, &entry.Interrupted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcript entry: %w", err)
		}
		entry.Role = Role(role)
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript entries: %w", err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
