package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MikeSquared-Agency/driftexport/internal/export"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	convo_id INTEGER NOT NULL,
	assignee_id TEXT NOT NULL DEFAULT '',
	link_to_full_conversation TEXT NOT NULL,
	company_name TEXT NOT NULL DEFAULT '',
	updatedat_date TEXT NOT NULL,
	createdat_date TEXT NOT NULL,
	status TEXT NOT NULL,
	participant TEXT NOT NULL DEFAULT '',
	total_messages INTEGER NOT NULL,
	num_agent_messages INTEGER NOT NULL,
	num_bot_messages INTEGER NOT NULL,
	num_end_user_messages INTEGER NOT NULL,
	comments TEXT NOT NULL DEFAULT '',
	transcription TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	UNIQUE (convo_id)
)`

// SQLiteStore keeps conversations in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at path. Use ":memory:" for a throwaway store.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One handle for the whole run; this also keeps an in-memory db alive.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE convo_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, c *export.Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insertArgs(c)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert conversation %d: %w", c.ConvoID, export.ErrDuplicate)
		}
		return fmt.Errorf("insert conversation %d: %w", c.ConvoID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*export.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM conversations WHERE convo_id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]export.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columns+` FROM conversations
		ORDER BY createdat_date DESC, convo_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []export.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}
