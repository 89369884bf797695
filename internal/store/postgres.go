package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MikeSquared-Agency/driftexport/internal/export"
)

const pgUniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	convo_id BIGINT NOT NULL,
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
	CONSTRAINT conversations_convo_id_key UNIQUE (convo_id)
)`

// PostgresStore keeps conversations in Postgres over a single connection
// held for the lifetime of the process. A pgx.Conn is not safe for
// concurrent use, so every statement holds mu.
type PostgresStore struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{conn: conn}, nil
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.Close(context.Background())
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists bool
	err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE convo_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check conversation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c *export.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(ctx, `
		INSERT INTO conversations (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		insertArgs(c)...,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("insert conversation %d: %w", c.ConvoID, export.ErrDuplicate)
		}
		return fmt.Errorf("insert conversation %d: %w", c.ConvoID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*export.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.conn.QueryRow(ctx, `SELECT `+columns+` FROM conversations WHERE convo_id = $1`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]export.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT `+columns+` FROM conversations
		ORDER BY createdat_date DESC, convo_id DESC
		LIMIT $1`, limit)
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

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM conversations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return n, nil
}
