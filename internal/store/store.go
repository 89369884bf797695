package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/driftexport/internal/export"
)

// ErrNotFound is returned by Get for an id that was never exported.
var ErrNotFound = errors.New("conversation not found")

// Store is the conversations table, whichever engine backs it.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Exists(ctx context.Context, id int64) (bool, error)
	Insert(ctx context.Context, c *export.Conversation) error
	Get(ctx context.Context, id int64) (*export.Conversation, error)
	List(ctx context.Context, limit int) ([]export.Conversation, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open connects to the configured engine and makes sure the table exists.
func Open(ctx context.Context, driver, sqlitePath, databaseURL string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = NewSQLite(ctx, sqlitePath)
	case "postgres":
		s, err = NewPostgres(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

const columns = `convo_id, assignee_id, link_to_full_conversation, company_name, updatedat_date,
	createdat_date, status, participant, total_messages, num_agent_messages, num_bot_messages,
	num_end_user_messages, comments, transcription, tags`

func insertArgs(c *export.Conversation) []any {
	return []any{
		c.ConvoID, c.AssigneeID, c.Link, c.CompanyName, c.UpdatedAt,
		c.CreatedAt, c.Status, c.Participants, c.TotalMessages, c.AgentMessages, c.BotMessages,
		c.EndUserMessages, c.Comments, c.Transcription, c.Tags,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*export.Conversation, error) {
	var c export.Conversation
	err := row.Scan(
		&c.ConvoID, &c.AssigneeID, &c.Link, &c.CompanyName, &c.UpdatedAt,
		&c.CreatedAt, &c.Status, &c.Participants, &c.TotalMessages, &c.AgentMessages, &c.BotMessages,
		&c.EndUserMessages, &c.Comments, &c.Transcription, &c.Tags,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
