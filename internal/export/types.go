package export

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicate is returned by a Store when a conversation id is already stored.
var ErrDuplicate = errors.New("conversation already exported")

// TimestampLayout is the format of the exported created/updated dates.
const TimestampLayout = "2006-01-02T15:04:05Z"

// DefaultLinkBase prefixes a conversation id to build its app link.
const DefaultLinkBase = "https://app.drift.com/conversations/"

// Conversation is one exported row of the conversations table.
type Conversation struct {
	ConvoID         int64  `json:"convo_id"`
	AssigneeID      string `json:"assignee_id"`
	Link            string `json:"link_to_full_conversation"`
	CompanyName     string `json:"company_name"`
	UpdatedAt       string `json:"updatedat_date"`
	CreatedAt       string `json:"createdat_date"`
	Status          string `json:"status"`
	Participants    string `json:"participant"`
	TotalMessages   int    `json:"total_messages"`
	AgentMessages   int    `json:"num_agent_messages"`
	BotMessages     int    `json:"num_bot_messages"`
	EndUserMessages int    `json:"num_end_user_messages"`
	Comments        string `json:"comments"`
	Transcription   string `json:"transcription"`
	Tags            string `json:"tags"`
}

// Enrichment holds the values resolved from lookups beyond the conversation
// detail. The zero value is what a run without enrichment persists.
type Enrichment struct {
	AssigneeID   string
	CompanyName  string
	Participants []string
	Comments     string
}

// Comment is an internal note left on a conversation by an agent.
type Comment struct {
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// RunReport summarizes one export run.
type RunReport struct {
	RunID            uuid.UUID      `json:"run_id"`
	Outcome          string         `json:"outcome"`
	Error            string         `json:"error,omitempty"`
	Since            time.Time      `json:"since"`
	Until            time.Time      `json:"until"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	ElapsedSeconds   float64        `json:"elapsed_seconds"`
	Listed           int            `json:"listed"`
	Skipped          int            `json:"skipped"`
	Failed           int            `json:"failed"`
	TranscriptErrors int            `json:"transcript_errors"`
	Inserted         int            `json:"inserted"`
	ExportedIDs      []int64        `json:"exported_ids"`
	Conversations    []Conversation `json:"-"`
}

// StoredEvent is published for every inserted conversation.
type StoredEvent struct {
	RunID         uuid.UUID `json:"run_id"`
	ConvoID       int64     `json:"convo_id"`
	Status        string    `json:"status"`
	CreatedAt     string    `json:"createdat_date"`
	TotalMessages int       `json:"total_messages"`
	Tags          string    `json:"tags"`
}
