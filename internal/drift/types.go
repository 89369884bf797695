package drift

import (
	"fmt"
	"time"
)

// reportMetrics is the metric list requested from the conversation report.
// The order fixes the layout of every row's metrics vector.
var reportMetrics = []string{
	"nps",
	"csat",
	"time_to_close",
	"first_response_time",
	"agent_messages",
	"bot_messages",
	"end_user_messages",
}

// Metrics are the per-conversation figures returned by the report endpoint.
type Metrics struct {
	NPS               float64
	CSAT              float64
	TimeToClose       float64
	FirstResponseTime float64
	AgentMessages     int
	BotMessages       int
	EndUserMessages   int
}

// ParseMetrics maps a report row's positional metrics vector onto Metrics.
func ParseMetrics(vec []float64) (Metrics, error) {
	if len(vec) < len(reportMetrics) {
		return Metrics{}, fmt.Errorf("metrics vector has %d values, want %d", len(vec), len(reportMetrics))
	}
	return Metrics{
		NPS:               vec[0],
		CSAT:              vec[1],
		TimeToClose:       vec[2],
		FirstResponseTime: vec[3],
		AgentMessages:     int(vec[4]),
		BotMessages:       int(vec[5]),
		EndUserMessages:   int(vec[6]),
	}, nil
}

// ConversationSummary is one row of the conversation report.
type ConversationSummary struct {
	ID      int64
	Metrics Metrics
}

// ListOutcome tags the result of a conversation listing.
type ListOutcome int

const (
	ListFound ListOutcome = iota
	ListEmpty
	ListFailed
)

func (o ListOutcome) String() string {
	switch o {
	case ListFound:
		return "found"
	case ListEmpty:
		return "empty"
	case ListFailed:
		return "failed"
	}
	return fmt.Sprintf("ListOutcome(%d)", int(o))
}

// ListResult is what a listing produced. Summaries is non-empty only for
// ListFound and Err is set only for ListFailed.
type ListResult struct {
	Outcome   ListOutcome
	Summaries []ConversationSummary
	Err       error
}

// Tag is a label attached to a conversation.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Conversation is the detail record of a single conversation.
type Conversation struct {
	ID           int64
	ContactID    int64
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Participants []int64 // agent ids, in the order the API returns them
	Tags         []Tag
}

// Agent is a member of the org roster.
type Agent struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
	Email string `json:"email"`
	Bot   bool   `json:"bot"`
}

// Attributes are a contact's custom and standard attributes.
type Attributes map[string]any

// String returns the attribute as a string when it is present and non-empty.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if ok {
		return s, s != ""
	}
	return fmt.Sprint(v), true
}

// Message types used by the messages endpoint.
const (
	MessageChat        = "chat"
	MessagePrivateNote = "private_note"
)

// Author identifies who sent a message.
type Author struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "user" for agents, "contact" for end users
	Bot  bool   `json:"bot"`
}

// Message is a single message in a conversation.
type Message struct {
	ID             string
	ConversationID int64
	Body           string
	Type           string
	Author         Author
	CreatedAt      time.Time
}
