package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/driftexport/internal/drift"
)

// FormatTimestamp renders t in UTC, truncated to whole seconds, with a literal Z.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// ConversationLink builds the app link for a conversation id.
func ConversationLink(base string, id int64) string {
	if base == "" {
		base = DefaultLinkBase
	}
	return base + strconv.FormatInt(id, 10)
}

// JoinTags joins tag names with commas. No tags gives an empty string.
func JoinTags(tags []drift.Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return strings.Join(names, ",")
}

// Reduce merges everything fetched for one conversation into its row.
// It performs no I/O.
func Reduce(s drift.ConversationSummary, conv *drift.Conversation, transcript string, e Enrichment, linkBase string) Conversation {
	m := s.Metrics
	return Conversation{
		ConvoID:         s.ID,
		AssigneeID:      e.AssigneeID,
		Link:            ConversationLink(linkBase, s.ID),
		CompanyName:     e.CompanyName,
		UpdatedAt:       FormatTimestamp(conv.UpdatedAt),
		CreatedAt:       FormatTimestamp(conv.CreatedAt),
		Status:          conv.Status,
		Participants:    strings.Join(e.Participants, ", "),
		TotalMessages:   m.AgentMessages + m.BotMessages + m.EndUserMessages,
		AgentMessages:   m.AgentMessages,
		BotMessages:     m.BotMessages,
		EndUserMessages: m.EndUserMessages,
		Comments:        e.Comments,
		Transcription:   transcript,
		Tags:            JoinTags(conv.Tags),
	}
}
