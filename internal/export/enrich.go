package export

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/MikeSquared-Agency/driftexport/internal/drift"
)

const (
	companyAttribute = "employment_name"
	missingCompany   = "null"
)

// companyName reads the contact's employer, or "null" when it is unknown.
func companyName(attrs drift.Attributes) string {
	if name, ok := attrs.String(companyAttribute); ok {
		return name
	}
	return missingCompany
}

// resolveParticipants names the agents on a conversation in the order the
// API listed them. The first participant is the assignee.
func resolveParticipants(conv *drift.Conversation, dir drift.Directory) (assigneeID string, names []string) {
	if len(conv.Participants) == 0 {
		return "", nil
	}
	names = make([]string, 0, len(conv.Participants))
	for _, id := range conv.Participants {
		names = append(names, dir.Name(id))
	}
	return strconv.FormatInt(conv.Participants[0], 10), names
}

// buildComments collects the private notes of a conversation as a JSON array.
func buildComments(msgs []drift.Message, dir drift.Directory) (string, error) {
	comments := []Comment{}
	for _, m := range msgs {
		if m.Type != drift.MessagePrivateNote {
			continue
		}
		comments = append(comments, Comment{
			Author:    dir.Name(m.Author.ID),
			Body:      m.Body,
			CreatedAt: FormatTimestamp(m.CreatedAt),
		})
	}
	data, err := json.Marshal(comments)
	if err != nil {
		return "", fmt.Errorf("marshal comments: %w", err)
	}
	return string(data), nil
}
