package drift

import (
	"context"
	"fmt"
	"strconv"
)

type conversationResponse struct {
	Data struct {
		ID               int64   `json:"id"`
		ContactID        int64   `json:"contactId"`
		Status           string  `json:"status"`
		CreatedAt        int64   `json:"createdAt"`
		UpdatedAt        int64   `json:"updatedAt"`
		Participants     []int64 `json:"participants"`
		ConversationTags []Tag   `json:"conversationTags"`
	} `json:"data"`
}

// GetConversation fetches a conversation's detail record. A nil error
// guarantees status, timestamps and contact id are populated.
func (c *Client) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get("/conversations/{id}")
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}
	var out conversationResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}

	d := out.Data
	switch {
	case d.Status == "":
		return nil, fmt.Errorf("get conversation %d: missing status", id)
	case d.CreatedAt == 0 || d.UpdatedAt == 0:
		return nil, fmt.Errorf("get conversation %d: missing timestamps", id)
	case d.ContactID == 0:
		return nil, fmt.Errorf("get conversation %d: missing contact id", id)
	}

	convID := d.ID
	if convID == 0 {
		convID = id
	}
	return &Conversation{
		ID:           convID,
		ContactID:    d.ContactID,
		Status:       d.Status,
		CreatedAt:    fromMillis(d.CreatedAt),
		UpdatedAt:    fromMillis(d.UpdatedAt),
		Participants: d.Participants,
		Tags:         d.ConversationTags,
	}, nil
}

// GetTranscript returns the formatted plain-text transcript of a conversation.
func (c *Client) GetTranscript(ctx context.Context, id int64) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		SetPathParam("id", strconv.FormatInt(id, 10)).
		Get("/conversations/{id}/transcript")
	if err != nil {
		return "", fmt.Errorf("get transcript %d: %w", id, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("get transcript %d: %w", id, &APIError{StatusCode: resp.StatusCode(), Body: resp.String()})
	}
	return string(resp.Body()), nil
}

type messagesResponse struct {
	Data struct {
		Messages []struct {
			ID             string `json:"id"`
			ConversationID int64  `json:"conversationId"`
			Body           string `json:"body"`
			Type           string `json:"type"`
			Author         Author `json:"author"`
			CreatedAt      int64  `json:"createdAt"`
		} `json:"messages"`
	} `json:"data"`
	Pagination pagination `json:"pagination"`
}

// ListMessages returns every message of a conversation, oldest page first.
func (c *Client) ListMessages(ctx context.Context, id int64) ([]Message, error) {
	var msgs []Message
	next := ""
	seen := make(map[string]bool)
	for {
		req := c.http.R().
			SetContext(ctx).
			SetPathParam("id", strconv.FormatInt(id, 10))
		if next != "" {
			req.SetQueryParam("next", next)
		}
		resp, err := req.Get("/conversations/{id}/messages")
		if err != nil {
			return nil, fmt.Errorf("list messages %d: %w", id, err)
		}
		var out messagesResponse
		if err := decode(resp, &out); err != nil {
			return nil, fmt.Errorf("list messages %d: %w", id, err)
		}

		for _, m := range out.Data.Messages {
			msgs = append(msgs, Message{
				ID:             m.ID,
				ConversationID: m.ConversationID,
				Body:           m.Body,
				Type:           m.Type,
				Author:         m.Author,
				CreatedAt:      fromMillis(m.CreatedAt),
			})
		}

		if !out.Pagination.More || out.Pagination.Next == "" || seen[out.Pagination.Next] {
			return msgs, nil
		}
		seen[out.Pagination.Next] = true
		next = out.Pagination.Next
	}
}

type contactResponse struct {
	Data struct {
		ID         int64      `json:"id"`
		Attributes Attributes `json:"attributes"`
	} `json:"data"`
}

// GetContactAttributes returns the attribute map of a contact. A contact
// without attributes yields an empty, non-nil map.
func (c *Client) GetContactAttributes(ctx context.Context, contactID int64) (Attributes, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(contactID, 10)).
		Get("/contacts/{id}")
	if err != nil {
		return nil, fmt.Errorf("get contact %d: %w", contactID, err)
	}
	var out contactResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("get contact %d: %w", contactID, err)
	}
	if out.Data.Attributes == nil {
		return Attributes{}, nil
	}
	return out.Data.Attributes, nil
}
