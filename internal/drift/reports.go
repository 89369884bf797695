package drift

import (
	"context"
	"fmt"
	"time"
)

const reportPageSize = 100

type reportFilter struct {
	Property  string  `json:"property"`
	Operation string  `json:"operation"`
	Values    []int64 `json:"values"`
}

type reportRequest struct {
	Filters []reportFilter `json:"filters"`
	Metrics []string       `json:"metrics"`
	Limit   int            `json:"limit"`
	Next    string         `json:"next,omitempty"`
}

type reportRow struct {
	ConversationID int64     `json:"conversationId"`
	Metrics        []float64 `json:"metrics"`
}

type reportResponse struct {
	Data       []reportRow `json:"data"`
	Pagination pagination  `json:"pagination"`
}

// ListConversations collects every conversation updated between start and
// end from the conversation report, following pagination to the last page.
// Failures are reported through the result, never as a panic or error return.
func (c *Client) ListConversations(ctx context.Context, start, end time.Time) ListResult {
	summaries, err := c.listConversations(ctx, start, end)
	if err != nil {
		return ListResult{Outcome: ListFailed, Err: err}
	}
	if len(summaries) == 0 {
		return ListResult{Outcome: ListEmpty}
	}
	return ListResult{Outcome: ListFound, Summaries: summaries}
}

func (c *Client) listConversations(ctx context.Context, start, end time.Time) ([]ConversationSummary, error) {
	req := reportRequest{
		Filters: []reportFilter{{
			Property:  "updatedAt",
			Operation: "BETWEEN",
			Values:    []int64{start.UnixMilli(), end.UnixMilli()},
		}},
		Metrics: reportMetrics,
		Limit:   reportPageSize,
	}

	var summaries []ConversationSummary
	seen := make(map[string]bool)
	for page := 1; ; page++ {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post("/reports/conversations")
		if err != nil {
			return nil, fmt.Errorf("report page %d: %w", page, err)
		}
		var out reportResponse
		if err := decode(resp, &out); err != nil {
			return nil, fmt.Errorf("report page %d: %w", page, err)
		}

		for _, row := range out.Data {
			m, err := ParseMetrics(row.Metrics)
			if err != nil {
				return nil, fmt.Errorf("conversation %d: %w", row.ConversationID, err)
			}
			summaries = append(summaries, ConversationSummary{ID: row.ConversationID, Metrics: m})
		}

		c.logger.Debug("report page fetched", "page", page, "rows", len(out.Data), "more", out.Pagination.More)

		if !out.Pagination.More || out.Pagination.Next == "" {
			return summaries, nil
		}
		if seen[out.Pagination.Next] {
			return nil, fmt.Errorf("report page %d: cursor %q repeated", page, out.Pagination.Next)
		}
		seen[out.Pagination.Next] = true
		req.Next = out.Pagination.Next
	}
}
