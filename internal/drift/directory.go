package drift

import (
	"context"
	"fmt"
	"strconv"
)

// Directory is the org roster keyed by agent id.
type Directory map[int64]Agent

// NewDirectory indexes a list of agents by id.
func NewDirectory(agents []Agent) Directory {
	d := make(Directory, len(agents))
	for _, a := range agents {
		d[a.ID] = a
	}
	return d
}

// Name returns the display name for an agent id, falling back to the alias
// and then to the id itself for agents missing from the roster.
func (d Directory) Name(id int64) string {
	a, ok := d[id]
	switch {
	case ok && a.Name != "":
		return a.Name
	case ok && a.Alias != "":
		return a.Alias
	}
	return strconv.FormatInt(id, 10)
}

type usersResponse struct {
	Data []Agent `json:"data"`
}

// ListAgents fetches every user in the org.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/users/list")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var out usersResponse
	if err := decode(resp, &out); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out.Data, nil
}

// LoadDirectory fetches the roster and indexes it.
func (c *Client) LoadDirectory(ctx context.Context) (Directory, error) {
	agents, err := c.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("agent directory loaded", "agents", len(agents))
	return NewDirectory(agents), nil
}
