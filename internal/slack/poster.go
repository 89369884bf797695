package slack

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	slackgo "github.com/slack-go/slack"
)

const defaultAPIURL = "https://slack.com/api/"

// Poster sends export run summaries to a Slack channel.
type Poster struct {
	api     *slackgo.Client
	channel string
	logger  *slog.Logger
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return newPoster(token, channel, defaultAPIURL, logger)
}

func newPoster(token, channel, apiURL string, logger *slog.Logger) *Poster {
	api := slackgo.New(token,
		slackgo.OptionHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		slackgo.OptionAPIURL(strings.TrimRight(apiURL, "/")+"/"),
	)
	return &Poster{api: api, channel: channel, logger: logger}
}

// Post sends text to the channel as a new message.
func (p *Poster) Post(ctx context.Context, text string) error {
	_, ts, err := p.api.PostMessageContext(ctx, p.channel, slackgo.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}

	p.logger.Info("posted export summary to slack", "ts", ts)
	return nil
}
