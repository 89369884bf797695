package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/driftexport/internal/drift"
)

// Event subjects published when a Publisher is configured.
const (
	SubjectConversationStored = "drift.export.conversation.stored"
	SubjectRunCompleted       = "drift.export.run.completed"
)

// API is the part of the Drift client the runner depends on.
type API interface {
	ListConversations(ctx context.Context, start, end time.Time) drift.ListResult
	GetConversation(ctx context.Context, id int64) (*drift.Conversation, error)
	GetTranscript(ctx context.Context, id int64) (string, error)
	LoadDirectory(ctx context.Context) (drift.Directory, error)
	GetContactAttributes(ctx context.Context, contactID int64) (drift.Attributes, error)
	ListMessages(ctx context.Context, id int64) ([]drift.Message, error)
}

// Store is the persistent conversations table.
type Store interface {
	Exists(ctx context.Context, id int64) (bool, error)
	// Insert must fail with an error wrapping ErrDuplicate rather than
	// overwrite an existing row.
	Insert(ctx context.Context, c *Conversation) error
}

// Publisher emits export events.
type Publisher interface {
	Publish(subject string, data any) error
}

// SummaryPoster posts the run summary to a chat channel.
type SummaryPoster interface {
	Post(ctx context.Context, text string) error
}

// Config holds the export run configuration.
type Config struct {
	Since    time.Time     // zero means Until minus Lookback
	Until    time.Time     // zero means now
	Lookback time.Duration // window length when Since is zero
	Enrich   bool          // resolve assignee, company, participants and comments
	LinkBase string
}

// Window returns the time range a run started at now covers.
func (c Config) Window(now time.Time) (since, until time.Time) {
	until = c.Until
	if until.IsZero() {
		until = now
	}
	since = c.Since
	if since.IsZero() {
		lookback := c.Lookback
		if lookback <= 0 {
			lookback = 24 * time.Hour
		}
		since = until.Add(-lookback)
	}
	return since.UTC(), until.UTC()
}

// Runner orchestrates the export: list, dedup, fetch, enrich, reduce, persist.
type Runner struct {
	cfg       Config
	api       API
	store     Store
	pacer     Pacer
	publisher Publisher
	poster    SummaryPoster
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates an export runner paced with DefaultDelay.
func NewRunner(cfg Config, api API, s Store, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		api:    api,
		store:  s,
		pacer:  DelayPacer{Delay: DefaultDelay},
		logger: logger,
		now:    time.Now,
	}
}

// SetPacer replaces the pause taken after each fetched conversation.
func (r *Runner) SetPacer(p Pacer) {
	r.pacer = p
}

// SetPublisher enables export events.
func (r *Runner) SetPublisher(p Publisher) {
	r.publisher = p
}

// SetPoster enables posting the run summary.
func (r *Runner) SetPoster(p SummaryPoster) {
	r.poster = p
}

// Run executes one export. An empty or failed listing ends the run without
// an error; a store failure aborts it and is returned together with the
// partial report.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	started := r.now()
	since, until := r.cfg.Window(started)
	report := &RunReport{
		RunID:     uuid.New(),
		Since:     since,
		Until:     until,
		StartedAt: started.UTC(),
	}

	r.logger.Info("listing conversations", "run_id", report.RunID, "since", since, "until", until)
	res := r.api.ListConversations(ctx, since, until)
	report.Outcome = res.Outcome.String()

	switch res.Outcome {
	case drift.ListEmpty:
		r.logger.Info("no new conversations to add", "run_id", report.RunID)
		r.complete(report, started)
		return report, nil
	case drift.ListFailed:
		r.logger.Error("error retrieving conversations", "run_id", report.RunID, "error", res.Err)
		if res.Err != nil {
			report.Error = res.Err.Error()
		}
		r.complete(report, started)
		return report, nil
	case drift.ListFound:
	default:
		return report, fmt.Errorf("unexpected list outcome %s", res.Outcome)
	}

	report.Listed = len(res.Summaries)
	r.logger.Info("conversations listed", "run_id", report.RunID, "count", report.Listed)

	var dir drift.Directory
	if r.cfg.Enrich {
		dir = r.loadDirectory(ctx)
	}

	for _, s := range res.Summaries {
		if err := ctx.Err(); err != nil {
			r.logger.Info("export interrupted", "run_id", report.RunID, "inserted", report.Inserted)
			r.complete(report, started)
			return report, err
		}

		exists, err := r.store.Exists(ctx, s.ID)
		if err != nil {
			report.Error = err.Error()
			r.complete(report, started)
			return report, fmt.Errorf("check conversation %d: %w", s.ID, err)
		}
		if exists {
			r.logger.Info("skipping conversation already in the store", "convo_id", s.ID)
			report.Skipped++
			continue
		}

		r.logger.Info("retrieving and inserting", "convo_id", s.ID)
		if err := r.exportOne(ctx, s, dir, report); err != nil {
			report.Error = err.Error()
			r.complete(report, started)
			return report, err
		}

		if err := r.pacer.Pause(ctx); err != nil {
			r.logger.Info("export interrupted", "run_id", report.RunID, "inserted", report.Inserted)
			r.complete(report, started)
			return report, err
		}
	}

	r.complete(report, started)
	r.publish(SubjectRunCompleted, report)
	r.postSummary(ctx, report)
	return report, nil
}

// exportOne fetches, reduces and stores a single conversation. Only store
// failures are returned; fetch failures are logged and counted.
func (r *Runner) exportOne(ctx context.Context, s drift.ConversationSummary, dir drift.Directory, report *RunReport) error {
	conv, err := r.api.GetConversation(ctx, s.ID)
	if err != nil {
		r.logger.Warn("conversation fetch failed, skipping", "convo_id", s.ID, "error", err)
		report.Failed++
		return nil
	}

	transcript, err := r.api.GetTranscript(ctx, s.ID)
	if err != nil {
		r.logger.Warn("transcript fetch failed, storing without transcript", "convo_id", s.ID, "error", err)
		report.TranscriptErrors++
		transcript = ""
	}

	var enr Enrichment
	if r.cfg.Enrich {
		enr = r.enrich(ctx, conv, dir)
	}

	row := Reduce(s, conv, transcript, enr, r.cfg.LinkBase)
	if err := r.store.Insert(ctx, &row); err != nil {
		return fmt.Errorf("insert conversation %d: %w", s.ID, err)
	}

	r.logger.Info("conversation created", "convo_id", row.ConvoID, "status", row.Status, "total_messages", row.TotalMessages)
	report.Inserted++
	report.ExportedIDs = append(report.ExportedIDs, row.ConvoID)
	report.Conversations = append(report.Conversations, row)

	r.publish(SubjectConversationStored, StoredEvent{
		RunID:         report.RunID,
		ConvoID:       row.ConvoID,
		Status:        row.Status,
		CreatedAt:     row.CreatedAt,
		TotalMessages: row.TotalMessages,
		Tags:          row.Tags,
	})
	return nil
}

// enrich resolves the optional columns. Each lookup is best effort.
func (r *Runner) enrich(ctx context.Context, conv *drift.Conversation, dir drift.Directory) Enrichment {
	var e Enrichment

	attrs, err := r.api.GetContactAttributes(ctx, conv.ContactID)
	if err != nil {
		r.logger.Warn("contact lookup failed", "convo_id", conv.ID, "contact_id", conv.ContactID, "error", err)
	}
	e.CompanyName = companyName(attrs)

	e.AssigneeID, e.Participants = resolveParticipants(conv, dir)

	e.Comments = "[]"
	msgs, err := r.api.ListMessages(ctx, conv.ID)
	if err != nil {
		r.logger.Warn("message lookup failed", "convo_id", conv.ID, "error", err)
		return e
	}
	comments, err := buildComments(msgs, dir)
	if err != nil {
		r.logger.Warn("building comments failed", "convo_id", conv.ID, "error", err)
		return e
	}
	e.Comments = comments
	return e
}

func (r *Runner) loadDirectory(ctx context.Context) drift.Directory {
	dir, err := r.api.LoadDirectory(ctx)
	if err != nil {
		r.logger.Warn("agent directory unavailable, participants will be listed by id", "error", err)
		return drift.Directory{}
	}
	return dir
}

func (r *Runner) complete(report *RunReport, started time.Time) {
	finished := r.now()
	report.FinishedAt = finished.UTC()
	elapsed := finished.Sub(started)
	report.ElapsedSeconds = elapsed.Seconds()
	r.logger.Info("export complete",
		"run_id", report.RunID,
		"outcome", report.Outcome,
		"listed", report.Listed,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"elapsed", elapsed.String(),
	)
}

func (r *Runner) publish(subject string, data any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// postSummary posts the run summary, or logs it when no poster is configured.
func (r *Runner) postSummary(ctx context.Context, report *RunReport) {
	if report.Inserted == 0 && report.Failed == 0 {
		return
	}

	text := FormatRunSummary(report)

	if r.poster == nil {
		r.logger.Info("export run summary (no Slack configured)", "summary", text)
		return
	}
	if err := r.poster.Post(ctx, text); err != nil {
		r.logger.Warn("failed to post run summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}
