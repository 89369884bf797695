package export_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/driftexport/internal/drift"
	"github.com/MikeSquared-Agency/driftexport/internal/export"
	"github.com/MikeSquared-Agency/driftexport/internal/store"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAPI struct {
	mu sync.Mutex

	list          drift.ListResult
	convos        map[int64]*drift.Conversation
	transcripts   map[int64]string
	transcriptErr map[int64]error
	attrs         map[int64]drift.Attributes
	messages      map[int64][]drift.Message
	agents        []drift.Agent
	directoryErr  error

	listCalls       int
	directoryCalls  int
	convoCalls      map[int64]int
	transcriptCalls map[int64]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		convos:          make(map[int64]*drift.Conversation),
		transcripts:     make(map[int64]string),
		transcriptErr:   make(map[int64]error),
		attrs:           make(map[int64]drift.Attributes),
		messages:        make(map[int64][]drift.Message),
		convoCalls:      make(map[int64]int),
		transcriptCalls: make(map[int64]int),
	}
}

// addConversation registers a fetchable conversation and its report row.
func (f *fakeAPI) addConversation(id int64, agent, bot, endUser int, tags ...string) {
	var ts []drift.Tag
	for _, name := range tags {
		ts = append(ts, drift.Tag{Name: name})
	}
	f.convos[id] = &drift.Conversation{
		ID:           id,
		ContactID:    id * 10,
		Status:       "closed",
		CreatedAt:    time.Date(2024, 1, 1, 9, 0, 0, 123_000_000, time.UTC),
		UpdatedAt:    time.Date(2024, 1, 1, 10, 0, 0, 456_000_000, time.UTC),
		Participants: []int64{11, 12},
		Tags:         ts,
	}
	f.transcripts[id] = fmt.Sprintf("Visitor: question %d\nAgent: answer", id)
	f.addSummary(id, agent, bot, endUser)
}

func (f *fakeAPI) addSummary(id int64, agent, bot, endUser int) {
	m, _ := drift.ParseMetrics([]float64{0, 0, 0, 0, float64(agent), float64(bot), float64(endUser)})
	f.list.Outcome = drift.ListFound
	f.list.Summaries = append(f.list.Summaries, drift.ConversationSummary{ID: id, Metrics: m})
}

func (f *fakeAPI) ListConversations(ctx context.Context, start, end time.Time) drift.ListResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list
}

func (f *fakeAPI) GetConversation(ctx context.Context, id int64) (*drift.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convoCalls[id]++
	c, ok := f.convos[id]
	if !ok {
		return nil, errors.New("drift api error 500: boom")
	}
	return c, nil
}

func (f *fakeAPI) GetTranscript(ctx context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptCalls[id]++
	if err := f.transcriptErr[id]; err != nil {
		return "", err
	}
	return f.transcripts[id], nil
}

func (f *fakeAPI) LoadDirectory(ctx context.Context) (drift.Directory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directoryCalls++
	if f.directoryErr != nil {
		return nil, f.directoryErr
	}
	return drift.NewDirectory(f.agents), nil
}

func (f *fakeAPI) GetContactAttributes(ctx context.Context, contactID int64) (drift.Attributes, error) {
	attrs, ok := f.attrs[contactID]
	if !ok {
		return drift.Attributes{}, nil
	}
	return attrs, nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, id int64) ([]drift.Message, error) {
	return f.messages[id], nil
}

func (f *fakeAPI) totalFetches() int {
	n := 0
	for _, c := range f.convoCalls {
		n += c
	}
	for _, c := range f.transcriptCalls {
		n += c
	}
	return n
}

type countingPacer struct {
	pauses int
}

func (p *countingPacer) Pause(ctx context.Context) error {
	p.pauses++
	return nil
}

type recordingPublisher struct {
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, data any) error {
	p.subjects = append(p.subjects, subject)
	return nil
}

type recordingPoster struct {
	texts []string
}

func (p *recordingPoster) Post(ctx context.Context, text string) error {
	p.texts = append(p.texts, text)
	return nil
}

// failingStore accepts existence checks but rejects every insert.
type failingStore struct {
	err     error
	inserts int
}

func (s *failingStore) Exists(ctx context.Context, id int64) (bool, error) { return false, nil }

func (s *failingStore) Insert(ctx context.Context, c *export.Conversation) error {
	s.inserts++
	return s.err
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func newRunner(api export.API, s export.Store, enrich bool) (*export.Runner, *countingPacer) {
	r := export.NewRunner(export.Config{Lookback: time.Hour, Enrich: enrich}, api, s, discardLogger())
	p := &countingPacer{}
	r.SetPacer(p)
	return r, p
}

func TestRun_InsertsEveryListedConversation(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 3, 2, 5, "billing", "vip")
	api.addConversation(2, 1, 0, 1)
	s := newStore(t)
	r, pacer := newRunner(api, s, false)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "found", report.Outcome)
	assert.Equal(t, 2, report.Listed)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, []int64{1, 2}, report.ExportedIDs)
	assert.Len(t, report.Conversations, 2)
	assert.Equal(t, 2, pacer.pauses)

	row, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10, row.TotalMessages)
	assert.Equal(t, 3, row.AgentMessages)
	assert.Equal(t, 2, row.BotMessages)
	assert.Equal(t, 5, row.EndUserMessages)
	assert.Equal(t, "billing,vip", row.Tags)
	assert.Equal(t, "https://app.drift.com/conversations/1", row.Link)
	assert.Equal(t, "2024-01-01T09:00:00Z", row.CreatedAt)
	assert.Equal(t, "2024-01-01T10:00:00Z", row.UpdatedAt)

	row, err = s.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "", row.Tags)
}

func TestRun_RowInvariants(t *testing.T) {
	api := newFakeAPI()
	for id := int64(1); id <= 5; id++ {
		api.addConversation(id, int(id), int(id*2), int(id*3))
	}
	s := newStore(t)
	r, _ := newRunner(api, s, true)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	rows, err := s.List(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for _, row := range rows {
		assert.Equal(t, row.AgentMessages+row.BotMessages+row.EndUserMessages, row.TotalMessages, "convo %d", row.ConvoID)
		assert.Regexp(t, timestampPattern, row.CreatedAt)
		assert.Regexp(t, timestampPattern, row.UpdatedAt)
	}
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.addConversation(2, 2, 2, 2)
	api.addConversation(3, 3, 3, 3)
	s := newStore(t)
	r, pacer := newRunner(api, s, true)

	first, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, first.Inserted)
	fetches := api.totalFetches()
	pauses := pacer.pauses

	second, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, fetches, api.totalFetches(), "stored ids must not be fetched again")
	assert.Equal(t, pauses, pacer.pauses, "skips must not be paced")

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_SkipsStoredIDsWithoutFetching(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.addConversation(2, 1, 1, 1)
	s := newStore(t)
	existing := &export.Conversation{ConvoID: 1, Link: "x", CreatedAt: "2023-01-01T00:00:00Z", UpdatedAt: "2023-01-01T00:00:00Z", Status: "open"}
	require.NoError(t, s.Insert(context.Background(), existing))

	r, pacer := newRunner(api, s, false)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Inserted)
	assert.Zero(t, api.convoCalls[1])
	assert.Zero(t, api.transcriptCalls[1])
	assert.Equal(t, 1, api.convoCalls[2])
	assert.Equal(t, 1, pacer.pauses)

	row, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "open", row.Status, "existing row must not be overwritten")
}

func TestRun_EmptyListingDoesNothing(t *testing.T) {
	api := newFakeAPI()
	api.list = drift.ListResult{Outcome: drift.ListEmpty}
	s := newStore(t)
	r, pacer := newRunner(api, s, true)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "empty", report.Outcome)
	assert.Zero(t, api.totalFetches())
	assert.Zero(t, api.directoryCalls)
	assert.Zero(t, pacer.pauses)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun_FailedListingEndsCleanly(t *testing.T) {
	api := newFakeAPI()
	api.list = drift.ListResult{Outcome: drift.ListFailed, Err: errors.New("drift api error 401")}
	s := newStore(t)
	r, _ := newRunner(api, s, false)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "failed", report.Outcome)
	assert.Contains(t, report.Error, "401")
	assert.Zero(t, api.totalFetches())
	assert.Zero(t, report.Inserted)
}

func TestRun_FetchFailureSkipsIDButStillPaces(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.addSummary(2, 1, 1, 1) // listed but the detail fetch fails
	api.addConversation(3, 1, 1, 1)
	s := newStore(t)
	r, pacer := newRunner(api, s, false)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, []int64{1, 3}, report.ExportedIDs)
	assert.Equal(t, 3, pacer.pauses, "the failed id is paced like any other")

	exists, err := s.Exists(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_TranscriptFailureStoresEmptyTranscription(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.transcriptErr[1] = errors.New("transcript unavailable")
	s := newStore(t)
	r, _ := newRunner(api, s, false)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.TranscriptErrors)
	row, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "", row.Transcription)
}

func TestRun_StoreFailureAbortsRun(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.addConversation(2, 1, 1, 1)
	fs := &failingStore{err: export.ErrDuplicate}
	r, pacer := newRunner(api, fs, false)

	report, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrDuplicate)
	assert.Equal(t, 1, fs.inserts)
	assert.Zero(t, api.convoCalls[2], "run must stop at the failing id")
	assert.Zero(t, pacer.pauses)
	require.NotNil(t, report)
	assert.NotEmpty(t, report.Error)
}

func TestRun_EnrichedColumns(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.addConversation(2, 1, 1, 1)
	api.convos[2].Participants = nil
	api.agents = []drift.Agent{{ID: 11, Name: "Ada Agent"}, {ID: 12, Name: "Bob Bot", Bot: true}}
	api.attrs[10] = drift.Attributes{"employment_name": "Acme"}
	api.messages[1] = []drift.Message{
		{Type: drift.MessageChat, Body: "hi", Author: drift.Author{ID: 10, Type: "contact"}},
		{Type: drift.MessagePrivateNote, Body: "vip customer", Author: drift.Author{ID: 11, Type: "user"},
			CreatedAt: time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC)},
	}
	s := newStore(t)
	r, _ := newRunner(api, s, true)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.directoryCalls, "directory is loaded once per run")

	row, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "11", row.AssigneeID)
	assert.Equal(t, "Acme", row.CompanyName)
	assert.Equal(t, "Ada Agent, Bob Bot", row.Participants)
	assert.JSONEq(t, `[{"author":"Ada Agent","body":"vip customer","created_at":"2024-01-01T09:05:00Z"}]`, row.Comments)

	row, err = s.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "", row.AssigneeID)
	assert.Equal(t, "null", row.CompanyName)
	assert.Equal(t, "", row.Participants)
	assert.Equal(t, "[]", row.Comments)
}

func TestRun_DirectoryFailureFallsBackToIDs(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.directoryErr = errors.New("users endpoint down")
	s := newStore(t)
	r, _ := newRunner(api, s, true)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	row, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "11, 12", row.Participants)
}

func TestRun_PublishesAndPostsSummary(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	api.addConversation(2, 1, 1, 1)
	s := newStore(t)
	r, _ := newRunner(api, s, false)
	pub := &recordingPublisher{}
	poster := &recordingPoster{}
	r.SetPublisher(pub)
	r.SetPoster(poster)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		export.SubjectConversationStored,
		export.SubjectConversationStored,
		export.SubjectRunCompleted,
	}, pub.subjects)
	require.Len(t, poster.texts, 1)
	assert.Contains(t, poster.texts[0], "2 inserted")
}

func TestRun_CancelledContextStopsBeforeNextID(t *testing.T) {
	api := newFakeAPI()
	api.addConversation(1, 1, 1, 1)
	s := newStore(t)
	r, _ := newRunner(api, s, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, api.totalFetches())
}

func TestConfig_Window(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	since, until := export.Config{Lookback: 2 * time.Hour}.Window(now)
	assert.Equal(t, now, until)
	assert.Equal(t, now.Add(-2*time.Hour), since)

	fixedSince := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	fixedUntil := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	since, until = export.Config{Since: fixedSince, Until: fixedUntil}.Window(now)
	assert.Equal(t, fixedSince, since)
	assert.Equal(t, fixedUntil, until)

	since, _ = export.Config{}.Window(now)
	assert.Equal(t, now.Add(-24*time.Hour), since)
}

func TestDelayPacer(t *testing.T) {
	start := time.Now()
	require.NoError(t, export.DelayPacer{Delay: 20 * time.Millisecond}.Pause(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, export.DelayPacer{Delay: time.Hour}.Pause(ctx), context.Canceled)
	assert.NoError(t, export.DelayPacer{}.Pause(context.Background()))
}

func TestScheduler_RecordsLastReport(t *testing.T) {
	api := newFakeAPI()
	api.list = drift.ListResult{Outcome: drift.ListEmpty}
	r, _ := newRunner(api, newStore(t), false)
	sched := export.NewScheduler(r, time.Hour, discardLogger())
	assert.Nil(t, sched.LastReport())

	// A cancelled context still gets the first run, then Start returns.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sched.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	last := sched.LastReport()
	require.NotNil(t, last)
	assert.Equal(t, "empty", last.Outcome)
	assert.Equal(t, 1, api.listCalls)
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		api := newFakeAPI()
		api.list = drift.ListResult{Outcome: drift.ListEmpty}
		r, _ := newRunner(api, newStore(t), false)
		sched := export.NewScheduler(r, interval, discardLogger())

		err := sched.Start(context.Background())
		assert.Error(t, err, "interval %s", interval)
		assert.Equal(t, 0, api.listCalls)
		assert.Nil(t, sched.LastReport())
	}
}
