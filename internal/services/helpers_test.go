package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/queue"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/sessionlock"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(topic string, payload any) (websocket.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, payload: payload})
	return websocket.PublishResult{Delivered: 1}, nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func (p *recordingPublisher) on(topic string) []any {
	var out []any
	for _, e := range p.all() {
		if e.topic == topic {
			out = append(out, e.payload)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubWriter struct {
	mu    sync.Mutex
	calls []string
}

func (w *stubWriter) GenerateReport(_ context.Context, transcript string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, transcript)
	return "report for " + transcript
}

type stubEvaluator struct {
	mu    sync.Mutex
	calls []string
}

func (e *stubEvaluator) EvaluateArgument(_ context.Context, motion, argument string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, motion+"|"+argument)
	return "feedback on " + argument
}

func (e *stubEvaluator) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type recordingProducer struct {
	mu   sync.Mutex
	msgs []queue.TranscriptMessage
	err  error
}

func (p *recordingProducer) Enqueue(_ context.Context, msg queue.TranscriptMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingProducer) all() []queue.TranscriptMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.TranscriptMessage(nil), p.msgs...)
}

type fixture struct {
	clock          *fakeClock
	sessions       repositories.SessionStore
	transcriptions *repositories.MemoryTranscriptionStore
	reportStore    *repositories.MemoryReportStore
	auditStore     *repositories.MemoryAuditLogStore
	users          *repositories.MemoryUserStore
	pub            *recordingPublisher
	writer         *stubWriter
	producer       *recordingProducer
	evaluator      *stubEvaluator

	admission   *AdmissionService
	reports     *ReportService
	transcripts *TranscriptService
	feedback    *FeedbackWorker
	audit       *AuditService
	admin       *AdminService
	sweeper     *ExpirySweeper
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, repositories.NewMemorySessionStore())
}

func newFixtureWithStore(t *testing.T, sessions repositories.SessionStore) *fixture {
	t.Helper()

	f := &fixture{
		clock:          &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		sessions:       sessions,
		transcriptions: repositories.NewMemoryTranscriptionStore(),
		reportStore:    repositories.NewMemoryReportStore(),
		auditStore:     repositories.NewMemoryAuditLogStore(),
		users: repositories.NewMemoryUserStore(
			models.User{Email: "host@example.com", Role: models.RoleUser},
			models.User{Email: "admin@example.com", Role: models.RoleAdmin},
			models.User{Email: "alice@example.com", Role: models.RoleUser},
		),
		pub:       &recordingPublisher{},
		writer:    &stubWriter{},
		producer:  &recordingProducer{},
		evaluator: &stubEvaluator{},
	}

	opts := []Option{WithClock(f.clock.Now), WithDispatcher(Inline)}
	f.reports = NewReportService(f.sessions, f.transcriptions, f.reportStore, f.writer, opts...)
	f.admission = NewAdmissionService(f.sessions, f.transcriptions, f.users, sessionlock.NewManager(), f.pub, f.reports, opts...)
	f.transcripts = NewTranscriptService(f.transcriptions, f.producer, f.pub, opts...)
	f.feedback = NewFeedbackWorker(queue.NewMemory(1, zerolog.Nop()), f.evaluator, f.pub, opts...)
	f.audit = NewAuditService(f.auditStore, opts...)
	f.admin = NewAdminService(f.admission, f.audit, f.users, opts...)
	f.sweeper = NewExpirySweeper(f.admission, time.Minute, opts...)
	return f
}

var (
	hostIdentity  = models.Identity{Email: "host@example.com", Name: "Host", Role: models.RoleUser}
	adminIdentity = models.Identity{Email: "admin@example.com", Name: "Admin", Role: models.RoleAdmin}
	userIdentity  = models.Identity{Email: "alice@example.com", Name: "Alice", Role: models.RoleUser}
)

func intPtr(v int) *int { return &v }

func (f *fixture) create(t *testing.T, mutate func(*SessionSpec)) *models.Session {
	t.Helper()
	spec := SessionSpec{Topic: "Remote work is here to stay", HostEmail: hostIdentity.Email}
	if mutate != nil {
		mutate(&spec)
	}
	session, err := f.admission.CreateSession(context.Background(), spec)
	require.NoError(t, err)
	return session
}

func (f *fixture) createLive(t *testing.T, mutate func(*SessionSpec)) *models.Session {
	t.Helper()
	session := f.create(t, mutate)
	live, err := f.admission.StartSession(context.Background(), session.ID)
	require.NoError(t, err)
	return live
}

func (f *fixture) join(t *testing.T, id uuid.UUID, email string) *models.Session {
	t.Helper()
	session, err := f.admission.JoinSession(context.Background(), id, models.Participant{Name: email, Email: email})
	require.NoError(t, err)
	return session
}

func (f *fixture) transcribe(t *testing.T, id uuid.UUID, speaker, text string) {
	t.Helper()
	f.clock.Advance(time.Second)
	require.NoError(t, f.transcriptions.Insert(context.Background(), &models.Transcription{
		ID:        uuid.New(),
		SessionID: id,
		SpeakerID: speaker,
		Text:      text,
		Timestamp: f.clock.Now(),
	}))
}

func emails(list []models.Participant) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Email)
	}
	return out
}
