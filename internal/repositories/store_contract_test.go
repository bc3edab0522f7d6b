package repositories

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1000000))
}

func newSession(code string) *models.Session {
	return &models.Session{
		ID:           uuid.New(),
		Topic:        "Cities should ban cars",
		Code:         code,
		Status:       models.SessionStatusScheduled,
		Type:         models.SessionTypePublic,
		HostEmail:    "host@example.com",
		Participants: []models.Participant{{ID: "p1", Name: "Host", Email: "host@example.com", IsHost: true}},
		WaitingList:  []models.Participant{},
	}
}

func testSessionStore(t *testing.T, store SessionStore) {
	ctx := context.Background()
	code := randomCode()

	first := newSession(code)
	require.NoError(t, store.Create(ctx, first))
	assert.False(t, first.CreatedAt.IsZero())

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Topic, got.Topic)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "host@example.com", got.Participants[0].Email)

	assert.ErrorIs(t, store.Create(ctx, newSession(code)), ErrDuplicateCode)

	got.Status = models.SessionStatusCompleted
	got.Transcript = []string{"host: done"}
	require.NoError(t, store.Update(ctx, got))

	time.Sleep(5 * time.Millisecond)
	second := newSession(code)
	require.NoError(t, store.Create(ctx, second))

	active, err := store.GetActiveByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	latest, err := store.GetByCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	completed, err := store.ListByStatus(ctx, models.SessionStatusCompleted)
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, s := range completed {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, first.ID)
	assert.NotContains(t, ids, second.ID)

	reloaded, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"host: done"}, reloaded.Transcript)

	assert.ErrorIs(t, store.Update(ctx, newSession(randomCode())), ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, uuid.New()), ErrNotFound)

	require.NoError(t, store.Delete(ctx, first.ID))
	_, err = store.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testTranscriptionStore(t *testing.T, store TranscriptionStore) {
	ctx := context.Background()
	sessionID := uuid.New()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, &models.Transcription{ID: uuid.New(), SessionID: sessionID, SpeakerID: "b", Text: "second", Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Insert(ctx, &models.Transcription{ID: uuid.New(), SessionID: sessionID, SpeakerID: "a", Text: "first", Timestamp: base}))
	require.NoError(t, store.Insert(ctx, &models.Transcription{ID: uuid.New(), SessionID: uuid.New(), SpeakerID: "c", Text: "elsewhere", Timestamp: base}))

	lines, err := store.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0].Text)
	assert.Equal(t, "second", lines[1].Text)
}

func testReportStore(t *testing.T, store ReportStore) {
	ctx := context.Background()
	sessionID := uuid.New()
	email := randomCode() + "@example.com"
	now := time.Now().UTC()

	require.NoError(t, store.Insert(ctx, &models.Report{ID: uuid.New(), SessionID: sessionID, UserEmail: email, Content: "mine", CreatedAt: now}))
	require.NoError(t, store.Insert(ctx, &models.Report{ID: uuid.New(), SessionID: sessionID, UserEmail: models.SessionSummaryEmail, Content: "summary", CreatedAt: now}))

	bySession, err := store.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	byUser, err := store.ListByUser(ctx, email)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "mine", byUser[0].Content)
}

func testAuditLogStore(t *testing.T, store AuditLogStore) {
	ctx := context.Background()
	actor := randomCode() + "@example.com"
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	for i, action := range []string{models.AuditActionUserBanned, models.AuditActionSessionForceEnded, models.AuditActionUserUnbanned} {
		entry := &models.AuditLog{
			Action:     action,
			ActorEmail: actor,
			TargetType: models.AuditTargetUser,
			TargetID:   "target",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Append(ctx, entry))
		assert.NotZero(t, entry.ID)
	}

	recent, err := store.List(ctx, models.AuditLogFilter{ActorEmail: actor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, models.AuditActionUserUnbanned, recent[0].Action)

	banned, err := store.List(ctx, models.AuditLogFilter{ActorEmail: actor, Action: models.AuditActionUserBanned})
	require.NoError(t, err)
	require.Len(t, banned, 1)

	from := base.Add(30 * time.Second)
	windowed, err := store.List(ctx, models.AuditLogFilter{ActorEmail: actor, From: &from})
	require.NoError(t, err)
	assert.Len(t, windowed, 2)
}

func testUserStore(t *testing.T, store UserStore) {
	ctx := context.Background()
	email := randomCode() + "@example.com"

	require.NoError(t, store.IncrementSessionsCount(ctx, email))
	require.NoError(t, store.IncrementParticipations(ctx, email))
	require.NoError(t, store.IncrementParticipations(ctx, email))

	u, err := store.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 1, u.SessionsCount)
	assert.Equal(t, 2, u.TotalParticipations)
	assert.False(t, u.Banned)

	banned, err := store.ToggleBan(ctx, email)
	require.NoError(t, err)
	assert.True(t, banned)
	banned, err = store.ToggleBan(ctx, email)
	require.NoError(t, err)
	assert.False(t, banned)

	_, err = store.ToggleBan(ctx, "missing-"+email)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetByEmail(ctx, "missing-"+email)
	assert.ErrorIs(t, err, ErrNotFound)
}
