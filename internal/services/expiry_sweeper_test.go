package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySessionStore fails updates for one session and can pause listing.
type flakySessionStore struct {
	*repositories.MemorySessionStore
	failUpdate  uuid.UUID
	listEntered chan struct{}
	listRelease chan struct{}
}

func (s *flakySessionStore) Update(ctx context.Context, session *models.Session) error {
	if session.ID == s.failUpdate && session.Status == models.SessionStatusCompleted {
		return errors.New("disk full")
	}
	return s.MemorySessionStore.Update(ctx, session)
}

func (s *flakySessionStore) ListByStatus(ctx context.Context, statuses ...models.SessionStatus) ([]*models.Session, error) {
	if s.listEntered != nil {
		s.listEntered <- struct{}{}
		<-s.listRelease
	}
	return s.MemorySessionStore.ListByStatus(ctx, statuses...)
}

func timeLimited(s *SessionSpec) { s.TimeLimit = intPtr(1) }

func TestSweeper_DeletesExpiredEmptySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createLive(t, timeLimited)
	f.clock.Advance(2 * time.Minute)
	f.pub.reset()

	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Deleted: 1}, res)

	_, err = f.admission.GetSession(ctx, session.ID)
	assert.True(t, IsNotFound(err))

	events := f.pub.on(websocket.GlobalTopic)
	require.Len(t, events, 1)
	assert.Equal(t, websocket.RemovedEvent{ID: session.ID, Status: "DELETED"}, events[0])
}

func TestSweeper_CompletesExpiredSessionWithParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.createLive(t, timeLimited)
	f.join(t, session.ID, userIdentity.Email)
	f.transcribe(t, session.ID, userIdentity.Email, "my closing point")
	f.clock.Advance(2 * time.Minute)
	f.pub.reset()

	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Completed: 1}, res)

	done, err := f.admission.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
	assert.Equal(t, []string{"alice@example.com: my closing point"}, done.Transcript)

	assert.Len(t, f.pub.on(websocket.GlobalTopic), 1)
	assert.Len(t, f.pub.on(websocket.SessionTopic(session.ID)), 1)
	assert.Len(t, mustReports(t, f, session), 2)
}

func TestSweeper_IgnoresUnexpiredSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	running := f.createLive(t, func(s *SessionSpec) { s.TimeLimit = intPtr(60) })
	unlimited := f.createLive(t, nil)
	scheduled := f.create(t, timeLimited)
	f.clock.Advance(2 * time.Minute)

	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)

	for _, id := range []uuid.UUID{running.ID, unlimited.ID, scheduled.ID} {
		_, err := f.admission.GetSession(ctx, id)
		assert.NoError(t, err)
	}
}

func TestSweeper_ContinuesAfterFailure(t *testing.T) {
	store := &flakySessionStore{MemorySessionStore: repositories.NewMemorySessionStore()}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	broken := f.createLive(t, timeLimited)
	f.join(t, broken.ID, userIdentity.Email)
	healthy := f.createLive(t, timeLimited)
	f.join(t, healthy.ID, userIdentity.Email)
	store.failUpdate = broken.ID
	f.clock.Advance(2 * time.Minute)

	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Completed)

	still, err := f.admission.GetSession(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusLive, still.Status)

	done, err := f.admission.GetSession(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, done.Status)
}

func TestSweeper_RunOnceDoesNotOverlap(t *testing.T) {
	store := &flakySessionStore{
		MemorySessionStore: repositories.NewMemorySessionStore(),
		listEntered:        make(chan struct{}),
		listRelease:        make(chan struct{}),
	}
	f := newFixtureWithStore(t, store)
	ctx := context.Background()

	first := make(chan SweepResult, 1)
	go func() {
		res, _ := f.sweeper.RunOnce(ctx)
		first <- res
	}()
	<-store.listEntered

	res, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	close(store.listRelease)
	assert.False(t, (<-first).Skipped)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	sweeper := NewExpirySweeper(f.admission, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
