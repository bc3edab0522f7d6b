package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
)

const DefaultSweepInterval = 60 * time.Second

type SweepResult struct {
	Candidates int
	Deleted    int
	Completed  int
	Failed     int
	// Skipped is set when another pass was still running.
	Skipped bool
}

// ExpirySweeper closes LIVE sessions whose end time has passed.
type ExpirySweeper struct {
	admission *AdmissionService
	interval  time.Duration
	running   atomic.Bool
	options
}

func NewExpirySweeper(admission *AdmissionService, interval time.Duration, opts ...Option) *ExpirySweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ExpirySweeper{
		admission: admission,
		interval:  interval,
		options:   buildOptions("sweeper", opts),
	}
}

// Run sweeps on every tick until ctx ends.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("expiry sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// RunOnce performs one pass. Overlapping calls return immediately with Skipped set.
func (s *ExpirySweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return SweepResult{Skipped: true}, nil
	}
	defer s.running.Store(false)

	live, err := s.admission.sessions.ListByStatus(ctx, models.SessionStatusLive)
	if err != nil {
		return SweepResult{}, err
	}

	now := s.now()
	var res SweepResult
	for _, candidate := range live {
		if candidate.EndTime == nil || !candidate.EndTime.Before(now) {
			continue
		}
		res.Candidates++

		outcome, session, err := s.admission.expire(ctx, candidate.ID)
		if err != nil {
			res.Failed++
			s.metrics.ObserveSweepOutcome("failed")
			s.logger.Error().Err(err).Str("session_id", candidate.ID.String()).Msg("failed to expire session")
			continue
		}

		switch outcome {
		case expireDeleted:
			res.Deleted++
			s.metrics.ObserveSweepOutcome("deleted")
			s.admission.publish(websocket.GlobalTopic, websocket.RemovedEvent{
				ID:     candidate.ID,
				Status: string(models.SessionStatusDeleted),
			})
			s.logger.Info().Str("session_id", candidate.ID.String()).Msg("deleted expired empty session")
		case expireCompleted:
			res.Completed++
			s.metrics.ObserveSweepOutcome("completed")
			s.admission.afterComplete(ctx, session, true)
			s.logger.Info().Str("session_id", candidate.ID.String()).Msg("completed expired session")
		}
	}

	s.metrics.ObserveSweep()
	return res, nil
}
