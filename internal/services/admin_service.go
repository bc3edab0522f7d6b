package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
)

// AdminService holds operator overrides. Every override is audited and
// fails when the audit entry cannot be written.
type AdminService struct {
	admission *AdmissionService
	audit     *AuditService
	users     repositories.UserStore
	options
}

func NewAdminService(admission *AdmissionService, audit *AuditService, users repositories.UserStore, opts ...Option) *AdminService {
	return &AdminService{
		admission: admission,
		audit:     audit,
		users:     users,
		options:   buildOptions("admin", opts),
	}
}

// CanManageSession reports whether identity may control session.
func CanManageSession(identity models.Identity, session *models.Session) bool {
	return identity.IsAdmin() || (identity.Email != "" && identity.Email == session.HostEmail)
}

// ForceEndSession completes a session on behalf of an admin.
func (s *AdminService) ForceEndSession(ctx context.Context, actor models.Identity, id uuid.UUID, ip string) (*models.Session, error) {
	if !actor.IsAdmin() {
		return nil, &ForbiddenError{Actor: actor.Email, Action: "force end sessions"}
	}

	audited := false
	session, err := s.admission.endSession(ctx, id, nil, func(ctx context.Context, session *models.Session) error {
		details := fmt.Sprintf("Force ended session: %s", session.Topic)
		if err := s.audit.LogAction(ctx, models.AuditActionSessionForceEnded, actor.Email,
			models.AuditTargetSession, id.String(), details, ip); err != nil {
			return err
		}
		audited = true
		return nil
	})
	s.metrics.ObserveAdmission("force_end", err)
	if err != nil {
		if audited {
			s.compensateForceEnd(ctx, actor, id, ip, err)
		}
		return nil, err
	}

	s.admission.afterComplete(ctx, session, true)
	s.logger.Info().
		Str("session_id", id.String()).
		Str("actor", actor.Email).
		Msg("session force ended")
	return session, nil
}

// compensateForceEnd records that an audited force-end never committed.
func (s *AdminService) compensateForceEnd(ctx context.Context, actor models.Identity, id uuid.UUID, ip string, cause error) {
	details := fmt.Sprintf("Force end not committed: %v", cause)
	if err := s.audit.LogAction(context.WithoutCancel(ctx), models.AuditActionSessionForceEndFailed, actor.Email,
		models.AuditTargetSession, id.String(), details, ip); err != nil {
		s.logger.Error().Err(err).Str("session_id", id.String()).Msg("failed to record force end compensation")
	}
}

// ToggleUserBan flips a user's ban and returns the new state.
func (s *AdminService) ToggleUserBan(ctx context.Context, actor models.Identity, email, ip string) (bool, error) {
	if !actor.IsAdmin() {
		return false, &ForbiddenError{Actor: actor.Email, Action: "ban users"}
	}
	if email == "" {
		return false, &ValidationError{Field: "email", Message: "required"}
	}

	var banned bool
	err := s.admission.locks.WithLock(ctx, "user:"+email, func(ctx context.Context) error {
		user, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, repositories.ErrNotFound) {
			return &NotFoundError{Resource: "user", Key: email}
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		action := models.AuditActionUserBanned
		details := "Banned user " + email
		if user.Banned {
			action = models.AuditActionUserUnbanned
			details = "Unbanned user " + email
		}
		if err := s.audit.LogAction(ctx, action, actor.Email, models.AuditTargetUser, email, details, ip); err != nil {
			return err
		}

		banned, err = s.users.ToggleBan(ctx, email)
		return err
	})
	if err != nil {
		return false, err
	}
	return banned, nil
}

// Analytics summarizes sessions: counts by status, per-day starts since
// the given time, and mean completed duration in minutes.
func (s *AdminService) Analytics(ctx context.Context, since time.Time) (*models.Analytics, error) {
	store := s.admission.sessions

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	trends, err := store.CountPerDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count per day: %w", err)
	}
	avg, err := store.AverageCompletedDuration(ctx)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}

	if trends == nil {
		trends = []models.DailyCount{}
	}
	return &models.Analytics{
		StatusCounts:           counts,
		SessionTrends:          trends,
		AverageDurationMinutes: avg,
	}, nil
}
