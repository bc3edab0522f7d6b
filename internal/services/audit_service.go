package services

import (
	"context"
	"fmt"

	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
)

const DefaultAuditLimit = 100

// AuditService records privileged actions. Entries are never changed once written.
type AuditService struct {
	store repositories.AuditLogStore
	options
}

func NewAuditService(store repositories.AuditLogStore, opts ...Option) *AuditService {
	return &AuditService{store: store, options: buildOptions("audit", opts)}
}

func (s *AuditService) LogAction(ctx context.Context, action, actorEmail, targetType, targetID, details, ip string) error {
	entry := &models.AuditLog{
		Action:     action,
		ActorEmail: actorEmail,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		IPAddress:  ip,
		Timestamp:  s.now(),
	}
	err := s.store.Append(ctx, entry)
	s.metrics.ObserveAudit(action, err)
	if err != nil {
		return fmt.Errorf("append audit entry %s: %w", action, err)
	}

	s.logger.Info().
		Str("action", action).
		Str("actor", actorEmail).
		Str("target_type", targetType).
		Str("target_id", targetID).
		Msg("audit entry recorded")
	return nil
}

func (s *AuditService) RecentLogs(ctx context.Context, n int) ([]models.AuditLog, error) {
	if n <= 0 {
		n = DefaultAuditLimit
	}
	return s.store.Recent(ctx, n)
}

func (s *AuditService) ListLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultAuditLimit
	}
	return s.store.List(ctx, filter)
}
