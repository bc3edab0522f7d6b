package models

import "time"

const (
	AuditActionSessionForceEnded = "SESSION_FORCE_ENDED"
	// AuditActionSessionForceEndFailed compensates a SESSION_FORCE_ENDED
	// entry whose commit did not happen.
	AuditActionSessionForceEndFailed = "SESSION_FORCE_END_FAILED"
	AuditActionUserBanned            = "USER_BANNED"
	AuditActionUserUnbanned          = "USER_UNBANNED"

	AuditTargetSession = "SESSION"
	AuditTargetUser    = "USER"
	AuditTargetSystem  = "SYSTEM"
)

type AuditLog struct {
	ID         int64     `json:"id" db:"id"`
	Action     string    `json:"action" db:"action"`
	ActorEmail string    `json:"actorEmail" db:"actor_email"`
	TargetType string    `json:"targetType" db:"target_type"`
	TargetID   string    `json:"targetId" db:"target_id"`
	Details    string    `json:"details" db:"details"`
	IPAddress  string    `json:"ipAddress" db:"ip_address"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

type AuditLogFilter struct {
	ActorEmail string
	Action     string
	From       *time.Time
	To         *time.Time
	Limit      int
}
