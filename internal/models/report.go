package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionSummaryEmail marks the whole-session report.
const SessionSummaryEmail = "SESSION_SUMMARY"

type Report struct {
	ID        uuid.UUID `json:"id" db:"id"`
	SessionID uuid.UUID `json:"sessionId" db:"session_id"`
	UserEmail string    `json:"userEmail" db:"user_email"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (r Report) IsSummary() bool {
	return r.UserEmail == SessionSummaryEmail
}
