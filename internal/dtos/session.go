package dtos

import (
	"time"

	"github.com/preetsinghmakkar/groupcall/internal/models"
)

// Create session request
type CreateSessionRequest struct {
	Topic           string             `json:"topic" binding:"required,max=200"`
	Description     string             `json:"description" binding:"max=2000"`
	Code            string             `json:"code" binding:"omitempty,numeric,len=6"`
	Type            models.SessionType `json:"type" binding:"omitempty,oneof=PUBLIC PRIVATE"`
	HasWaitingRoom  bool               `json:"hasWaitingRoom"`
	TimeLimit       *int               `json:"timeLimit" binding:"omitempty,min=1,max=1440"` // minutes
	MaxParticipants *int               `json:"maxParticipants" binding:"omitempty,min=1"`
}

// Join request; the email always comes from the caller identity and the
// participant id is assigned by the server
type JoinSessionRequest struct {
	Name string `json:"name" binding:"max=100"`
}

type AdmitRequest struct {
	Participant string `json:"participant" binding:"required"` // participant id or email
}

type EndSessionRequest struct {
	Transcript []string `json:"transcript"`
}

type UtteranceRequest struct {
	Text string `json:"text" binding:"required"`
}

type BanResponse struct {
	Email  string `json:"email"`
	Banned bool   `json:"banned"`
}

type SessionListResponse struct {
	Sessions []*models.Session `json:"sessions"`
	Count    int               `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Query parameters for the audit log listing
type AuditLogQuery struct {
	Actor  string     `form:"actor"`
	Action string     `form:"action"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int        `form:"limit" binding:"omitempty,min=1,max=1000"`
}
