package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusLive      SessionStatus = "LIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"

	// SessionStatusDeleted only appears in broadcast payloads; it is never stored.
	SessionStatusDeleted SessionStatus = "DELETED"
)

// ActiveStatuses are the statuses whose join codes must stay unique.
var ActiveStatuses = []SessionStatus{SessionStatusScheduled, SessionStatusLive}

// CanAdvanceTo reports whether the lifecycle allows moving from s to next.
// Staying in the same non-terminal status is allowed; a session must be LIVE
// before it can complete.
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	switch s {
	case SessionStatusScheduled:
		return next == SessionStatusScheduled || next == SessionStatusLive
	case SessionStatusLive:
		return next == SessionStatusLive || next == SessionStatusCompleted
	default:
		return false
	}
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted
}

type SessionType string

const (
	SessionTypePublic  SessionType = "PUBLIC"
	SessionTypePrivate SessionType = "PRIVATE"
)

type Session struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	Topic             string        `json:"topic" db:"topic"`
	Description       string        `json:"description,omitempty" db:"description"`
	Code              string        `json:"code" db:"code"`
	Status            SessionStatus `json:"status" db:"status"`
	Type              SessionType   `json:"type" db:"type"`
	HasWaitingRoom    bool          `json:"hasWaitingRoom" db:"has_waiting_room"`
	TimeLimit         *int          `json:"timeLimit,omitempty" db:"time_limit"` // minutes
	StartTime         *time.Time    `json:"startTime,omitempty" db:"start_time"`
	EndTime           *time.Time    `json:"endTime,omitempty" db:"end_time"`
	MaxParticipants   *int          `json:"maxParticipants,omitempty" db:"max_participants"`
	HostEmail         string        `json:"hostEmail" db:"host_email"`
	ParticipantsCount int           `json:"participantsCount" db:"participants_count"`

	Participants []Participant `json:"participants" db:"participants"`
	WaitingList  []Participant `json:"waitingList" db:"waiting_list"`
	Transcript   []string      `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Participant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	IsHost       bool      `json:"isHost"`
	JoinedAt     time.Time `json:"joinedAt"`
	SpeakingTime int64     `json:"speakingTime"` // seconds
}

// Clone returns a deep copy so callers can mutate slices without touching
// the stored aggregate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Participants = append([]Participant(nil), s.Participants...)
	out.WaitingList = append([]Participant(nil), s.WaitingList...)
	out.Transcript = append([]string(nil), s.Transcript...)
	if s.TimeLimit != nil {
		v := *s.TimeLimit
		out.TimeLimit = &v
	}
	if s.MaxParticipants != nil {
		v := *s.MaxParticipants
		out.MaxParticipants = &v
	}
	if s.StartTime != nil {
		v := *s.StartTime
		out.StartTime = &v
	}
	if s.EndTime != nil {
		v := *s.EndTime
		out.EndTime = &v
	}
	return &out
}

// HasMember reports whether email is admitted or waiting.
func (s *Session) HasMember(email string) bool {
	return indexByEmail(s.Participants, email) >= 0 || indexByEmail(s.WaitingList, email) >= 0
}

// IsParticipant reports whether email has been admitted.
func (s *Session) IsParticipant(email string) bool {
	return indexByEmail(s.Participants, email) >= 0
}

// IsFull reports whether the participant cap is reached.
func (s *Session) IsFull() bool {
	return s.MaxParticipants != nil && *s.MaxParticipants > 0 && len(s.Participants) >= *s.MaxParticipants
}

// FindWaiting returns the index of the waiting entry matching idOrEmail,
// checking ids before emails.
func (s *Session) FindWaiting(idOrEmail string) int {
	for i, p := range s.WaitingList {
		if p.ID != "" && p.ID == idOrEmail {
			return i
		}
	}
	return indexByEmail(s.WaitingList, idOrEmail)
}

// DurationMinutes is the wall time between start and end, or zero.
func (s *Session) DurationMinutes() float64 {
	if s.StartTime == nil || s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(*s.StartTime).Minutes()
}

func indexByEmail(list []Participant, email string) int {
	if email == "" {
		return -1
	}
	for i, p := range list {
		if p.Email == email {
			return i
		}
	}
	return -1
}
