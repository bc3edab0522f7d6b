package models

import (
	"time"

	"github.com/google/uuid"
)

type Transcription struct {
	ID        uuid.UUID `json:"id" db:"id"`
	SessionID uuid.UUID `json:"sessionId" db:"session_id"`
	SpeakerID string    `json:"speakerId" db:"speaker_id"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// Line renders the transcription the way session transcripts store it.
func (t Transcription) Line() string {
	return t.SpeakerID + ": " + t.Text
}
