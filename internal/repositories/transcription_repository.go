package repositories

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
)

type TranscriptionRepository struct {
	db *sql.DB
}

func NewTranscriptionRepository(db *sql.DB) *TranscriptionRepository {
	return &TranscriptionRepository{db: db}
}

// Insert persists one utterance
func (r *TranscriptionRepository) Insert(ctx context.Context, t *models.Transcription) error {
	const query = `
	INSERT INTO transcriptions (id, session_id, speaker_id, text, timestamp)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, t.ID, t.SessionID, t.SpeakerID, t.Text, t.Timestamp)
	return err
}

func (r *TranscriptionRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Transcription, error) {
	const query = `
	SELECT id, session_id, speaker_id, text, timestamp
	FROM transcriptions
	WHERE session_id = $1
	ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transcription
	for rows.Next() {
		var t models.Transcription
		if err := rows.Scan(&t.ID, &t.SessionID, &t.SpeakerID, &t.Text, &t.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
