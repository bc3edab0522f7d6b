package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/queue"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
)

const enqueueTimeout = 5 * time.Second

// TranscriptService is the live entry point of the transcript pipeline.
type TranscriptService struct {
	transcriptions repositories.TranscriptionStore
	producer       queue.Producer
	publisher      Publisher
	options
}

func NewTranscriptService(
	transcriptions repositories.TranscriptionStore,
	producer queue.Producer,
	publisher Publisher,
	opts ...Option,
) *TranscriptService {
	return &TranscriptService{
		transcriptions: transcriptions,
		producer:       producer,
		publisher:      publisher,
		options:        buildOptions("transcript", opts),
	}
}

// RecordUtterance persists one utterance, then hands it to the feedback
// channel and echoes it to the session topic. Only persistence errors
// reach the caller.
func (s *TranscriptService) RecordUtterance(ctx context.Context, sessionID, speakerID, text string) (*models.Transcription, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, &ValidationError{Field: "sessionId", Message: "required"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text", Message: "required"}
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, &ValidationError{Field: "sessionId", Message: "must be a uuid"}
	}

	record := &models.Transcription{
		ID:        uuid.New(),
		SessionID: id,
		SpeakerID: speakerID,
		Text:      text,
		Timestamp: s.now(),
	}
	if err := s.transcriptions.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist transcription: %w", err)
	}
	s.metrics.ObserveUtterance()

	msg := queue.TranscriptMessage{SessionID: sessionID, Sender: speakerID, Text: text}
	base := context.WithoutCancel(ctx)
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(base, enqueueTimeout)
		defer cancel()
		if err := s.producer.Enqueue(ctx, msg); err != nil {
			s.metrics.ObserveEnqueueFailure()
			s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to enqueue utterance")
		}
	})

	topic := websocket.SessionTopic(id)
	if _, err := s.publisher.Publish(topic, websocket.TranscriptEvent{
		Type:      websocket.EventTranscript,
		SessionID: id,
		Sender:    speakerID,
		Text:      text,
		Timestamp: record.Timestamp,
	}); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("publish failed")
	}
	return record, nil
}
