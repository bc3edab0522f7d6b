package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client frame types.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameSignal      = "signal"
	FrameUtterance   = "utterance"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameError       = "error"
)

// Event types published by the server.
const (
	EventTranscript = "TRANSCRIPT"
	EventFeedback   = "AI_FEEDBACK"

	FeedbackSender = "AI_COACH"
)

// WebSocketMessage is the standard message format for all WebSocket communication
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type TopicPayload struct {
	Topic string `json:"topic"`
}

type UtterancePayload struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// SignalMessage is a peer-to-peer negotiation frame. Only SessionID is read;
// the rest is relayed verbatim and receivers filter on Receiver.
type SignalMessage struct {
	Type      string          `json:"type"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	Data      json.RawMessage `json:"data"`
	SessionID string          `json:"sessionId"`
}

// SignalSession extracts the session a raw signaling frame belongs to.
func SignalSession(raw json.RawMessage) (uuid.UUID, error) {
	var envelope struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return uuid.Nil, err
	}
	if envelope.SessionID == "" {
		return uuid.Nil, ErrMissingSession
	}
	id, err := uuid.Parse(envelope.SessionID)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}
	return id, nil
}

// TopicSession returns the session behind a session/<uuid> topic.
func TopicSession(topic string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(topic, sessionTopicPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	return id, err == nil
}

// ValidTopic accepts the global topic and session/<uuid>.
func ValidTopic(topic string) bool {
	if topic == GlobalTopic {
		return true
	}
	_, ok := TopicSession(topic)
	return ok
}

type TranscriptEvent struct {
	Type      string    `json:"type"`
	SessionID uuid.UUID `json:"sessionId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type FeedbackEvent struct {
	Type       string    `json:"type"`
	Sender     string    `json:"sender"`
	TargetUser string    `json:"targetUser"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// RemovedEvent announces a session that no longer exists.
type RemovedEvent struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

// Encode builds a server frame; payload errors surface as an error frame.
func Encode(frameType string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(ErrorPayload{Message: err.Error()})
		frameType = FrameError
	}
	data, _ := json.Marshal(WebSocketMessage{Type: frameType, Payload: raw})
	return data
}
