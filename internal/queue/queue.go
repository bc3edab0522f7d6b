// Package queue carries utterances from the live path to the feedback worker.
//
// Delivery is at-most-once per consumer group: messages are acknowledged
// after the handler returns, whatever it returned.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultStream = "gd-transcripts"
	DefaultGroup  = "gd-group"
)

var ErrMalformed = errors.New("malformed transcript message")

type TranscriptMessage struct {
	SessionID string `json:"sessionId"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
}

// WordCount splits on any whitespace run.
func (m TranscriptMessage) WordCount() int {
	return len(strings.Fields(m.Text))
}

type Handler func(ctx context.Context, msg TranscriptMessage) error

type Producer interface {
	Enqueue(ctx context.Context, msg TranscriptMessage) error
}

// Consumer blocks delivering messages to handler until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}

func encode(msg TranscriptMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func decode(data []byte) (TranscriptMessage, error) {
	var msg TranscriptMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.SessionID == "" || msg.Text == "" {
		return msg, fmt.Errorf("%w: missing sessionId or text", ErrMalformed)
	}
	return msg, nil
}
