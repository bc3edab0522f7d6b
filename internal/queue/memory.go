package queue

import (
	"context"

	"github.com/rs/zerolog"
)

// Memory is an in-process channel for single-replica runs and tests.
type Memory struct {
	ch     chan []byte
	logger zerolog.Logger
}

func NewMemory(buffer int, logger zerolog.Logger) *Memory {
	return &Memory{ch: make(chan []byte, buffer), logger: logger}
}

func (m *Memory) Enqueue(ctx context.Context, msg TranscriptMessage) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	return m.EnqueueRaw(ctx, data)
}

// EnqueueRaw accepts pre-encoded bytes.
func (m *Memory) EnqueueRaw(ctx context.Context, data []byte) error {
	select {
	case m.ch <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-m.ch:
			msg, err := decode(data)
			if err != nil {
				m.logger.Warn().Err(err).Msg("dropping malformed message")
				continue
			}
			if err := handler(ctx, msg); err != nil {
				m.logger.Error().Err(err).Str("session_id", msg.SessionID).Msg("handler failed")
			}
		}
	}
}
