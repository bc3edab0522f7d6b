package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/queue"
	"github.com/preetsinghmakkar/groupcall/internal/websocket"
)

const (
	feedbackMotion   = "General Discussion"
	feedbackMinWords = 5
)

// ArgumentEvaluator scores an argument. It always returns usable text.
type ArgumentEvaluator interface {
	EvaluateArgument(ctx context.Context, motion, argument string) string
}

// FeedbackWorker turns queued utterances into live AI_FEEDBACK events.
type FeedbackWorker struct {
	consumer  queue.Consumer
	evaluator ArgumentEvaluator
	publisher Publisher
	options
}

func NewFeedbackWorker(consumer queue.Consumer, evaluator ArgumentEvaluator, publisher Publisher, opts ...Option) *FeedbackWorker {
	return &FeedbackWorker{
		consumer:  consumer,
		evaluator: evaluator,
		publisher: publisher,
		options:   buildOptions("feedback", opts),
	}
}

// Run consumes until ctx ends.
func (w *FeedbackWorker) Run(ctx context.Context) error {
	w.logger.Info().Msg("feedback worker started")
	defer w.logger.Info().Msg("feedback worker stopped")
	return w.consumer.Consume(ctx, w.Handle)
}

// Handle evaluates utterances longer than five words.
func (w *FeedbackWorker) Handle(ctx context.Context, msg queue.TranscriptMessage) error {
	if msg.WordCount() <= feedbackMinWords {
		return nil
	}
	id, err := uuid.Parse(msg.SessionID)
	if err != nil {
		return fmt.Errorf("%w: bad sessionId %q", queue.ErrMalformed, msg.SessionID)
	}

	content := w.evaluator.EvaluateArgument(ctx, feedbackMotion, msg.Text)

	topic := websocket.SessionTopic(id)
	if _, err := w.publisher.Publish(topic, websocket.FeedbackEvent{
		Type:       websocket.EventFeedback,
		Sender:     websocket.FeedbackSender,
		TargetUser: msg.Sender,
		Content:    content,
		Timestamp:  w.now(),
	}); err != nil {
		return fmt.Errorf("publish feedback: %w", err)
	}
	w.metrics.ObserveFeedback()
	return nil
}
