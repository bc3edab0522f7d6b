package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	payloadField   = "payload"
	defaultBlock   = 5 * time.Second
	defaultBatch   = 16
	defaultBackoff = time.Second
)

// RedisStream is a Producer and Consumer over a Redis stream and consumer group.
type RedisStream struct {
	client   redis.UniversalClient
	stream   string
	group    string
	consumer string
	block    time.Duration
	batch    int64
	maxLen   int64
	logger   zerolog.Logger
}

type Option func(*RedisStream)

func WithStream(stream string) Option {
	return func(r *RedisStream) { r.stream = stream }
}

func WithGroup(group string) Option {
	return func(r *RedisStream) { r.group = group }
}

func WithConsumerName(name string) Option {
	return func(r *RedisStream) { r.consumer = name }
}

// WithBlock sets how long a read waits for new entries. Negative means do not block.
func WithBlock(d time.Duration) Option {
	return func(r *RedisStream) { r.block = d }
}

// WithMaxLen caps the stream length approximately. Zero leaves it unbounded.
func WithMaxLen(n int64) Option {
	return func(r *RedisStream) { r.maxLen = n }
}

func WithStreamLogger(logger zerolog.Logger) Option {
	return func(r *RedisStream) { r.logger = logger }
}

func NewRedisStream(client redis.UniversalClient, opts ...Option) *RedisStream {
	host, _ := os.Hostname()
	r := &RedisStream{
		client:   client,
		stream:   DefaultStream,
		group:    DefaultGroup,
		consumer: "consumer-" + host,
		block:    defaultBlock,
		batch:    defaultBatch,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisStream) Enqueue(ctx context.Context, msg TranscriptMessage) error {
	data, err := encode(msg)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{payloadField: string(data)},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// EnsureGroup creates the stream and consumer group if missing.
func (r *RedisStream) EnsureGroup(ctx context.Context) error {
	err := r.client.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s: %w", r.group, err)
	}
	return nil
}

func (r *RedisStream) Consume(ctx context.Context, handler Handler) error {
	if err := r.EnsureGroup(ctx); err != nil {
		return err
	}

	r.logger.Info().Str("stream", r.stream).Str("group", r.group).Msg("consuming transcript stream")
	for {
		if _, err := r.poll(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("stream read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(defaultBackoff):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// poll reads one batch, hands each entry to handler and acknowledges it.
func (r *RedisStream) poll(ctx context.Context, handler Handler) (int, error) {
	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, ">"},
		Count:    r.batch,
		Block:    r.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			r.handle(ctx, entry, handler)
			if err := r.client.XAck(ctx, r.stream, r.group, entry.ID).Err(); err != nil {
				r.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("ack failed")
			}
			handled++
		}
	}
	return handled, nil
}

func (r *RedisStream) handle(ctx context.Context, entry redis.XMessage, handler Handler) {
	raw, _ := entry.Values[payloadField].(string)
	msg, err := decode([]byte(raw))
	if err != nil {
		r.logger.Warn().Err(err).Str("entry_id", entry.ID).Msg("dropping malformed entry")
		return
	}
	if err := handler(ctx, msg); err != nil {
		r.logger.Error().Err(err).Str("entry_id", entry.ID).Str("session_id", msg.SessionID).Msg("handler failed")
	}
}
