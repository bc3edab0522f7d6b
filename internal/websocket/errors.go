package websocket

import "errors"

var (
	ErrUnknownFrame   = errors.New("unknown frame type")
	ErrMissingSession = errors.New("sessionId required")
	ErrInvalidSession = errors.New("invalid sessionId")
)
