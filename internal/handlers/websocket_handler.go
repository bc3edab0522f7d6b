package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	ws "github.com/preetsinghmakkar/groupcall/internal/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 64 * 1024
	utteranceWait  = 5 * time.Second
	authorizeWait  = 5 * time.Second
	wildcardOrigin = "*"
)

// UtteranceRecorder persists a spoken line from a connected client.
type UtteranceRecorder interface {
	RecordUtterance(ctx context.Context, sessionID, speakerID, text string) (*models.Transcription, error)
}

// SessionGate decides what a connected client may do in a session.
type SessionGate interface {
	AuthorizeWatch(ctx context.Context, identity models.Identity, id uuid.UUID) error
	AuthorizeSpeak(ctx context.Context, identity models.Identity, id uuid.UUID) error
}

type WebSocketHandler struct {
	hub        *ws.Hub
	recorder   UtteranceRecorder
	gate       SessionGate
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     zerolog.Logger
}

func NewWebSocketHandler(hub *ws.Hub, recorder UtteranceRecorder, gate SessionGate, allowedOrigins []string, sendBuffer int, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		recorder: recorder,
		gate:     gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("handler", "websocket").Logger(),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, wildcardOrigin) {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// HandleWebSocket upgrades an authenticated request into a hub client.
// MUST be protected by AuthMiddleware.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, caller, h.sendBuffer)
	h.logger.Debug().
		Str("client_id", client.ID.String()).
		Str("email", caller.Email).
		Msg("client connected")

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) readPump(client *ws.Client) {
	defer func() {
		h.hub.RemoveClient(client)
		client.Close()
		h.logger.Debug().Str("client_id", client.ID.String()).Msg("client disconnected")
	}()

	client.Conn.SetReadLimit(maxFrameSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", client.ID.String()).Msg("unexpected close")
			}
			return
		}

		var msg ws.WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(client, "malformed frame")
			continue
		}
		h.dispatch(client, msg)
	}
}

func (h *WebSocketHandler) dispatch(client *ws.Client, msg ws.WebSocketMessage) {
	switch msg.Type {
	case ws.FrameSubscribe, ws.FrameUnsubscribe:
		var p ws.TopicPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || !ws.ValidTopic(p.Topic) {
			h.sendError(client, "invalid topic")
			return
		}
		if msg.Type == ws.FrameUnsubscribe {
			h.hub.Unsubscribe(p.Topic, client)
			return
		}
		if id, ok := ws.TopicSession(p.Topic); ok {
			if err := h.authorize(client, id, h.gate.AuthorizeWatch); err != nil {
				h.sendError(client, clientError(err, "subscribe failed"))
				return
			}
		}
		h.hub.Subscribe(p.Topic, client)

	case ws.FrameSignal:
		id, err := ws.SignalSession(msg.Payload)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		if err := h.authorize(client, id, h.gate.AuthorizeSpeak); err != nil {
			h.sendError(client, clientError(err, "signal rejected"))
			return
		}
		h.hub.PublishRaw(ws.SessionTopic(id), msg.Payload)

	case ws.FrameUtterance:
		var p ws.UtterancePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			h.sendError(client, "malformed utterance")
			return
		}
		if id, err := uuid.Parse(p.SessionID); err == nil {
			if err := h.authorize(client, id, h.gate.AuthorizeSpeak); err != nil {
				h.sendError(client, clientError(err, "failed to record utterance"))
				return
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), utteranceWait)
		_, err := h.recorder.RecordUtterance(ctx, p.SessionID, client.Identity.Email, p.Text)
		cancel()
		if err != nil {
			h.logger.Warn().Err(err).Str("session_id", p.SessionID).Msg("utterance rejected")
			h.sendError(client, clientError(err, "failed to record utterance"))
		}

	case ws.FramePing:
		h.send(client, ws.Encode(ws.FramePong, struct{}{}))

	default:
		h.sendError(client, ws.ErrUnknownFrame.Error()+": "+msg.Type)
	}
}

func (h *WebSocketHandler) authorize(client *ws.Client, id uuid.UUID, check func(context.Context, models.Identity, uuid.UUID) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), authorizeWait)
	defer cancel()
	return check(ctx, client.Identity, id)
}

// clientError hides internal failures behind fallback.
func clientError(err error, fallback string) string {
	if statusFor(err) == http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}

func (h *WebSocketHandler) sendError(client *ws.Client, message string) {
	h.send(client, ws.Encode(ws.FrameError, ws.ErrorPayload{Message: message}))
}

// send never blocks the read loop.
func (h *WebSocketHandler) send(client *ws.Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn().Str("client_id", client.ID.String()).Msg("reply dropped, client buffer full")
	}
}

func (h *WebSocketHandler) writePump(client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Debug().Err(err).Str("client_id", client.ID.String()).Msg("write failed")
				}
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.Done:
			return
		}
	}
}
