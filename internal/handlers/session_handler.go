package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/preetsinghmakkar/groupcall/internal/dtos"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/rs/zerolog"
)

type SessionHandler struct {
	admission   *services.AdmissionService
	transcripts *services.TranscriptService
	logger      zerolog.Logger
}

func NewSessionHandler(admission *services.AdmissionService, transcripts *services.TranscriptService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		admission:   admission,
		transcripts: transcripts,
		logger:      logger.With().Str("handler", "session").Logger(),
	}
}

func (h *SessionHandler) Create(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}

	var req dtos.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := h.admission.CreateSession(c.Request.Context(), services.SessionSpec{
		Topic:           req.Topic,
		Description:     req.Description,
		Code:            req.Code,
		Type:            req.Type,
		HasWaitingRoom:  req.HasWaitingRoom,
		TimeLimit:       req.TimeLimit,
		MaxParticipants: req.MaxParticipants,
		HostEmail:       caller.Email,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	session, err := h.admission.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetByCode(c *gin.Context) {
	session, err := h.admission.GetSessionByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// List returns every session, or only SCHEDULED and LIVE ones with ?active=true.
func (h *SessionHandler) List(c *gin.Context) {
	var (
		sessions []*models.Session
		err      error
	)
	if c.Query("active") == "true" {
		sessions, err = h.admission.ListActiveSessions(c.Request.Context())
	} else {
		sessions, err = h.admission.ListSessions(c.Request.Context())
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	c.JSON(http.StatusOK, dtos.SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

func (h *SessionHandler) Start(c *gin.Context) {
	id, ok := h.authorize(c, "start sessions")
	if !ok {
		return
	}
	session, err := h.admission.StartSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Join(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req dtos.JoinSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	name := req.Name
	if name == "" {
		name = caller.Name
	}

	session, err := h.admission.JoinSession(c.Request.Context(), id, models.Participant{
		Name:  name,
		Email: caller.Email,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Admit(c *gin.Context) {
	id, ok := h.authorize(c, "admit participants")
	if !ok {
		return
	}

	var req dtos.AdmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := h.admission.AdmitParticipant(c.Request.Context(), id, req.Participant)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) End(c *gin.Context) {
	id, ok := h.authorize(c, "end sessions")
	if !ok {
		return
	}

	var req dtos.EndSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	session, err := h.admission.EndSession(c.Request.Context(), id, req.Transcript)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := h.authorize(c, "delete sessions")
	if !ok {
		return
	}
	if err := h.admission.DeleteSession(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Utterance records a transcript line over HTTP for clients without a socket.
// Only the host, admins and admitted participants may speak.
func (h *SessionHandler) Utterance(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req dtos.UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.admission.AuthorizeSpeak(c.Request.Context(), caller, id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	record, err := h.transcripts.RecordUtterance(c.Request.Context(), id.String(), caller.Email, req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// authorize resolves the path session and checks the caller is its host or an admin.
func (h *SessionHandler) authorize(c *gin.Context, action string) (uuid.UUID, bool) {
	caller, ok := identity(c)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := sessionIDParam(c)
	if !ok {
		return uuid.Nil, false
	}

	session, err := h.admission.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return uuid.Nil, false
	}
	if !services.CanManageSession(caller, session) {
		respondError(c, h.logger, &services.ForbiddenError{Actor: caller.Email, Action: action})
		return uuid.Nil, false
	}
	return id, true
}
