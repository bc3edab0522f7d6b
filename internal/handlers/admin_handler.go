package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/groupcall/internal/dtos"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/rs/zerolog"
)

const defaultTrendDays = 30

type AdminHandler struct {
	admin  *services.AdminService
	audit  *services.AuditService
	logger zerolog.Logger
	now    func() time.Time
}

func NewAdminHandler(admin *services.AdminService, audit *services.AuditService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		audit:  audit,
		logger: logger.With().Str("handler", "admin").Logger(),
		now:    time.Now,
	}
}

func (h *AdminHandler) ForceEnd(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.admin.ForceEndSession(c.Request.Context(), caller, id, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *AdminHandler) ToggleBan(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	email := c.Param("email")

	banned, err := h.admin.ToggleUserBan(c.Request.Context(), caller, email, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dtos.BanResponse{Email: email, Banned: banned})
}

// Analytics accepts ?days=N for the trend window.
func (h *AdminHandler) Analytics(c *gin.Context) {
	days := defaultTrendDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}

	since := h.now().AddDate(0, 0, -days)
	analytics, err := h.admin.Analytics(c.Request.Context(), since)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

func (h *AdminHandler) AuditLogs(c *gin.Context) {
	var q dtos.AuditLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}

	logs, err := h.audit.ListLogs(c.Request.Context(), models.AuditLogFilter{
		ActorEmail: q.Actor,
		Action:     q.Action,
		From:       q.From,
		To:         q.To,
		Limit:      q.Limit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	c.JSON(http.StatusOK, logs)
}
