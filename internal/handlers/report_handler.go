package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/rs/zerolog"
)

type ReportHandler struct {
	reports   *services.ReportService
	admission *services.AdmissionService
	logger    zerolog.Logger
}

func NewReportHandler(reports *services.ReportService, admission *services.AdmissionService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		admission: admission,
		logger:    logger.With().Str("handler", "report").Logger(),
	}
}

// ListForSession returns all reports of a session to its host or an admin.
func (h *ReportHandler) ListForSession(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.admission.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !services.CanManageSession(caller, session) {
		respondError(c, h.logger, &services.ForbiddenError{Actor: caller.Email, Action: "read session reports"})
		return
	}

	reports, err := h.reports.ListReports(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNilReports(reports))
}

func (h *ReportHandler) Mine(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	reports, err := h.reports.ListReportsForUser(c.Request.Context(), caller.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNilReports(reports))
}

func (h *ReportHandler) Regenerate(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.admission.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !services.CanManageSession(caller, session) {
		respondError(c, h.logger, &services.ForbiddenError{Actor: caller.Email, Action: "regenerate reports"})
		return
	}

	reports, err := h.reports.RegenerateReports(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNilReports(reports))
}

func nonNilReports(reports []models.Report) []models.Report {
	if reports == nil {
		return []models.Report{}
	}
	return reports
}
