package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/groupcall/internal/handlers"
	"github.com/preetsinghmakkar/groupcall/internal/middlewares"
)

type Handlers struct {
	Session   *handlers.SessionHandler
	Report    *handlers.ReportHandler
	Admin     *handlers.AdminHandler
	WebSocket *handlers.WebSocketHandler
}

func RegisterProtectedEndpoints(router *gin.Engine, h Handlers, jwtSecret string) {
	auth := middlewares.AuthMiddleware(jwtSecret)

	// Browsers cannot set headers on the upgrade request, so the token may come in ?token=
	router.GET("/ws", auth, h.WebSocket.HandleWebSocket)

	protected := router.Group("/api")
	protected.Use(auth)

	protected.POST("/sessions", h.Session.Create)
	protected.GET("/sessions", h.Session.List)
	protected.GET("/sessions/code/:code", h.Session.GetByCode)
	protected.GET("/sessions/:id", h.Session.Get)
	protected.POST("/sessions/:id/start", h.Session.Start)
	protected.POST("/sessions/:id/join", h.Session.Join)
	protected.POST("/sessions/:id/admit", h.Session.Admit)
	protected.POST("/sessions/:id/end", h.Session.End)
	protected.DELETE("/sessions/:id", h.Session.Delete)
	protected.POST("/sessions/:id/utterances", h.Session.Utterance)

	protected.GET("/sessions/:id/reports", h.Report.ListForSession)
	protected.POST("/sessions/:id/reports/regenerate", h.Report.Regenerate)
	protected.GET("/reports/me", h.Report.Mine)

	admin := protected.Group("/admin")
	admin.Use(middlewares.AdminOnly())

	admin.POST("/sessions/:id/force-end", h.Admin.ForceEnd)
	admin.POST("/users/:email/ban", h.Admin.ToggleBan)
	admin.GET("/analytics", h.Admin.Analytics)
	admin.GET("/audit-logs", h.Admin.AuditLogs)
}
