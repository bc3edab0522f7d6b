package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/preetsinghmakkar/groupcall/internal/handlers"
	"github.com/preetsinghmakkar/groupcall/internal/metrics"
	"github.com/preetsinghmakkar/groupcall/internal/middlewares"
	"github.com/preetsinghmakkar/groupcall/internal/models"
	"github.com/preetsinghmakkar/groupcall/internal/queue"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/routes"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/preetsinghmakkar/groupcall/internal/sessionlock"
	ws "github.com/preetsinghmakkar/groupcall/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret = "handler-secret"
	host   = "host@example.com"
	admin  = "admin@example.com"
	alice  = "alice@example.com"
)

type echoWriter struct{}

func (echoWriter) GenerateReport(_ context.Context, transcript string) string {
	return "report: " + transcript
}

type fixture struct {
	router         *gin.Engine
	transcriptions *repositories.MemoryTranscriptionStore
	users          *repositories.MemoryUserStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	m := metrics.New()

	sessions := repositories.NewMemorySessionStore()
	transcriptions := repositories.NewMemoryTranscriptionStore()
	users := repositories.NewMemoryUserStore(
		models.User{Email: host, Role: models.RoleUser},
		models.User{Email: admin, Role: models.RoleAdmin},
		models.User{Email: alice, Role: models.RoleUser},
	)
	hub := ws.NewHub(log, m)
	opts := []services.Option{services.WithLogger(log), services.WithMetrics(m), services.WithDispatcher(services.Inline)}

	reports := services.NewReportService(sessions, transcriptions, repositories.NewMemoryReportStore(), echoWriter{}, opts...)
	admission := services.NewAdmissionService(sessions, transcriptions, users, sessionlock.NewManager(), hub, reports, opts...)
	transcripts := services.NewTranscriptService(transcriptions, queue.NewMemory(64, log), hub, opts...)
	audit := services.NewAuditService(repositories.NewMemoryAuditLogStore(), opts...)
	adminSvc := services.NewAdminService(admission, audit, users, opts...)

	router := routes.NewRouter(routes.Handlers{
		Session:   handlers.NewSessionHandler(admission, transcripts, log),
		Report:    handlers.NewReportHandler(reports, admission, log),
		Admin:     handlers.NewAdminHandler(adminSvc, audit, log),
		WebSocket: handlers.NewWebSocketHandler(hub, transcripts, admission, []string{"*"}, 16, log),
	}, routes.Options{JWTSecret: secret, Metrics: m.Handler(), Logger: log})

	return &fixture{router: router, transcriptions: transcriptions, users: users}
}

func token(t *testing.T, email string, role models.Role) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middlewares.Claims{
		Email: email,
		Name:  strings.Split(email, "@")[0],
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		role := models.RoleUser
		if email == admin {
			role = models.RoleAdmin
		}
		req.Header.Set("Authorization", "Bearer "+token(t, email, role))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) models.Session {
	t.Helper()
	var s models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s), w.Body.String())
	return s
}

func (f *fixture) createSession(t *testing.T, body map[string]any) models.Session {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	if _, ok := body["topic"]; !ok {
		body["topic"] = "Remote work is here to stay"
	}
	w := f.do(t, http.MethodPost, "/api/sessions", host, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeSession(t, w)
}

func TestCreateAndGetSession(t *testing.T) {
	f := newFixture(t)

	created := f.createSession(t, nil)
	assert.Len(t, created.Code, 6)
	assert.Equal(t, host, created.HostEmail)
	assert.Equal(t, models.SessionStatusScheduled, created.Status)

	w := f.do(t, http.MethodGet, "/api/sessions/"+created.ID.String(), alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeSession(t, w).ID)

	w = f.do(t, http.MethodGet, "/api/sessions/code/"+created.Code, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeSession(t, w).ID)

	w = f.do(t, http.MethodGet, "/api/sessions?active=true", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestCreateSession_Errors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/sessions", host, map[string]any{"description": "no topic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.createSession(t, map[string]any{"code": "123456"})
	w = f.do(t, http.MethodPost, "/api/sessions", host, map[string]any{"topic": "dup", "code": "123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/sessions", "", map[string]any{"topic": "anon"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionLookupErrors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/sessions/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/sessions/6f1c2a7e-1f40-4c7b-9b3a-111111111111", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSession_OnlyHostOrAdmin(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, nil)
	path := "/api/sessions/" + s.ID.String() + "/start"

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, path, alice, nil).Code)

	w := f.do(t, http.MethodPost, path, host, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusLive, decodeSession(t, w).Status)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, path, admin, nil).Code)
}

func TestJoinThenAdmit(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, map[string]any{"hasWaitingRoom": true})
	base := "/api/sessions/" + s.ID.String()

	w := f.do(t, http.MethodPost, base+"/join", alice, map[string]any{"name": "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	joined := decodeSession(t, w)
	require.Len(t, joined.WaitingList, 1)
	assert.Equal(t, "Alice", joined.WaitingList[0].Name)
	assert.Empty(t, joined.Participants)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, base+"/admit", alice, map[string]any{"participant": alice}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, base+"/admit", host, map[string]any{"participant": "ghost"}).Code)

	w = f.do(t, http.MethodPost, base+"/admit", host, map[string]any{"participant": alice})
	require.Equal(t, http.StatusOK, w.Code)
	admitted := decodeSession(t, w)
	assert.Empty(t, admitted.WaitingList)
	require.Len(t, admitted.Participants, 1)
	assert.Equal(t, alice, admitted.Participants[0].Email)

	user, err := f.users.GetByEmail(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, user.TotalParticipations)
}

func TestEndSession_ThenConflict(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, nil)
	base := "/api/sessions/" + s.ID.String()

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/end", host, nil).Code, "a session that never went live cannot end")
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/start", host, nil).Code)

	w := f.do(t, http.MethodPost, base+"/end", host, map[string]any{"transcript": []string{"host: hello"}})
	require.Equal(t, http.StatusOK, w.Code)
	ended := decodeSession(t, w)
	assert.Equal(t, models.SessionStatusCompleted, ended.Status)
	assert.Equal(t, []string{"host: hello"}, ended.Transcript)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/end", host, nil).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/join", alice, nil).Code)
}

func TestJoin_BannedUserForbidden(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, nil)
	join := "/api/sessions/" + s.ID.String() + "/join"

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/admin/users/"+alice+"/ban", admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, join, alice, nil).Code)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/admin/users/"+alice+"/ban", admin, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, join, alice, nil).Code)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, nil)
	path := "/api/sessions/" + s.ID.String()

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, path, host, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, host, nil).Code)
}

func TestUtterancesAndReports(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, nil)
	base := "/api/sessions/" + s.ID.String()

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/start", host, nil).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, base+"/utterances", host, map[string]any{"text": "opening statement"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, base+"/utterances", alice, map[string]any{"text": "not joined yet"}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/join", alice, nil).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, base+"/utterances", alice, map[string]any{"text": "counterpoint"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, base+"/utterances", alice, map[string]any{}).Code)

	lines, err := f.transcriptions.ListBySession(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, alice, lines[1].SpeakerID)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, base+"/reports/regenerate", host, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/end", host, nil).Code)

	w := f.do(t, http.MethodGet, base+"/reports", host, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, base+"/reports", alice, nil).Code)

	w = f.do(t, http.MethodGet, "/api/reports/me", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "report: counterpoint", mine[0].Content)
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, nil)
	forceEnd := "/api/admin/sessions/" + s.ID.String() + "/force-end"

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, forceEnd, host, nil).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, forceEnd, admin, nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/sessions/"+s.ID.String()+"/start", host, nil).Code)

	w := f.do(t, http.MethodPost, forceEnd, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionStatusCompleted, decodeSession(t, w).Status)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, forceEnd, admin, nil).Code)

	w = f.do(t, http.MethodPost, "/api/admin/users/"+alice+"/ban", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"alice@example.com","banned":true}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/admin/users/nobody@example.com/ban", admin, nil).Code)

	w = f.do(t, http.MethodGet, "/api/admin/audit-logs?action=USER_BANNED", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.AuditLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, alice, logs[0].TargetID)

	w = f.do(t, http.MethodGet, "/api/admin/analytics?days=7", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analytics models.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analytics))
	assert.Equal(t, 1, analytics.StatusCounts[models.SessionStatusCompleted])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/admin/analytics?days=-1", admin, nil).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
