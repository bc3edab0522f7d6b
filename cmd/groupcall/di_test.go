package main

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/preetsinghmakkar/groupcall/internal/config"
	"github.com/preetsinghmakkar/groupcall/internal/repositories"
	"github.com/preetsinghmakkar/groupcall/internal/services"
	"github.com/preetsinghmakkar/groupcall/internal/sessionlock"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inMemoryConfig() *config.Config {
	return &config.Config{
		Env:              "test",
		Port:             "0",
		LogLevel:         "info",
		JWTSecret:        "secret",
		TranscriptStream: "gd-transcripts",
		TranscriptGroup:  "gd-group",
		SessionLockTTL:   time.Second,
		SweepInterval:    time.Minute,
		SendBuffer:       8,
		CORSOrigins:      []string{"*"},
	}
}

func TestSetupDI_InMemoryGraph(t *testing.T) {
	injector := setupDI(inMemoryConfig(), zerolog.Nop(), services.Inline)

	_, err := do.Invoke[*services.FeedbackWorker](injector)
	require.NoError(t, err)
	_, err = do.Invoke[*services.ExpirySweeper](injector)
	require.NoError(t, err)

	store, err := do.Invoke[repositories.SessionStore](injector)
	require.NoError(t, err)
	assert.IsType(t, &repositories.MemorySessionStore{}, store)

	router, err := do.Invoke[*gin.Engine](injector)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupDI_SharesSingletons(t *testing.T) {
	injector := setupDI(inMemoryConfig(), zerolog.Nop(), services.Inline)

	a := do.MustInvoke[*sessionlock.Manager](injector)
	b := do.MustInvoke[*sessionlock.Manager](injector)
	assert.Same(t, a, b)
}

func TestSetupDI_DatabaseRequiresURL(t *testing.T) {
	injector := setupDI(inMemoryConfig(), zerolog.Nop(), services.Inline)

	_, err := do.Invoke[*sql.DB](injector)
	assert.Error(t, err)
}
