package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentpane/agentpane/internal/config"
	"github.com/agentpane/agentpane/internal/host"
)

func testServer(t *testing.T) (*Server, *host.Registry) {
	t.Helper()
	registry, err := host.OpenRegistry(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	return New(context.Background(), registry, config.Default()), registry
}

// TestHealthz verifies the liveness endpoint.
func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// TestListSessions verifies the API returns registered sessions as
// JSON.
func TestListSessions(t *testing.T) {
	srv, registry := testServer(t)
	_, err := registry.Register("demo", "/tmp/demo", "claude", "demo-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []host.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "demo", sessions[0].Title)
	assert.Equal(t, "demo-1", sessions[0].TmuxSession)
}

// TestAttachUnknownSession verifies /ws rejects unknown session IDs
// before upgrading.
func TestAttachUnknownSession(t *testing.T) {
	srv, _ := testServer(t)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?session=nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
