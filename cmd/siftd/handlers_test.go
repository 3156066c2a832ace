package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/siftmod/sift/engine"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := engine.EngineTestFixture()
	eng.Settings = engine.NewMemSettingsStore()
	return NewServer(&eng, Config{Logger: eng.Logger})
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestSettingsOptIn(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	// scopes start opted out
	code, body := doJSON(t, srv, http.MethodGet, "/scopes/scope1/settings", "")
	assert.Equal(http.StatusOK, code)
	assert.Equal(false, body["moderation_enabled"])

	// scans short-circuit until the scope opts in
	scan := `{"content_id": "c1", "scope_id": "scope1", "author_id": "a1", "text": "fr33 vi3ws!!!"}`
	code, body = doJSON(t, srv, http.MethodPost, "/scan", scan)
	assert.Equal(http.StatusOK, code)
	assert.Equal("not_flagged", body["status"])

	code, body = doJSON(t, srv, http.MethodPut, "/scopes/scope1/settings", `{"moderation_enabled": true}`)
	assert.Equal(http.StatusOK, code)
	assert.Equal(true, body["moderation_enabled"])

	code, body = doJSON(t, srv, http.MethodGet, "/scopes/scope1/settings", "")
	assert.Equal(http.StatusOK, code)
	assert.Equal(true, body["moderation_enabled"])

	code, body = doJSON(t, srv, http.MethodPost, "/scan", scan)
	assert.Equal(http.StatusOK, code)
	assert.Equal("flagged_for_review", body["status"])
	assert.Equal("c1", body["case_id"])

	// other scopes stay opted out
	code, body = doJSON(t, srv, http.MethodGet, "/scopes/scope2/settings", "")
	assert.Equal(http.StatusOK, code)
	assert.Equal(false, body["moderation_enabled"])
}

func TestSettingsUpdateValidation(t *testing.T) {
	assert := assert.New(t)
	srv := newTestServer(t)

	code, body := doJSON(t, srv, http.MethodPut, "/scopes/scope1/settings", `{}`)
	assert.Equal(http.StatusBadRequest, code)
	assert.Equal("BadRequest", body["error"])
}
