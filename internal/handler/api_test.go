package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"honeypot/internal/classifier"
	"honeypot/internal/middleware"
	"honeypot/internal/models"
	"honeypot/internal/service"
	"honeypot/internal/session"
)

const apiKey = "test-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	hp := service.NewHoneypot(service.Dependencies{
		Store:      session.NewStore(session.Options{}),
		Classifier: classifier.Default(),
	}, service.Config{}, zap.NewNop())
	return newRouterFor(hp)
}

func newRouterFor(hp Honeypot) *gin.Engine {
	r := gin.New()
	NewHandler(hp, zap.NewNop()).RegisterRoutes(r, middleware.Auth(middleware.AuthConfig{APIKey: apiKey}, zap.NewNop()))
	return r
}

func request(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, apiKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTurnAndSessionStatus(t *testing.T) {
	r := newTestRouter(t)

	w := request(r, http.MethodPost, "/api/honeypot", `{
		"sessionId": "abc",
		"message": {"sender": "scammer", "text": "Your SBI account will be blocked within 24 hours. Update KYC now.", "timestamp": 1770005528731},
		"conversationHistory": [],
		"metadata": {"channel": "SMS", "language": "English", "locale": "IN"}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "abc", body["sessionId"])
	assert.Equal(t, true, body["scam_detected"])
	assert.EqualValues(t, 2, body["message_count"])
	assert.NotEmpty(t, body["reply"])

	w = request(r, http.MethodGet, "/api/session/abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "abc", body["sessionId"])
	assert.EqualValues(t, 2, body["message_count"])
	assert.Equal(t, false, body["final_result_sent"])

	w = request(r, http.MethodGet, "/api/v1/sessions/abc/intelligence", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"suspiciousKeywords"`)
}

func TestTurnAcceptsLegacyShape(t *testing.T) {
	r := newTestRouter(t)

	w := request(r, http.MethodPost, "/api/honeypot", `{"session_id": "legacy", "message": "hello there"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "legacy", decode(t, w)["sessionId"])
}

func TestTurnValidation(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{"sessionId": "abc", "message": {"sender": "scammer"}}`},
		{"blank text", `{"sessionId": "abc", "message": "   "}`},
		{"malformed json", `{"sessionId": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(r, http.MethodPost, "/api/honeypot", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "error", decode(t, w)["status"])
		})
	}
}

func TestTurnRequiresAPIKey(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/honeypot", bytes.NewBufferString(`{"message": "hi"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestSessionNotFound(t *testing.T) {
	r := newTestRouter(t)

	w := request(r, http.MethodGet, "/api/session/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Session missing not found", decode(t, w)["error"])

	w = request(r, http.MethodGet, "/api/v1/sessions/missing/intelligence", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassify(t *testing.T) {
	r := newTestRouter(t)

	w := request(r, http.MethodPost, "/api/v1/classify", `{"text": "Hi, can we schedule a meeting tomorrow at 3 PM?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["is_scam"])
	assert.Equal(t, "low", body["risk_tier"])

	w = request(r, http.MethodPost, "/api/v1/classify", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUsageAndRoot(t *testing.T) {
	r := newTestRouter(t)

	w := request(r, http.MethodGet, "/api/honeypot", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST /api/honeypot", decode(t, w)["endpoint"])

	w = request(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

type pingFailer struct {
	Honeypot
}

func (pingFailer) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthCheck(t *testing.T) {
	w := request(newTestRouter(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = request(newRouterFor(pingFailer{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

type failingHoneypot struct {
	Honeypot
	err error
}

func (f failingHoneypot) ProcessTurn(context.Context, models.TurnRequest) (*models.TurnResponse, error) {
	return nil, f.err
}

func TestTurnInternalError(t *testing.T) {
	r := newRouterFor(failingHoneypot{err: errors.New("boom")})

	w := request(r, http.MethodPost, "/api/honeypot", `{"message": "hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w)["error"])
}
