package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faultline-systems/faultline/internal/auth"
	"github.com/faultline-systems/faultline/internal/dispatch"
	"github.com/faultline-systems/faultline/internal/handlers"
	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/messaging"
	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/ratelimit"
	"github.com/faultline-systems/faultline/internal/repository"
	"github.com/faultline-systems/faultline/internal/service"
)

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, string, []byte) error        { return nil }
func (discardPublisher) PublishMsg(context.Context, *messaging.Message) error { return nil }
func (discardPublisher) Close() error                                         { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	repo := repository.NewInMemoryRepository()
	repo.AddProject(&models.Project{ID: 1, Slug: "backend", PublicKey: "pk-secret"})

	logger := logging.Default()
	svc := service.NewIngestService(dispatch.New(discardPublisher{}, logger), logger)
	authenticator := auth.NewAuthenticator(repo, time.Minute)
	h := handlers.NewEnvelopeHandler(authenticator, svc, &ratelimit.NoOpRateLimiter{}, logger)

	return NewRouter(h)
}

func TestRouter_EnvelopeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := "{\"event_id\":\"deadbeef\"}\n{\"type\":\"event\"}\n{\"message\":\"boom\"}\n"
	req := httptest.NewRequest(http.MethodPost, "/api/backend/envelope/?sentry_key=pk-secret", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "deadbeef")
}

func TestRouter_EnvelopeEndpointRejectsGet(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/backend/envelope/", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_HealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_RequestIDMiddleware(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
