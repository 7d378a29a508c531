package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/faultline-systems/faultline/internal/auth"
	"github.com/faultline-systems/faultline/internal/envelope"
	"github.com/faultline-systems/faultline/internal/httputil"
	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/metrics"
	"github.com/faultline-systems/faultline/internal/ratelimit"
	"github.com/faultline-systems/faultline/internal/service"
	"github.com/faultline-systems/faultline/internal/transport"
)

// maxBodyBytes caps a single compressed envelope submission.
const maxBodyBytes = 20 << 20 // 20MB

// EnvelopeHandler terminates the SDK-facing ingest endpoint.
type EnvelopeHandler struct {
	authenticator *auth.Authenticator
	service       *service.IngestService
	limiter       ratelimit.RateLimiter
	logger        *logging.Logger
}

// NewEnvelopeHandler creates an EnvelopeHandler.
func NewEnvelopeHandler(authenticator *auth.Authenticator, svc *service.IngestService, limiter ratelimit.RateLimiter, logger *logging.Logger) *EnvelopeHandler {
	return &EnvelopeHandler{
		authenticator: authenticator,
		service:       svc,
		limiter:       limiter,
		logger:        logger,
	}
}

// HandleEnvelope accepts POST /api/{tenant}/envelope/ submissions.
//
// Status mapping: 401 bad or missing credentials, 404 unknown tenant,
// 429 rate limited, 400 structurally bad envelope. Undecodable bodies and
// downstream dispatch trouble still return 200 so SDKs do not retry what
// cannot succeed.
func (h *EnvelopeHandler) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := r.PathValue("tenant")

	project, err := h.authenticator.Authenticate(ctx, r, tenant)
	if err != nil {
		h.writeAuthError(w, r, tenant, err)
		return
	}

	allowed, err := h.limiter.Allow(ctx, project.Slug)
	if err != nil {
		// Limiter trouble must not block ingestion.
		h.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
			logging.ProjectSlug(project.Slug),
			logging.Err(err),
		)
		allowed = true
	}
	if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	contentEncoding := strings.TrimSpace(r.Header.Get("Content-Encoding"))

	result, err := h.service.IngestEnvelope(ctx, project, body, contentEncoding)
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"id": result.EventID})

	case errors.Is(err, transport.ErrDecode):
		// Acked on purpose: a corrupt body will never decode on retry.
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"id": ""})

	case errors.Is(err, envelope.ErrParse), errors.Is(err, envelope.ErrValidation):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())

	default:
		// Internal trouble past the structural checks is swallowed; the
		// client already delivered a well-formed envelope.
		h.logger.ErrorContext(ctx, "envelope processing failed",
			logging.ProjectID(project.ID),
			logging.Err(err),
		)
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"id": ""})
	}
}

func (h *EnvelopeHandler) writeAuthError(w http.ResponseWriter, r *http.Request, tenant string, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		metrics.AuthFailures.WithLabelValues("missing_credentials").Inc()
		httputil.WriteError(w, http.StatusUnauthorized, "missing credentials")

	case errors.Is(err, auth.ErrInvalidProject):
		metrics.AuthFailures.WithLabelValues("unknown_project").Inc()
		httputil.WriteError(w, http.StatusNotFound, "project not found")

	case errors.Is(err, auth.ErrInvalidCredentials):
		metrics.AuthFailures.WithLabelValues("invalid_credentials").Inc()
		httputil.WriteError(w, http.StatusUnauthorized, "invalid credentials")

	default:
		h.logger.ErrorContext(r.Context(), "authentication lookup failed",
			"tenant", tenant,
			logging.Err(err),
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// Health reports liveness.
func (h *EnvelopeHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports readiness to accept envelopes.
func (h *EnvelopeHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
