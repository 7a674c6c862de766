// Package http provides the HTTP surface of the cost guard.
package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/artpar/costgate/adapters/metrics"
	"github.com/artpar/costgate/app"
	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/identity"
	"github.com/artpar/costgate/domain/money"
	"github.com/artpar/costgate/domain/speech"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ErrorResponseBody is the error envelope for all failure responses.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	Current   *money.Amount `json:"currentCost,omitempty"`
	Threshold *money.Amount `json:"threshold,omitempty"`
}

// VersionResponse is the /version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// CostResponse is the session snapshot returned by GET /api/cost and by
// the reset action.
type CostResponse struct {
	UserID             string                  `json:"userId"`
	SessionCost        money.Amount            `json:"sessionCost"`
	CostsByService     map[string]money.Amount `json:"costsByService"`
	SessionStartTime   time.Time               `json:"sessionStartTime"`
	EntryCount         int                     `json:"entryCount"`
	GlobalMonthlyCost  money.Amount            `json:"globalMonthlyCost"`
	Threshold          money.Amount            `json:"threshold"`
	IsThresholdReached bool                    `json:"isThresholdReached"`
}

// costActionRequest is the POST /api/cost body.
type costActionRequest struct {
	Action string `json:"action"`
}

// synthesizeRequest is the POST /api/tts body.
type synthesizeRequest struct {
	Input  string `json:"input"`
	Voice  string `json:"voice,omitempty"`
	Model  string `json:"model,omitempty"`
	Format string `json:"format,omitempty"`
	UserID string `json:"user_id,omitempty"` // overrides the X-User-ID header
}

// AdminPolicy gates the global ledger reset.
type AdminPolicy struct {
	// Environment is the deployment environment; "production" requires a token.
	Environment string
	// TokenHash is the bcrypt hash of the admin bearer token.
	TokenHash string
}

// Allows reports whether the given bearer token may run admin actions.
// Outside production any caller is allowed; in production a matching
// token is required.
func (p AdminPolicy) Allows(token string) bool {
	if p.Environment != "production" {
		return true
	}
	if p.TokenHash == "" || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(p.TokenHash), []byte(token)) == nil
}

// Handler wraps the cost and speech services for HTTP handling.
type Handler struct {
	costs  *app.CostService
	speech *app.SpeechService // nil when no upstream is configured
	logger zerolog.Logger

	// Hot-reloadable admin policy; read by request goroutines while the
	// config reload goroutine swaps it.
	admin atomic.Pointer[AdminPolicy]
}

// NewHandler creates a new HTTP handler.
func NewHandler(costs *app.CostService, speechSvc *app.SpeechService, admin AdminPolicy, logger zerolog.Logger) *Handler {
	h := &Handler{
		costs:  costs,
		speech: speechSvc,
		logger: logger,
	}
	h.SetAdminPolicy(admin)
	return h
}

// SetAdminPolicy replaces the admin policy.
// Thread-safe; called from the config reload hook.
func (h *Handler) SetAdminPolicy(p AdminPolicy) {
	h.admin.Store(&p)
}

// adminPolicy returns the current admin policy.
func (h *Handler) adminPolicy() AdminPolicy {
	return *h.admin.Load()
}

// resolveUser derives the ledger key for a request: explicit X-User-ID
// header first, then the remote address.
func (h *Handler) resolveUser(r *http.Request) string {
	return h.costs.ResolveIdentity(identity.Request{
		Explicit:   r.Header.Get("X-User-ID"),
		RemoteAddr: r.RemoteAddr,
	})
}

// GetCost handles GET /api/cost.
func (h *Handler) GetCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := h.resolveUser(r)

	detail, err := h.costs.Session(ctx, userID)
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	h.writeSnapshot(w, r, detail)
}

// PostCost handles POST /api/cost: reset and reset_global actions.
func (h *Handler) PostCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req costActionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	switch req.Action {
	case "reset":
		userID := h.resolveUser(r)
		detail, err := h.costs.ResetSession(ctx, userID)
		if err != nil {
			h.writeInternalError(w, err)
			return
		}
		h.writeSnapshot(w, r, detail)

	case "reset_global":
		if !h.adminPolicy().Allows(extractBearerToken(r)) {
			h.logger.Warn().
				Str("remote_addr", r.RemoteAddr).
				Msg("unauthorized global ledger reset attempt")
			writeError(w, http.StatusForbidden, "forbidden",
				"global ledger reset is not permitted in this environment")
			return
		}
		if err := h.costs.ResetGlobalMonthly(ctx); err != nil {
			h.writeInternalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		writeError(w, http.StatusBadRequest, "bad_request",
			"action must be \"reset\" or \"reset_global\"")
	}
}

// Synthesize handles POST /api/tts: a guarded call to the paid speech upstream.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.speech == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "no speech upstream configured")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "input must not be empty")
		return
	}

	explicit := req.UserID
	if explicit == "" {
		explicit = r.Header.Get("X-User-ID")
	}
	userID := h.costs.ResolveIdentity(identity.Request{
		Explicit:   explicit,
		RemoteAddr: r.RemoteAddr,
	})

	result, err := h.speech.Synthesize(ctx, userID, speech.Request{
		Input:  req.Input,
		Voice:  req.Voice,
		Model:  req.Model,
		Format: req.Format,
	})
	if err != nil {
		if te, ok := cost.IsThresholdError(err); ok {
			writeThresholdError(w, te)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("synthesis upstream failed")
		writeError(w, http.StatusBadGateway, "upstream_error", "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("X-Session-Cost", result.Cost.String())
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

// writeSnapshot writes the full cost snapshot for a session.
func (h *Handler) writeSnapshot(w http.ResponseWriter, r *http.Request, detail cost.SessionDetail) {
	ctx := r.Context()

	global, err := h.costs.GlobalMonthlyCost(ctx)
	if err != nil {
		h.writeInternalError(w, err)
		return
	}
	reached, err := h.costs.ThresholdReached(ctx, detail.UserID)
	if err != nil {
		h.writeInternalError(w, err)
		return
	}

	byService := detail.CostsByService
	if byService == nil {
		byService = map[string]money.Amount{}
	}

	writeJSON(w, http.StatusOK, CostResponse{
		UserID:             detail.UserID,
		SessionCost:        detail.TotalCost,
		CostsByService:     byService,
		SessionStartTime:   detail.SessionStartTime,
		EntryCount:         detail.EntryCount(),
		GlobalMonthlyCost:  global,
		Threshold:          h.costs.Settings().Threshold,
		IsThresholdReached: reached,
	})
}

func (h *Handler) writeInternalError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Msg("internal error")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// Health returns a simple liveness check.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version returns the service version.
func Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: "dev",
		Service: "costgate",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{
		Code:    code,
		Message: message,
	}})
}

// writeThresholdError maps a threshold rejection to 402 with the numbers
// the caller needs to react.
func writeThresholdError(w http.ResponseWriter, te *cost.ThresholdError) {
	current := te.Current
	threshold := te.Threshold
	writeJSON(w, http.StatusPaymentRequired, ErrorResponseBody{Error: ErrorDetail{
		Code:      "threshold_exceeded",
		Message:   "session cost threshold reached",
		Current:   &current,
		Threshold: &threshold,
	}})
}

// extractBearerToken returns the token from an Authorization: Bearer header.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // Optional handler for the metrics endpoint
	MetricsPath    string       // Defaults to /metrics
}

// NewRouter creates the main HTTP router.
func NewRouter(h *Handler, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(h, logger, RouterConfig{})
}

// NewRouterWithConfig creates the main HTTP router with optional config.
func NewRouterWithConfig(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Get("/health", Health)
	r.Get("/health/live", Health)
	r.Get("/version", Version)

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if cfg.MetricsHandler != nil {
		r.Handle(metricsPath, cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle(metricsPath, promhttp.Handler())
	}

	r.Get("/api/cost", h.GetCost)
	r.Post("/api/cost", h.PostCost)
	r.Post("/api/tts", h.Synthesize)

	return r
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := statusLabel(ww.Status())
			m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
