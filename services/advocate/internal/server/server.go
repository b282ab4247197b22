package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"advocateai/internal/metrics"
	"advocateai/internal/util"
	"advocateai/pkg/domain"
	"advocateai/services/advocate/internal/app"
)

// Identifier resolves a bearer token to the calling user.
type Identifier interface {
	Identify(ctx context.Context, token string) (domain.Identity, error)
}

// Limiter is a per-key request quota.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Verifier Identifier
	// ChatLimiter and DocumentLimiter are optional. Nil means unlimited.
	ChatLimiter     Limiter
	DocumentLimiter Limiter
	Metrics         *metrics.Metrics
	AllowedOrigins  []string
	TrustedProxies  *util.TrustedProxies
	// Ready reports dependency health for /readyz.
	Ready func(ctx context.Context) error
}

// Server exposes HTTP endpoints for the advocate service.
type Server struct {
	app             *app.App
	verifier        Identifier
	chatLimiter     Limiter
	documentLimiter Limiter
	metrics         *metrics.Metrics
	allowedOrigins  []string
	trusted         *util.TrustedProxies
	ready           func(ctx context.Context) error
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires app")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("server requires token verifier")
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	s := &Server{
		app:             cfg.App,
		verifier:        cfg.Verifier,
		chatLimiter:     cfg.ChatLimiter,
		documentLimiter: cfg.DocumentLimiter,
		metrics:         m,
		allowedOrigins:  cfg.AllowedOrigins,
		trusted:         cfg.TrustedProxies,
		ready:           cfg.Ready,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("advocate", s.trusted, util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	s.mux.Handle("/metrics", s.metrics.Handler())

	// chat
	s.mux.Handle("/api/chat", s.withUser(s.handleChat))
	s.mux.Handle("/api/conversations", s.withUser(s.handleConversations))
	s.mux.Handle("/api/conversations/", s.withUser(s.handleConversationByID))

	// documents
	s.mux.Handle("/api/documents", s.withUser(s.handleDocuments))
	s.mux.Handle("/api/documents/upload", s.withUser(s.handleUpload))
	s.mux.Handle("/api/documents/process", s.withUser(s.handleProcess))
	s.mux.Handle("/api/documents/", s.withUser(s.handleDocumentByID))

	s.mux.Handle("/api/profile", s.withUser(s.handleProfile))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			util.LoggerFromContext(r.Context()).Warn("readiness check failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, err := s.verifier.Identify(r.Context(), token)
		if err != nil || strings.TrimSpace(id.UserID) == "" {
			util.LoggerFromContext(r.Context()).Info("token rejected", "err", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", id.UserID))
		next(w, r.WithContext(ctx), id)
	})
}

// allow applies limiter to the caller and writes 429 when over quota.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, limiter Limiter, route, userID string) bool {
	if limiter == nil {
		return true
	}
	ok, retry := limiter.Allow(r.Context(), userID)
	if ok {
		return true
	}
	s.metrics.RateLimited.WithLabelValues(route).Inc()
	if retry > 0 {
		secs := int((retry + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	p, err := s.app.GetProfile(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

// writeAppError maps application errors to HTTP responses. Internal details
// are logged and never sent to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), app.ErrInvalidArgument.Error()+": "))
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(r.URL.Path))
	case errors.Is(err, app.ErrPaymentRequired):
		writeError(w, http.StatusPaymentRequired, "no credits remaining")
	case errors.Is(err, app.ErrInvalidState):
		writeError(w, http.StatusConflict, strings.TrimPrefix(err.Error(), app.ErrInvalidState.Error()+": "))
	case errors.Is(err, app.ErrExtractionFailed):
		writeError(w, http.StatusInternalServerError, "extraction failed")
	case errors.Is(err, app.ErrAnalysisFailed):
		writeError(w, http.StatusInternalServerError, "analysis failed")
	case errors.Is(err, context.DeadlineExceeded):
		util.LoggerFromContext(r.Context()).Error("upstream timeout", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusGatewayTimeout, "upstream timeout")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func notFoundMessage(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/documents"):
		return "document not found"
	case strings.HasPrefix(path, "/api/conversations"), path == "/api/chat":
		return "conversation not found"
	default:
		return "not found"
	}
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "no credits remaining":
		return "CHAT_CREDITS_EXHAUSTED"
	case message == "conversation not found":
		return "CHAT_CONVERSATION_NOT_FOUND"
	case message == "document not found":
		return "DOCUMENT_NOT_FOUND"
	case message == "extraction failed":
		return "DOCUMENT_EXTRACTION_FAILED"
	case message == "analysis failed":
		return "DOCUMENT_ANALYSIS_FAILED"
	case strings.Contains(message, "file type not supported"):
		return "DOCUMENT_UNSUPPORTED_FILE_TYPE"
	case strings.Contains(message, "file size too large"):
		return "DOCUMENT_FILE_TOO_LARGE"
	case strings.Contains(message, "file is required"):
		return "DOCUMENT_FILE_REQUIRED"
	case message == "rate limit exceeded":
		return "SYSTEM_RATE_LIMITED"
	case message == "upstream timeout":
		return "SYSTEM_UPSTREAM_TIMEOUT"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not ready":
		return "SYSTEM_NOT_READY"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "DOCUMENT_INVALID_STATE"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

// pathID returns the single path segment after prefix, or "" when the path
// has none or more than one.
func pathID(path, prefix string) string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}
