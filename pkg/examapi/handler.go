// Package examapi provides the candidate-facing HTTP surface. Every session
// endpoint sits behind the exam gate; the public config endpoint does not,
// so clients can render countdowns before the window opens.
package examapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/proctorhq/examgate/pkg/examcfg"
	"github.com/proctorhq/examgate/pkg/gate"
	"github.com/proctorhq/examgate/pkg/session"
)

// notFoundMessage is the single body for every unknown-token response.
// Malformed and unknown tokens are deliberately indistinguishable.
const notFoundMessage = "Invalid or expired token"

// Handler provides the candidate REST API.
type Handler struct {
	mux      *http.ServeMux
	config   examcfg.Store
	sessions *session.Service
	now      func() time.Time
}

// Config configures a candidate Handler.
type Config struct {
	ConfigStore examcfg.Store
	Sessions    *session.Service

	// Now supplies the handler clock; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates the candidate API handler.
func NewHandler(cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	h := &Handler{
		mux:      http.NewServeMux(),
		config:   cfg.ConfigStore,
		sessions: cfg.Sessions,
		now:      now,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers candidate routes. The gate wraps each session
// route individually so it runs before any token is even read; the config
// route stays ungated.
func (h *Handler) registerRoutes() {
	gated := gate.Middleware(h.config, h.now)

	h.mux.HandleFunc("GET /api/config", h.getConfig)
	h.mux.Handle("GET /api/session/{token}", gated(http.HandlerFunc(h.getSession)))
	h.mux.Handle("POST /api/session/{token}/start", gated(http.HandlerFunc(h.startSession)))
	h.mux.Handle("POST /api/session/{token}/presence", gated(http.HandlerFunc(h.presence)))
	h.mux.Handle("POST /api/session/{token}/submit", gated(http.HandlerFunc(h.submit)))
}

// getConfig handles GET /api/config. It is public: candidates poll it for
// the window and the server clock before the exam opens.
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Load(r.Context())
	if err != nil {
		slog.Error("examapi: loading exam config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg.SnapshotAt(h.now()))
}

// getSession handles GET /api/session/{token}.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.GetForExam(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeSessionError(w, "resolving session", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// startSession handles POST /api/session/{token}/start.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.Start(r.Context(), r.PathValue("token"))
	if err != nil {
		h.writeSessionError(w, "starting session", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// presenceRequest is the body for POST /api/session/{token}/presence.
type presenceRequest struct {
	Status string `json:"status"`
}

// presence handles POST /api/session/{token}/presence. The status value is
// opaque telemetry; decode failures degrade to the default rather than
// rejecting the ping.
func (h *Handler) presence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.sessions.Presence(r.Context(), r.PathValue("token"), req.Status); err != nil {
		h.writeSessionError(w, "recording presence", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

// submitRequest is the body for POST /api/session/{token}/submit.
type submitRequest struct {
	Answers    json.RawMessage `json:"answers"`
	ClientMeta json.RawMessage `json:"clientMeta"`
}

// submit handles POST /api/session/{token}/submit. An empty body submits the
// defaults, but a body that fails to parse is rejected before the transition:
// submission is one-shot, so finalizing on a garbled payload would discard the
// candidate's answers for good.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := h.sessions.Submit(r.Context(), r.PathValue("token"), req.Answers, req.ClientMeta)
	if err != nil {
		h.writeSessionError(w, "submitting session", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeSessionError maps service errors to responses. Unknown tokens get the
// uniform 404 body; everything else is a generic 500 with the detail logged
// server-side only.
func (*Handler) writeSessionError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	slog.Error("examapi: "+op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
