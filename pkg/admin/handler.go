// Package admin provides REST API endpoints for administrative operations:
// exam window management, session issuance and reporting views.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/proctorhq/examgate/pkg/examcfg"
	"github.com/proctorhq/examgate/pkg/session"
)

// historyLimit is the maximum number of config revisions to return.
const historyLimit = 50

// Handler provides the admin REST API.
type Handler struct {
	mux        *http.ServeMux
	config     examcfg.Store
	sessions   *session.Service
	now        func() time.Time
	authMiddle func(http.Handler) http.Handler
}

// Config configures an admin Handler.
type Config struct {
	ConfigStore examcfg.Store
	Sessions    *session.Service
	Auth        Authenticator

	// Now supplies the handler clock; defaults to time.Now.
	Now func() time.Time
}

// NewHandler creates a new admin API handler with authentication applied to
// every route.
func NewHandler(cfg Config) *Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	h := &Handler{
		mux:        http.NewServeMux(),
		config:     cfg.ConfigStore,
		sessions:   cfg.Sessions,
		now:        now,
		authMiddle: RequireAdmin(cfg.Auth),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.authMiddle(h.mux).ServeHTTP(w, r)
}

// registerRoutes registers all admin API routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/admin/config", h.getConfig)
	h.mux.HandleFunc("POST /api/admin/config", h.updateConfig)
	h.mux.HandleFunc("GET /api/admin/config/history", h.configHistory)
	h.mux.HandleFunc("POST /api/admin/create-session", h.createSession)
	h.mux.HandleFunc("GET /api/admin/results", h.listResults)
	h.mux.HandleFunc("GET /api/admin/candidates", h.listCandidates)
}

// getConfig handles GET /api/admin/config.
//
// @Summary      Get exam window
// @Produce      json
// @Success      200  {object}  examcfg.Snapshot
// @Security     BasicAuth
// @Router       /api/admin/config [get]
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Load(r.Context())
	if err != nil {
		slog.Error("admin: loading exam config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	writeJSON(w, http.StatusOK, cfg.SnapshotAt(h.now()))
}

// updateConfigRequest is the body for POST /api/admin/config.
type updateConfigRequest struct {
	OpenAtUTC       *int64 `json:"openAtUtc"`
	DurationSeconds *int64 `json:"durationSeconds"`
}

// updateConfig handles POST /api/admin/config. Both fields are required: the
// update fully replaces the prior window, there is no partial merge.
//
// @Summary      Replace exam window
// @Accept       json
// @Produce      json
// @Success      200  {object}  examcfg.Snapshot
// @Failure      400  {object}  map[string]string
// @Security     BasicAuth
// @Router       /api/admin/config [post]
func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, examcfg.ErrInvalidConfig.Error())
		return
	}
	if req.OpenAtUTC == nil || req.DurationSeconds == nil {
		writeError(w, http.StatusBadRequest, examcfg.ErrInvalidConfig.Error())
		return
	}

	cfg := examcfg.AppConfig{OpenAtUTC: *req.OpenAtUTC, DurationSeconds: *req.DurationSeconds}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta := examcfg.SaveMeta{}
	if user := GetUser(r.Context()); user != nil {
		meta.Author = user.Username
	}
	if err := h.config.Save(r.Context(), cfg, meta); err != nil {
		slog.Error("admin: saving exam config", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}

	slog.Info("exam window updated",
		"open_at_utc", cfg.OpenAtUTC,
		"duration_seconds", cfg.DurationSeconds,
		"author", meta.Author)

	writeJSON(w, http.StatusOK, cfg.SnapshotAt(h.now()))
}

// configHistory handles GET /api/admin/config/history.
//
// @Summary      Exam window revision history
// @Produce      json
// @Success      200  {array}  examcfg.Revision
// @Security     BasicAuth
// @Router       /api/admin/config/history [get]
func (h *Handler) configHistory(w http.ResponseWriter, r *http.Request) {
	revisions, err := h.config.History(r.Context(), historyLimit)
	if err != nil {
		slog.Error("admin: loading config history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load config history")
		return
	}
	if revisions == nil {
		revisions = []examcfg.Revision{}
	}
	writeJSON(w, http.StatusOK, revisions)
}

// createSessionRequest is the body for POST /api/admin/create-session.
type createSessionRequest struct {
	CandidateName string `json:"candidateName"`
}

// createSession handles POST /api/admin/create-session.
//
// @Summary      Issue a session token for a candidate
// @Accept       json
// @Produce      json
// @Success      200  {object}  session.Created
// @Security     BasicAuth
// @Router       /api/admin/create-session [post]
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// An empty or absent body issues a session for the default candidate name.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.CandidateName = ""
	}

	created, err := h.sessions.CreateSession(r.Context(), req.CandidateName)
	if err != nil {
		slog.Error("admin: creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

// listResults handles GET /api/admin/results.
//
// @Summary      List submitted answers and timestamps
// @Produce      json
// @Success      200  {array}  session.ResultView
// @Security     BasicAuth
// @Router       /api/admin/results [get]
func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.sessions.ListResults(r.Context())
	if err != nil {
		slog.Error("admin: listing results", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	if results == nil {
		results = []session.ResultView{}
	}
	writeJSON(w, http.StatusOK, results)
}

// listCandidates handles GET /api/admin/candidates. An optional status query
// parameter narrows the list to one lifecycle state.
//
// @Summary      List candidate sessions with presence telemetry
// @Produce      json
// @Param        status  query  string  false  "created, started or submitted"
// @Success      200  {array}  session.CandidateView
// @Security     BasicAuth
// @Router       /api/admin/candidates [get]
func (h *Handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	filter := session.Filter{Status: session.Status(r.URL.Query().Get("status"))}

	candidates, err := h.sessions.ListCandidates(r.Context(), filter)
	if err != nil {
		slog.Error("admin: listing candidates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	if candidates == nil {
		candidates = []session.CandidateView{}
	}
	writeJSON(w, http.StatusOK, candidates)
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
