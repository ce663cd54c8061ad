package gate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/proctorhq/examgate/pkg/examcfg"
)

// rejection is the JSON body sent for locked and expired requests.
type rejection struct {
	Error     string `json:"error"`
	ServerNow int64  `json:"serverNow"`
	OpenAtUTC int64  `json:"openAtUtc"`
	EndAtUTC  int64  `json:"endAtUtc"`
}

// Middleware returns middleware that enforces the exam window. The config is
// read fresh from the store on every request: the clock advances and the
// admin may change the window mid-exam, so the decision is never cached.
// The now func defaults to time.Now when nil.
func Middleware(store examcfg.Store, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg, err := store.Load(r.Context())
			if err != nil {
				slog.Error("gate: loading exam config", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "gate_error"})
				return
			}

			d := Evaluate(now().UnixMilli(), cfg.OpenAtUTC, cfg.DurationSeconds)
			switch d.State {
			case Locked:
				writeRejection(w, http.StatusLocked, d)
			case Expired:
				writeRejection(w, http.StatusGone, d)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func writeRejection(w http.ResponseWriter, status int, d Decision) {
	writeJSON(w, status, rejection{
		Error:     d.State.String(),
		ServerNow: d.ServerNow,
		OpenAtUTC: d.OpenAtUTC,
		EndAtUTC:  d.EndAtUTC,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
