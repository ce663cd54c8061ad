// Package scoring proxies candidate writing samples to an OpenAI-compatible
// text-scoring API. The proxy is stateless and holds no grading logic of its
// own: the upstream model's feedback is returned verbatim.
package scoring

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// defaultModel is used when no model is configured.
const defaultModel = "gpt-4.1-mini"

// examinerInstructions frame the upstream model as a writing examiner.
const examinerInstructions = "You are an English examiner. Reject nonsense text. " +
	"Score grammar, coherence and task completion."

// Config configures the scorer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether the scorer has an upstream credential.
func (c Config) Enabled() bool {
	return c.APIKey != ""
}

// Scorer forwards writing samples to the upstream scoring API.
type Scorer struct {
	client openai.Client
	model  string
}

// New creates a Scorer from the given config.
func New(cfg Config) *Scorer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Scorer{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// scoreRequest is the body for POST /api/score-writing.
type scoreRequest struct {
	Text string `json:"text"`
}

// scoreResponse carries the upstream feedback.
type scoreResponse struct {
	Feedback string `json:"feedback"`
}

// Handler returns the HTTP handler for the writing-score endpoint.
func (s *Scorer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		resp, err := s.client.Responses.New(r.Context(), responses.ResponseNewParams{
			Model:        shared.ResponsesModel(s.model),
			Instructions: openai.String(examinerInstructions),
			Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Text)},
		})
		if err != nil {
			slog.Error("scoring: upstream request failed", "error", err)
			writeError(w, http.StatusBadGateway, "scoring service unavailable")
			return
		}

		writeJSON(w, http.StatusOK, scoreResponse{Feedback: resp.OutputText()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
