package scoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Model: "gpt-4.1-mini"}.Enabled())
	assert.True(t, Config{APIKey: "sk-test"}.Enabled())
}

func TestHandler_RejectsEmptyText(t *testing.T) {
	s := New(Config{APIKey: "sk-test"})

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", "{"},
		{"missing text", `{}`},
		{"blank text", `{"text": ""}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/score-writing", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			s.Handler()(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"text is required"}`, rec.Body.String())
		})
	}
}

func TestHandler_ForwardsToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"object": "response",
			"status": "completed",
			"model": "gpt-4.1-mini",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"role": "assistant",
				"status": "completed",
				"content": [{"type": "output_text", "text": "Band 7. Coherent response.", "annotations": []}]
			}]
		}`))
	}))
	defer upstream.Close()

	s := New(Config{APIKey: "sk-test", BaseURL: upstream.URL})

	req := httptest.NewRequest(http.MethodPost, "/api/score-writing",
		strings.NewReader(`{"text": "The quick brown fox jumps over the lazy dog."}`))
	rec := httptest.NewRecorder()
	s.Handler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feedback":"Band 7. Coherent response."}`, rec.Body.String())
}

func TestHandler_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))
	defer upstream.Close()

	s := New(Config{APIKey: "sk-test", BaseURL: upstream.URL})

	req := httptest.NewRequest(http.MethodPost, "/api/score-writing",
		strings.NewReader(`{"text": "sample"}`))
	rec := httptest.NewRecorder()
	s.Handler()(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"scoring service unavailable"}`, rec.Body.String())
}
