package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_StateTransitions(t *testing.T) {
	c := NewChecker("sqlite")

	assert.False(t, c.IsReady())
	assert.Equal(t, "starting", c.State())

	c.SetReady()
	assert.True(t, c.IsReady())
	assert.Equal(t, "ready", c.State())

	c.SetDraining()
	assert.False(t, c.IsReady())
	assert.Equal(t, "draining", c.State())
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	c := NewChecker("sqlite")

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker("postgres")
	probe := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
		return rec
	}

	rec := probe()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"starting","db":"postgres"}`, rec.Body.String())

	c.SetReady()
	rec = probe()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","db":"postgres"}`, rec.Body.String())

	c.SetDraining()
	rec = probe()
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"draining","db":"postgres"}`, rec.Body.String())
}
