package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func() error { return errors.New("connection refused") })

	rec := probe(t, h, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessReportsDependencies(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func() error { return nil })

	rec := probe(t, h, "/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "up", resp.Checks["database"])

	// A failing dependency flips the report and the status code.
	h.RegisterCheck("database", func() error { return errors.New("connection refused") })
	rec = probe(t, h, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Contains(t, resp.Checks["database"], "connection refused")
}

func TestStatusReportsEnvironment(t *testing.T) {
	h := New("production")

	rec := probe(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "production", resp.Environment)
	assert.Equal(t, Version, resp.Version)
}
