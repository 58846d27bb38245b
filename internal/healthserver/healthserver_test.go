// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

package healthserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baktainer/baktainer/internal/monitor"
	"github.com/baktainer/baktainer/internal/rotation"
	"github.com/baktainer/baktainer/internal/runtime"
)

type fakeRuntime struct {
	versionErr error
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]runtime.ContainerInfo, error) {
	return nil, nil
}

func (f *fakeRuntime) Exec(ctx context.Context, containerID string, cmd []string, env []string, out runtime.ExecOutput) error {
	return nil
}

func (f *fakeRuntime) Version(ctx context.Context) error {
	return f.versionErr
}

func newTestServer(runtimeClient runtime.Client) *Server {
	dir := "/tmp"
	mon := monitor.New()
	rot := rotation.New(dir, zerolog.Nop())
	return New(Config{Bind: "127.0.0.1", Port: 8080}, runtimeClient, mon, rot, zerolog.Nop())
}

func TestHandleHealthReportsHealthyWhenRuntimeReachable(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandleHealthReportsDegradedWhenRuntimeUnreachable(t *testing.T) {
	s := newTestServer(&fakeRuntime{versionErr: assertError{}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLiveAlwaysReturnsOK(t *testing.T) {
	s := newTestServer(&fakeRuntime{versionErr: assertError{}})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadyReturnsUnavailableWhenRuntimeDown(t *testing.T) {
	s := newTestServer(&fakeRuntime{versionErr: assertError{}})
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleStatusReturnsSummary(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "success_rate")
}

func TestHandleBackupsAndAlertsAreEmptyForFreshMonitor(t *testing.T) {
	s := newTestServer(&fakeRuntime{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/backups", nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backups":[]`)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	rec2 := httptest.NewRecorder()
	s.router().ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Contains(t, rec2.Body.String(), `"alerts":[]`)
}

func TestHandleDashboardIncludesSummary(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "summary")
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer(&fakeRuntime{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParseLimitClampsToMax(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5000", nil)
	assert.Equal(t, 1000, parseLimit(req, 100, 1000))
}

func TestParseLimitFallsBackOnGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=notanumber", nil)
	assert.Equal(t, 100, parseLimit(req, 100, 1000))
}

type assertError struct{}

func (assertError) Error() string { return "runtime unreachable" }
