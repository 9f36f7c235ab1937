package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeHealthChecker struct {
	err error
}

func (f fakeHealthChecker) Health(ctx context.Context) error {
	return f.err
}

func TestHealthHandler_Ready(t *testing.T) {
	handler := NewHealthHandler(fakeHealthChecker{}, fakeHealthChecker{})
	rr := httptest.NewRecorder()

	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHealthHandler_ReadyReportsUnhealthyDependency(t *testing.T) {
	handler := NewHealthHandler(fakeHealthChecker{}, fakeHealthChecker{err: errors.New("down")})
	rr := httptest.NewRecorder()

	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Services["redis"] != "unhealthy" || resp.Services["postgres"] != "healthy" {
		t.Fatalf("unexpected services: %+v", resp.Services)
	}
}

func TestHealthHandler_HealthAndLive(t *testing.T) {
	handler := NewHealthHandler(nil, nil)

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
