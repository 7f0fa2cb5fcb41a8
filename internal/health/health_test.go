package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubChecker struct {
	name     string
	status   CheckStatus
	critical bool
}

func (s *stubChecker) Name() string           { return s.name }
func (s *stubChecker) IsCritical() bool       { return s.critical }
func (s *stubChecker) Timeout() time.Duration { return time.Second }
func (s *stubChecker) Check(_ context.Context) CheckResult {
	return CheckResult{Component: s.name, Status: s.status, Critical: s.critical, Timestamp: time.Now()}
}

func TestOverallFoldsStatuses(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(&stubChecker{name: "a", status: StatusHealthy, critical: true})
	m.Register(&stubChecker{name: "b", status: StatusHealthy})

	overall := m.Overall(context.Background())
	if overall.Status != StatusHealthy || !overall.Ready {
		t.Errorf("expected healthy, got %+v", overall)
	}

	// Non-critical failure degrades.
	m.Register(&stubChecker{name: "b", status: StatusUnhealthy})
	overall = m.Overall(context.Background())
	if overall.Status != StatusDegraded || !overall.Ready {
		t.Errorf("expected degraded but ready, got %+v", overall)
	}

	// Critical failure makes the service unhealthy and not ready.
	m.Register(&stubChecker{name: "a", status: StatusUnhealthy, critical: true})
	overall = m.Overall(context.Background())
	if overall.Status != StatusUnhealthy || overall.Ready {
		t.Errorf("expected unhealthy and not ready, got %+v", overall)
	}
}

type stubPinger struct{ err error }

func (s *stubPinger) Heartbeat(_ context.Context) error { return s.err }

func TestChromaChecker(t *testing.T) {
	ok := NewChromaChecker(&stubPinger{}, zap.NewNop())
	if res := ok.Check(context.Background()); res.Status != StatusHealthy {
		t.Errorf("expected healthy, got %+v", res)
	}

	down := NewChromaChecker(&stubPinger{err: errors.New("refused")}, zap.NewNop())
	if res := down.Check(context.Background()); res.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %+v", res)
	}
}

func TestHandlerEndpoints(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(&stubChecker{name: "chroma", status: StatusHealthy, critical: true})

	mux := http.NewServeMux()
	NewHandler(m).RegisterRoutes(mux)

	for _, path := range []string{"/health", "/health/detailed", "/readiness", "/liveness"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	// Critical failure flips /health and /readiness to 503.
	m.Register(&stubChecker{name: "chroma", status: StatusUnhealthy, critical: true})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected string status, got %v", body["status"])
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/liveness", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness must stay 200, got %d", rec.Code)
	}
}
