package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus represents the result of a health check
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the status as its string form.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CheckResult contains the result of a single component check.
type CheckResult struct {
	Component string         `json:"component"`
	Status    CheckStatus    `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Duration  time.Duration  `json:"duration"`
	Timestamp time.Time      `json:"timestamp"`
	Critical  bool           `json:"critical"`
}

// Checker defines the interface for health checks
type Checker interface {
	// Name returns the unique name of this health check
	Name() string

	// Check performs the health check and returns the result
	Check(ctx context.Context) CheckResult

	// IsCritical returns true if this check's failure should mark the service as unhealthy
	IsCritical() bool

	// Timeout returns the maximum duration this check should take
	Timeout() time.Duration
}

// OverallHealth represents the overall service health.
type OverallHealth struct {
	Status    CheckStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Ready     bool          `json:"ready"`
	Live      bool          `json:"live"`
}

// DetailedHealth provides per-component health information.
type DetailedHealth struct {
	Overall    OverallHealth          `json:"overall"`
	Components map[string]CheckResult `json:"components"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Manager runs registered checkers on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewManager creates an empty health manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{checkers: make(map[string]Checker), logger: logger}
}

// Register adds a checker. Later registrations replace earlier ones with
// the same name.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[c.Name()] = c
}

func (m *Manager) snapshot() []Checker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Overall runs every checker and folds results into one status. Any
// critical failure marks the service unhealthy; non-critical failures
// degrade it.
func (m *Manager) Overall(ctx context.Context) OverallHealth {
	start := time.Now()
	status := StatusHealthy
	message := "all checks passing"

	for _, c := range m.snapshot() {
		res := m.run(ctx, c)
		switch {
		case res.Status == StatusUnhealthy && c.IsCritical():
			status = StatusUnhealthy
			message = c.Name() + ": " + res.Message
		case res.Status != StatusHealthy && status == StatusHealthy:
			status = StatusDegraded
			message = c.Name() + ": " + res.Message
		}
	}

	return OverallHealth{
		Status:    status,
		Message:   message,
		Timestamp: start,
		Duration:  time.Since(start),
		Ready:     status != StatusUnhealthy,
		Live:      true,
	}
}

// Detailed runs every checker and returns per-component results.
func (m *Manager) Detailed(ctx context.Context) DetailedHealth {
	overall := m.Overall(ctx)
	components := make(map[string]CheckResult)
	for _, c := range m.snapshot() {
		components[c.Name()] = m.run(ctx, c)
	}
	return DetailedHealth{
		Overall:    overall,
		Components: components,
		Timestamp:  time.Now(),
	}
}

// IsReady reports whether the service can serve requests.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.Overall(ctx).Ready
}

func (m *Manager) run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()
	return c.Check(ctx)
}
