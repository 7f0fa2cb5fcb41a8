package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is anything reachable with a single round trip.
type Pinger interface {
	Heartbeat(ctx context.Context) error
}

// ChromaChecker checks vector store connectivity.
type ChromaChecker struct {
	client  Pinger
	logger  *zap.Logger
	timeout time.Duration
}

// NewChromaChecker creates a Chroma health checker.
func NewChromaChecker(client Pinger, logger *zap.Logger) *ChromaChecker {
	return &ChromaChecker{client: client, logger: logger, timeout: 5 * time.Second}
}

func (c *ChromaChecker) Name() string           { return "chroma" }
func (c *ChromaChecker) IsCritical() bool       { return true }
func (c *ChromaChecker) Timeout() time.Duration { return c.timeout }

func (c *ChromaChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "chroma",
		Critical:  true,
		Timestamp: start,
	}

	err := c.client.Heartbeat(ctx)
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Chroma heartbeat failed"
		return result
	}

	if result.Duration > 200*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Chroma responding but with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Chroma healthy"
	}
	result.Details = map[string]any{"latency_ms": result.Duration.Milliseconds()}
	return result
}

// RedisChecker checks the optional embedding cache. Redis being down only
// degrades the service; the in-process LRU keeps working.
type RedisChecker struct {
	client  *redis.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client *redis.Client, logger *zap.Logger) *RedisChecker {
	return &RedisChecker{client: client, logger: logger, timeout: 5 * time.Second}
}

func (r *RedisChecker) Name() string           { return "redis" }
func (r *RedisChecker) IsCritical() bool       { return false }
func (r *RedisChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "redis",
		Critical:  false,
		Timestamp: start,
	}

	err := r.client.Ping(ctx).Err()
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Redis ping failed"
		return result
	}

	result.Status = StatusHealthy
	result.Message = "Redis healthy"
	result.Details = map[string]any{"latency_ms": result.Duration.Milliseconds()}
	return result
}
