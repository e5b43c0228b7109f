// Package health provides health check endpoints and dependency monitoring
// This file provides built-in health checkers for the engine's dependencies
package health

import (
	"context"
	"time"

	"github.com/attendly/attendly/internal/common/database"
)

// PostgresChecker checks the health of a PostgreSQL connection
type PostgresChecker struct {
	db       *database.PostgresDB
	critical bool
}

// NewPostgresChecker creates a new PostgresChecker (marked as critical)
func NewPostgresChecker(db *database.PostgresDB) *PostgresChecker {
	return &PostgresChecker{db: db, critical: true}
}

func (p *PostgresChecker) Name() string { return "database" }

func (p *PostgresChecker) IsCritical() bool { return p.critical }

// Check tests the PostgreSQL connection by running SELECT 1 and measuring latency
func (p *PostgresChecker) Check(ctx context.Context) ComponentStatus {
	start := time.Now()

	var one int
	err := p.db.Pool.QueryRow(ctx, "SELECT 1").Scan(&one)
	latency := time.Since(start)

	if err != nil {
		return ComponentStatus{
			Status:    "down",
			LatencyMS: float64(latency.Milliseconds()),
			Details:   err.Error(),
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}

	status := "up"
	details := ""
	if latency > 500*time.Millisecond {
		status = "degraded"
		details = "high latency"
	}

	return ComponentStatus{
		Status:    status,
		LatencyMS: float64(latency.Milliseconds()),
		Details:   details,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// RedisChecker checks the health of the signal cache's Redis connection.
// Non-critical by default: the engine degrades to cache misses when Redis
// is away, so readiness should not flap with it.
type RedisChecker struct {
	redis    *database.RedisClient
	critical bool
}

func NewRedisChecker(redis *database.RedisClient) *RedisChecker {
	return &RedisChecker{redis: redis, critical: false}
}

func (r *RedisChecker) Name() string { return "redis" }

func (r *RedisChecker) IsCritical() bool { return r.critical }

// Check tests the Redis connection by running PING and measuring latency
func (r *RedisChecker) Check(ctx context.Context) ComponentStatus {
	start := time.Now()

	_, err := r.redis.Client.Ping(ctx).Result()
	latency := time.Since(start)

	if err != nil {
		return ComponentStatus{
			Status:    "down",
			LatencyMS: float64(latency.Milliseconds()),
			Details:   err.Error(),
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}

	status := "up"
	details := ""
	if latency > 200*time.Millisecond {
		status = "degraded"
		details = "high latency"
	}

	return ComponentStatus{
		Status:    status,
		LatencyMS: float64(latency.Milliseconds()),
		Details:   details,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// ElasticsearchChecker checks the audit search index. Never critical:
// search is a dashboard convenience, not part of the decision path.
type ElasticsearchChecker struct {
	es *database.ElasticsearchClient
}

func NewElasticsearchChecker(es *database.ElasticsearchClient) *ElasticsearchChecker {
	return &ElasticsearchChecker{es: es}
}

func (e *ElasticsearchChecker) Name() string { return "elasticsearch" }

func (e *ElasticsearchChecker) IsCritical() bool { return false }

func (e *ElasticsearchChecker) Check(ctx context.Context) ComponentStatus {
	start := time.Now()
	err := e.es.Ping()
	latency := time.Since(start)

	if err != nil {
		return ComponentStatus{
			Status:    "down",
			LatencyMS: float64(latency.Milliseconds()),
			Details:   err.Error(),
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		}
	}

	return ComponentStatus{
		Status:    "up",
		LatencyMS: float64(latency.Milliseconds()),
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// FuncChecker allows creating a health checker from a function
type FuncChecker struct {
	name     string
	check    func(context.Context) ComponentStatus
	critical bool
}

// NewFuncChecker creates a checker from a function
func NewFuncChecker(name string, check func(context.Context) ComponentStatus, critical bool) *FuncChecker {
	return &FuncChecker{
		name:     name,
		check:    check,
		critical: critical,
	}
}

func (f *FuncChecker) Name() string { return f.name }

func (f *FuncChecker) IsCritical() bool { return f.critical }

func (f *FuncChecker) Check(ctx context.Context) ComponentStatus {
	return f.check(ctx)
}
