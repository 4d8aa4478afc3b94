package database

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// HealthCheckResult is the outcome of the latest check
type HealthCheckResult struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// HealthChecker pings the database and remembers the result
type HealthChecker struct {
	db        *sql.DB
	timeout   time.Duration
	isHealthy bool
	lastCheck time.Time
	lastError error
	latency   time.Duration
	mu        sync.RWMutex
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB) *HealthChecker {
	return &HealthChecker{
		db:      db,
		timeout: 3 * time.Second,
	}
}

// Check pings the database once
func (hc *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.lastCheck = time.Now()
	hc.latency = time.Since(start)
	hc.lastError = err
	hc.isHealthy = err == nil

	return err
}

// IsHealthy reports the result of the latest check
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// Result returns the latest check as a serializable value
func (hc *HealthChecker) Result() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Healthy:      hc.isHealthy,
		LastCheck:    hc.lastCheck,
		ResponseTime: hc.latency.String(),
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	return result
}
