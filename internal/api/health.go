// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/model"
)

// DefaultHealthInterval is how often HealthMonitor polls.
const DefaultHealthInterval = 30 * time.Second

// Health returns the backend's health report.
func (c *Client) Health(ctx context.Context) (model.HealthStatus, error) {
	var h model.HealthStatus
	if err := c.doJSON(ctx, "health check", http.MethodGet, "/health", nil, &h); err != nil {
		return model.UnhealthyStatus(), err
	}
	return h, nil
}

// =============================================================================
// HEALTH MONITOR
// =============================================================================

// HealthChecker is satisfied by *Client.
type HealthChecker interface {
	Health(ctx context.Context) (model.HealthStatus, error)
}

// HealthMonitor polls the backend and remembers the latest report.
type HealthMonitor struct {
	checker  HealthChecker
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	status   model.HealthStatus
	lastErr  error
	checked  time.Time
	onChange func(model.HealthStatus)
}

// NewHealthMonitor creates a monitor polling every interval. A
// non-positive interval selects DefaultHealthInterval.
func NewHealthMonitor(checker HealthChecker, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{
		checker:  checker,
		interval: interval,
		logger:   logger,
		status:   model.UnhealthyStatus(),
	}
}

// OnChange registers fn to run when the reported status string changes.
func (m *HealthMonitor) OnChange(fn func(model.HealthStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Check polls once and returns the report. A failed poll is recorded as
// unhealthy.
func (m *HealthMonitor) Check(ctx context.Context) model.HealthStatus {
	h, err := m.checker.Health(ctx)
	if err != nil {
		m.logger.Warn("health check failed", zap.Error(err))
		h = model.UnhealthyStatus()
	}

	m.mu.Lock()
	changed := h.Status != m.status.Status || m.checked.IsZero()
	m.status = h
	m.lastErr = err
	m.checked = time.Now()
	fn := m.onChange
	m.mu.Unlock()

	if changed && fn != nil {
		fn(h)
	}
	return h
}

// Run polls immediately and then every interval until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// HealthReport is the outcome of the latest poll.
type HealthReport struct {
	Status    model.HealthStatus
	Err       error
	CheckedAt time.Time
}

// Report returns the latest poll outcome. CheckedAt is zero before the
// first poll.
func (m *HealthMonitor) Report() HealthReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return HealthReport{Status: m.status, Err: m.lastErr, CheckedAt: m.checked}
}
