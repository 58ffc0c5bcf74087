// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Session is a backend conversation session as returned on creation.
type Session struct {
	ID           string         `json:"session_id"`
	CreatedAt    Timestamp      `json:"created_at"`
	LastAccessed Timestamp      `json:"last_accessed"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// HealthStatus is the backend's self-reported health.
type HealthStatus struct {
	Status             string `json:"status"`
	Timestamp          string `json:"timestamp"`
	LLMServerAvailable bool   `json:"llm_server_available"`
	DatabaseConnected  bool   `json:"database_connected"`
}

// Healthy reports whether the backend declared itself healthy.
func (h HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// UnhealthyStatus is the status assumed when the health check itself fails.
func UnhealthyStatus() HealthStatus {
	return HealthStatus{Status: "unhealthy"}
}

// Presentation is a slide deck generated by the backend for a session.
type Presentation struct {
	ID          string    `json:"presentation_id"`
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	Topic       string    `json:"topic,omitempty"`
	MarpContent string    `json:"marp_content"`
	Theme       string    `json:"theme,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}
