// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat client.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a session's conversation.
type Message struct {
	// Identity
	ID        string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	CreatedAt Timestamp `json:"created_at"`

	// Content
	Content string `json:"content"`

	// Retrieval context attached to an assistant answer
	Citations []Citation `json:"rag_context,omitempty"`

	// Token accounting reported by the backend, if any
	TokenUsage map[string]any `json:"token_usage,omitempty"`

	// Streaming state (not persisted)
	IsStreaming bool `json:"-"`
}

// NewUserMessage creates a user message. User messages never change after
// creation.
func NewUserMessage(sessionID, content string) *Message {
	return &Message{
		ID:        generateID(RoleUser),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: NewTimestamp(time.Now()),
	}
}

// NewAssistantMessage creates an empty assistant message that is filled in
// as the answer streams.
func NewAssistantMessage(sessionID string) *Message {
	return &Message{
		ID:          generateID(RoleAssistant),
		SessionID:   sessionID,
		Role:        RoleAssistant,
		CreatedAt:   NewTimestamp(time.Now()),
		IsStreaming: true,
	}
}

// Clone returns a copy of the message that shares no slices with the
// original.
func (m *Message) Clone() Message {
	c := *m
	if m.Citations != nil {
		c.Citations = make([]Citation, len(m.Citations))
		copy(c.Citations, m.Citations)
	}
	return c
}

// HasCitations reports whether retrieval context is attached.
func (m *Message) HasCitations() bool {
	return len(m.Citations) > 0
}

// generateID returns a role-prefixed unique message id.
func generateID(role Role) string {
	return role.String() + "_" + uuid.NewString()
}

// =============================================================================
// HISTORY
// =============================================================================

// MessageHistory is the backend's record of a session's messages.
type MessageHistory struct {
	SessionID  string    `json:"session_id"`
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
}
