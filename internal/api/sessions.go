// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/jeranaias/ragchat/internal/model"
)

// CreateSession asks the backend for a new session. metadata may be nil.
func (c *Client) CreateSession(ctx context.Context, metadata map[string]any) (*model.Session, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	var s model.Session
	if err := c.doJSON(ctx, "create session", http.MethodPost, "/sessions", metadata, &s); err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, &TransportError{Op: "create session", StatusCode: http.StatusOK, Err: errors.New("response has no session_id")}
	}
	return &s, nil
}

// NewSessionID creates a session and returns only its id. It lets the
// client serve as a session.Creator.
func (c *Client) NewSessionID(ctx context.Context) (string, error) {
	s, err := c.CreateSession(ctx, map[string]any{"client": userAgent})
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// GetMessages returns the backend's message history for a session.
func (c *Client) GetMessages(ctx context.Context, sessionID string) (*model.MessageHistory, error) {
	if sessionID == "" {
		return nil, ErrEmptyID
	}
	var h model.MessageHistory
	path := "/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.doJSON(ctx, "get messages", http.MethodGet, path, nil, &h); err != nil {
		return nil, err
	}
	if h.SessionID == "" {
		h.SessionID = sessionID
	}
	return &h, nil
}
