// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/jeranaias/ragchat/internal/model"
)

// AnalysisRequest asks the backend to analyze a topic for a presentation.
type AnalysisRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Topic     string `json:"topic" validate:"required,max=500"`
}

// ListPresentations returns the presentations generated in a session.
func (c *Client) ListPresentations(ctx context.Context, sessionID string) ([]model.Presentation, error) {
	if sessionID == "" {
		return nil, ErrEmptyID
	}
	var out struct {
		Presentations []model.Presentation `json:"presentations"`
	}
	path := "/sessions/" + url.PathEscape(sessionID) + "/presentations"
	if err := c.doJSON(ctx, "list presentations", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Presentations == nil {
		out.Presentations = []model.Presentation{}
	}
	return out.Presentations, nil
}

// AnalyzeTopic starts a topic analysis and returns the raw event-stream
// body. The caller must close it.
func (c *Client) AnalyzeTopic(ctx context.Context, req AnalysisRequest) (io.ReadCloser, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return c.openStream(ctx, "analyze topic", "/presentation/analyze", req)
}
