// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"

	"github.com/jeranaias/ragchat/internal/stream"
)

// Chat request defaults.
const (
	DefaultMaxNewTokens = 10000
	DefaultTemperature  = 0.7
	DefaultTopK         = 5
)

// ChatRequest is one chat turn.
type ChatRequest struct {
	SessionID    string  `json:"session_id" validate:"required"`
	Message      string  `json:"message" validate:"required"`
	MaxNewTokens int     `json:"max_new_tokens" validate:"min=1,max=32768"`
	Temperature  float64 `json:"temperature" validate:"gte=0,lte=2"`
	DoSample     bool    `json:"do_sample"`
	UseRAG       bool    `json:"use_rag"`
	TopK         int     `json:"top_k" validate:"min=1,max=50"`
}

// DefaultChatRequest returns a request with the default generation
// parameters and retrieval off.
func DefaultChatRequest(sessionID, message string) ChatRequest {
	return ChatRequest{
		SessionID:    sessionID,
		Message:      message,
		MaxNewTokens: DefaultMaxNewTokens,
		Temperature:  DefaultTemperature,
		DoSample:     true,
		UseRAG:       false,
		TopK:         DefaultTopK,
	}
}

// Validate checks the request parameters.
func (r ChatRequest) Validate() error {
	return validateRequest(r)
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is an open answer stream. It yields semantic events until a
// terminal event or the end of the body, then io.EOF. Close must be called
// to release the connection.
type Stream struct {
	*stream.Interpreter
	body io.ReadCloser
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// StreamChat sends a chat turn and returns the answer stream. Failures
// before the stream opens are returned as *TransportError; validation
// failures as *ValidationError.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body, err := c.openStream(ctx, "send message", "/chat/stream", req)
	if err != nil {
		return nil, err
	}
	return &Stream{
		Interpreter: stream.NewInterpreter(stream.NewDecoder(body), c.logger),
		body:        body,
	}, nil
}

// openStream posts body and returns the event-stream response body.
func (c *Client) openStream(ctx context.Context, op, path string, body any) (io.ReadCloser, error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Connection", "keep-alive")

	resp, err := c.send(c.streamClient, op, httpReq)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
