// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/stream"
)

// Frame types of an analysis stream.
const (
	FrameStart        = "start"
	FrameProgress     = "progress"
	FrameContentChunk = "content_chunk"
	FrameStepComplete = "step_complete"
	FrameComplete     = "complete"
	FrameError        = "error"
)

// Frame is one decoded analysis frame.
type Frame struct {
	Type     string          `json:"type"`
	Message  string          `json:"message,omitempty"`
	Step     string          `json:"step,omitempty"`
	Content  string          `json:"content,omitempty"`
	Analysis json.RawMessage `json:"analysis,omitempty"`
}

// Result is the outcome of an analysis.
type Result struct {
	// Content is the concatenated content_chunk text.
	Content string

	// Analysis is the structured analysis from the complete frame, if any.
	Analysis json.RawMessage

	// Steps lists the steps in the order they were reported.
	Steps []string

	// Completed is true when a complete frame arrived.
	Completed bool
}

// Backend is the subset of the API the service uses.
type Backend interface {
	ListPresentations(ctx context.Context, sessionID string) ([]model.Presentation, error)
	AnalyzeTopic(ctx context.Context, req api.AnalysisRequest) (io.ReadCloser, error)
}

// Service runs presentation operations against a backend.
type Service struct {
	backend Backend
	logger  *zap.Logger
}

// NewService creates a Service. A nil logger discards diagnostics.
func NewService(backend Backend, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, logger: logger}
}

// List returns the session's presentations.
func (s *Service) List(ctx context.Context, sessionID string) ([]model.Presentation, error) {
	return s.backend.ListPresentations(ctx, sessionID)
}

// Analyze runs a topic analysis, calling onFrame for every frame. An error
// frame ends the analysis with a *stream.ProtocolError; the partial result
// is still returned.
func (s *Service) Analyze(ctx context.Context, sessionID, topic string, onFrame func(Frame)) (Result, error) {
	body, err := s.backend.AnalyzeTopic(ctx, api.AnalysisRequest{
		SessionID: sessionID,
		Topic:     strings.TrimSpace(topic),
	})
	if err != nil {
		return Result{}, err
	}
	defer body.Close()
	return s.consume(ctx, stream.NewDecoder(body), onFrame)
}

func (s *Service) consume(ctx context.Context, dec *stream.Decoder, onFrame func(Frame)) (Result, error) {
	var res Result
	var content strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			res.Content = content.String()
			return res, err
		}

		line, err := dec.Next()
		if errors.Is(err, io.EOF) {
			res.Content = content.String()
			return res, nil
		}
		if err != nil {
			res.Content = content.String()
			return res, fmt.Errorf("read analysis stream: %w", err)
		}

		frame, ok := s.parse(line)
		if !ok {
			continue
		}
		if onFrame != nil {
			onFrame(frame)
		}

		switch frame.Type {
		case FrameProgress:
			if frame.Step != "" {
				res.Steps = append(res.Steps, frame.Step)
			}
		case FrameContentChunk:
			content.WriteString(frame.Content)
		case FrameComplete:
			res.Completed = true
			res.Analysis = frame.Analysis
			res.Content = content.String()
			return res, nil
		case FrameError:
			res.Content = content.String()
			msg := frame.Message
			if msg == "" {
				msg = "analysis failed"
			}
			return res, &stream.ProtocolError{Message: msg}
		}
	}
}

// parse decodes a data line. Other lines and malformed payloads are
// skipped.
func (s *Service) parse(line string) (Frame, bool) {
	if !strings.HasPrefix(line, stream.DataPrefix) {
		return Frame{}, false
	}
	data := strings.TrimSpace(line[len(stream.DataPrefix):])
	if data == "" || data == stream.DoneSentinel {
		return Frame{}, false
	}
	var f Frame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		s.logger.Warn("skipping malformed analysis frame",
			zap.Error(&stream.FrameParseError{Payload: data, Err: err}))
		return Frame{}, false
	}
	return f, true
}
