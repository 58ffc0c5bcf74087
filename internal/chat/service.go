// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ragchat/internal/api"
	"github.com/jeranaias/ragchat/internal/conversation"
	"github.com/jeranaias/ragchat/internal/documents"
	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/session"
)

var (
	// ErrSendInFlight is returned when a message is sent while an answer
	// is still streaming.
	ErrSendInFlight = errors.New("a message is already being answered")

	// ErrEmptyMessage is returned for a blank message.
	ErrEmptyMessage = errors.New("message is empty")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options are the generation and retrieval settings applied to new turns.
type Options struct {
	MaxNewTokens int
	Temperature  float64
	DoSample     bool
	UseRAG       bool
	TopK         int
}

// DefaultOptions returns the backend's default generation settings with
// retrieval off.
func DefaultOptions() Options {
	return Options{
		MaxNewTokens: api.DefaultMaxNewTokens,
		Temperature:  api.DefaultTemperature,
		DoSample:     true,
		UseRAG:       false,
		TopK:         api.DefaultTopK,
	}
}

// =============================================================================
// SERVICE
// =============================================================================

// Service owns the client-side state of one chat.
type Service struct {
	client     *api.Client
	sessions   *session.Manager
	docs       *documents.Cache
	transcript *conversation.Transcript
	logger     *zap.Logger

	mu       sync.Mutex
	opts     Options
	inFlight bool
}

// NewService wires a Service around client, persisting the session record
// in store. docOpts configure the document cache.
func NewService(client *api.Client, store session.Store, opts Options, logger *zap.Logger, docOpts ...documents.Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	transcript := conversation.NewTranscript()
	sessions := session.NewManager(store, client, session.WithLogger(logger.Named("session")))
	sessions.OnReset(transcript.Reset)

	docOpts = append([]documents.Option{documents.WithLogger(logger.Named("documents"))}, docOpts...)
	return &Service{
		client:     client,
		sessions:   sessions,
		docs:       documents.NewCache(client, docOpts...),
		transcript: transcript,
		logger:     logger,
		opts:       opts,
	}
}

// Sessions returns the session manager.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Documents returns the document cache.
func (s *Service) Documents() *documents.Cache { return s.docs }

// Transcript returns the local message list.
func (s *Service) Transcript() *conversation.Transcript { return s.transcript }

// Options returns the current settings.
func (s *Service) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// SetRAG turns retrieval on or off for later turns.
func (s *Service) SetRAG(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.UseRAG = on
}

// SetTopK sets how many chunks retrieval attaches.
func (s *Service) SetTopK(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.TopK = k
}

// Start resumes the stored session or creates one, then loads its history
// and documents concurrently. Failing to load either is logged, not
// returned.
func (s *Service) Start(ctx context.Context) (string, error) {
	_, resumed := s.sessions.Get()
	id, err := s.sessions.Ensure(ctx)
	if err != nil {
		return "", err
	}
	if !resumed {
		return id, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.LoadHistory(gctx); err != nil {
			s.logger.Warn("history load failed", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.docs.Load(gctx, id, false); err != nil {
			s.logger.Warn("document load failed", zap.Error(err))
		}
		return nil
	})
	_ = g.Wait()
	return id, nil
}

// NewSession replaces the current session with a fresh one and clears the
// transcript.
func (s *Service) NewSession(ctx context.Context) (string, error) {
	return s.sessions.Create(ctx)
}

// LoadHistory replaces the transcript with the backend's history of the
// current session.
func (s *Service) LoadHistory(ctx context.Context) error {
	id, ok := s.sessions.Get()
	if !ok {
		return nil
	}
	h, err := s.client.GetMessages(ctx, id)
	if err != nil {
		return err
	}
	s.transcript.Replace(h.Messages)
	return nil
}

// Send asks the backend to answer text and streams the answer into the
// transcript. onUpdate, if set, receives a snapshot after every change.
// Only one Send may run at a time; a concurrent call gets ErrSendInFlight.
func (s *Service) Send(ctx context.Context, text string, onUpdate conversation.UpdateFunc) (conversation.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Result{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return conversation.Result{}, ErrSendInFlight
	}
	s.inFlight = true
	opts := s.opts
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	sessionID, err := s.sessions.Ensure(ctx)
	if err != nil {
		return conversation.Result{}, err
	}
	s.sessions.Extend()

	user := model.NewUserMessage(sessionID, text)
	s.transcript.Append(*user)

	req := api.ChatRequest{
		SessionID:    sessionID,
		Message:      text,
		MaxNewTokens: opts.MaxNewTokens,
		Temperature:  opts.Temperature,
		DoSample:     opts.DoSample,
		UseRAG:       opts.UseRAG,
		TopK:         opts.TopK,
	}
	st, err := s.client.StreamChat(ctx, req)
	if err != nil {
		return conversation.Result{}, err
	}
	defer st.Close()

	answer := model.NewAssistantMessage(sessionID)
	s.transcript.Append(*answer)
	acc := conversation.NewAccumulator(answer, func(m model.Message) {
		s.transcript.Update(m)
		if onUpdate != nil {
			onUpdate(m)
		}
	})

	res, err := acc.Consume(ctx, st)
	s.logger.Debug("answer finished",
		zap.String("session_id", sessionID),
		zap.Bool("completed", res.Completed),
		zap.Int("events", res.Events),
		zap.Int("citations", len(res.Message.Citations)))
	return res, err
}

// Busy reports whether an answer is streaming.
func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// ListDocuments returns the current session's documents.
func (s *Service) ListDocuments(ctx context.Context, force bool) ([]model.Document, error) {
	id, ok := s.sessions.Get()
	if !ok {
		return []model.Document{}, nil
	}
	return s.docs.Load(ctx, id, force)
}

// UploadFile uploads the file at path to the current session.
func (s *Service) UploadFile(ctx context.Context, path string) (*model.UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	if err := documents.ValidateFile(name, info.Size()); err != nil {
		return nil, err
	}

	id, err := s.sessions.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.docs.Upload(ctx, id, name, f)
}

// DeleteDocument deletes a document from the current session.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	id, ok := s.sessions.Get()
	if !ok {
		return documents.ErrNoSession
	}
	return s.docs.Delete(ctx, id, documentID)
}

// Health returns the backend's health report.
func (s *Service) Health(ctx context.Context) (model.HealthStatus, error) {
	return s.client.Health(ctx)
}
