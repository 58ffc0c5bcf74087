// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the chat backend.
//
// The client covers sessions, streamed chat answers, session documents,
// health checks and presentations. Plain requests go through a pooled
// client with a timeout; streamed requests use a client without a timeout
// and are bounded only by the caller's context. Every request passes a
// shared rate limiter.
//
// # Key Types
//
//   - Client: Backend client
//   - ChatRequest: Validated parameters of a chat turn
//   - Stream: Open answer stream yielding semantic events
//   - TransportError: Failure before a stream or response was obtained
//   - HealthMonitor: Periodic health polling
//
// # Usage
//
//	client := api.NewClient(cfg.API.BaseURL, api.WithLogger(logger))
//	req := api.DefaultChatRequest(sessionID, "What is in my notes?")
//	s, err := client.StreamChat(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	for {
//	    ev, err := s.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package api
