// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat client.
//
// This package defines the domain types exchanged with the RAG backend and
// held in client-side state: sessions, chat messages, retrieval citations,
// uploaded documents, health status, and presentations.
//
// # Key Types
//
//   - Session: Backend conversation session with its local expiry window
//   - Message: Single chat message; assistant messages grow while streaming
//   - Citation: Retrieved document chunk attached to an assistant answer
//   - Document: Metadata of a document uploaded into a session
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create the pair of messages for one exchange:
//
//	user := model.NewUserMessage(sessionID, "What is in the report?")
//	answer := model.NewAssistantMessage(sessionID)
package model
