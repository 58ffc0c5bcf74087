// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a session's conversation to a file.
//
// # Key Types
//
//   - Conversation: The messages of one session plus export metadata
//   - Exporter: Converts a Conversation to bytes in one format
//   - Options: What to include and where to write
//
// # Supported Formats
//
//   - Markdown: Human-readable, with sources listed under each answer
//   - JSON: The messages as the backend returns them
//   - Text: Plain transcript for pasting into other tools
//
// # Usage
//
//	conv := export.NewConversation(sessionID, svc.Transcript().Messages())
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ToFile(conv, exp, nil)
package export
