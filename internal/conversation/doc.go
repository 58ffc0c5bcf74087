// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation builds assistant answers from stream events and
// keeps the local message list of the current session.
//
// # Key Types
//
//   - Accumulator: Applies stream events to one assistant message
//   - Transcript: Ordered, concurrency-safe list of session messages
//   - Result: Outcome of consuming a whole stream
//
// # Usage
//
//	msg := model.NewAssistantMessage(sessionID)
//	acc := conversation.NewAccumulator(msg, func(m model.Message) {
//	    render(m)
//	})
//	res, err := acc.Consume(ctx, interpreter)
//
// A cumulative content event replaces the answer text, a delta appends to
// it. A context event replaces the citation set. The message is frozen by
// done, error, cancellation or the end of the stream, and rejects further
// events.
package conversation
