// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the backend's server-sent-event response stream.
//
// The stream arrives as a chunked HTTP body. Chunk boundaries carry no
// meaning: a chunk may hold half a line or several lines. Decoding happens
// in two stages:
//
//   - Decoder (backed by LineBuffer) reassembles complete lines
//   - Interpreter turns "data:" lines into semantic Events
//
// # Events
//
//   - EventContent: text delta, or the cumulative answer so far
//   - EventContext: retrieved citations, replacing any earlier set
//   - EventDone: successful end of the answer
//   - EventError: server-declared failure
//
// At most one EventDone or EventError is produced and it is always last.
//
// # Usage
//
//	interp := stream.NewInterpreter(stream.NewDecoder(resp.Body), logger)
//	for {
//	    ev, err := interp.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package stream
