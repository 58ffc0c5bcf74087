// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "fmt"

// FrameParseError reports a data payload that could not be parsed.
// It is recovered locally: the frame is skipped and decoding continues.
type FrameParseError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *FrameParseError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", e.Payload, e.Err)
}

// Unwrap returns the underlying error.
func (e *FrameParseError) Unwrap() error {
	return e.Err
}

// ProtocolError is a failure declared by the server inside the stream.
// It is terminal for the answer being streamed.
type ProtocolError struct {
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return "stream error: " + e.Message
}

// FrameTooLargeError reports a line that grew past the decoder's limit
// without a line break.
type FrameTooLargeError struct {
	Size  int
	Limit int
}

// Error implements the error interface.
func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("stream frame exceeds %d bytes (got %d)", e.Limit, e.Size)
}
