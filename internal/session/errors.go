// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "fmt"

// SessionCreationError reports that the backend could not create a session.
// Nothing was persisted; the caller must treat the session as absent.
type SessionCreationError struct {
	Err error
}

// Error implements the error interface.
func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("create session: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SessionCreationError) Unwrap() error {
	return e.Err
}
