// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned by mutations that need a session id.
var ErrNoSession = errors.New("no session id provided")

// CacheInconsistencyError reports a backend delete that failed after the
// document was removed locally. The cache has been reloaded from the
// backend; ReloadErr is set if that reload failed too.
type CacheInconsistencyError struct {
	SessionID  string
	DocumentID string
	Err        error
	ReloadErr  error
}

// Error implements the error interface.
func (e *CacheInconsistencyError) Error() string {
	if e.ReloadErr != nil {
		return fmt.Sprintf("delete document %s failed: %v (reload also failed: %v)",
			e.DocumentID, e.Err, e.ReloadErr)
	}
	return fmt.Sprintf("delete document %s failed: %v", e.DocumentID, e.Err)
}

// Unwrap returns the backend error.
func (e *CacheInconsistencyError) Unwrap() error {
	return e.Err
}

// UploadError reports a file rejected before it was sent.
type UploadError struct {
	Filename string
	Reason   string
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	return fmt.Sprintf("cannot upload %s: %s", e.Filename, e.Reason)
}
