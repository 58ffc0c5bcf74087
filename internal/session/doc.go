// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session manages the lifetime of the client's backend session.
//
// At most one session record is persisted at a time, under a single key of
// an injected Store. A record expires 24 hours after it was created or last
// extended. Expiry is checked lazily on every read; there is no background
// timer.
//
// # Key Types
//
//   - Manager: Creates, reads, extends and resets the session record
//   - Store: Storage port with Get/Set/Remove over one key
//   - MemoryStore: In-process Store for tests and ephemeral use
//   - Record: The persisted {sessionId, timestamp, expiresAt} value
//
// # Usage
//
//	mgr := session.NewManager(store, creator)
//	mgr.OnReset(transcript.Reset)
//
//	id, ok := mgr.Get()
//	if !ok {
//	    id, err = mgr.Create(ctx)
//	}
//
// Keep an active session alive on every send:
//
//	mgr.Extend()
package session
