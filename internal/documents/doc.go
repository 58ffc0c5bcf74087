// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package documents caches each session's document list in front of the
// backend.
//
// A list is fetched at most once per TTL window (5 minutes by default).
// Uploads and deletes invalidate the session's entry so the next load
// always goes to the network. Deletes are optimistic: the document
// disappears from served lists immediately and stays hidden while the
// backend call is in flight. If the backend refuses the delete, the cache
// reloads the list and reports a *CacheInconsistencyError.
//
// # Key Types
//
//   - Cache: TTL cache with invalidate-on-mutate semantics
//   - Backend: The list/upload/delete calls the cache fronts
//   - Entry: One cached list and when it was fetched
//
// # Usage
//
//	c := documents.NewCache(apiClient)
//	docs, err := c.Load(ctx, sessionID, false)
//	res, err := c.Upload(ctx, sessionID, "notes.pdf", f)
//	err = c.Delete(ctx, sessionID, docID)
package documents
