// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable adapters for the session storage port.
//
// Both stores hold small values under string keys. They satisfy
// session.Store and are chosen with the storage.backend config option.
//
// # Key Types
//
//   - FileStore: One JSON file per key, written atomically
//   - SQLiteStore: Key/value table in a local SQLite database
//
// # Usage
//
//	store, err := storage.NewFileStore(filepath.Join(dataDir, "state"))
//	mgr := session.NewManager(store, creator)
//
// # Storage Location
//
// By default state lives under ~/.ragchat/.
package storage
