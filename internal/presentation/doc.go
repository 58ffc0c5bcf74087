// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package presentation lists a session's generated presentations and runs
// streamed topic analyses.
//
// An analysis stream reports progress through start, progress,
// content_chunk, step_complete, complete and error frames. Analyze folds
// them into a Result and reports each one to an optional callback.
package presentation
