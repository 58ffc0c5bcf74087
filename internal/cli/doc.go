// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the ragchat command line: argument parsing, the
// interactive chat REPL and the one-shot subcommands.
//
// # Key Types
//
//   - Command: Enumeration of the top-level commands
//   - Args: Parsed global flags and positionals
//   - App: Config, logger, API client and chat service built for a run
//   - Renderer: Markdown answers, citations and listings for the terminal
//
// # Usage
//
//	os.Exit(cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr))
//
// # Commands Overview
//
//   - chat: Interactive REPL with slash commands (default)
//   - ask: One question, one answer
//   - docs: List, upload and delete session documents
//   - session: Show, replace or clear the stored session
//   - health: Backend health
//   - presentations: Deck listing and topic analysis
//   - config, logs: Local configuration and log file
package cli
