// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ragchat.
//
// Settings come from a TOML file, with sensible defaults, a .env file,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Backend URL, timeouts, retry and rate limits
//   - ChatConfig: Generation parameters sent with each message
//   - StorageConfig: Where the session record is persisted
//   - ValidationErrors: Every invalid field found by Validate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RAGCHAT_*)
//   - .env in the working directory, then in ~/.ragchat
//   - ~/.ragchat/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits to the file:
//
//	go config.Watch(ctx, config.ConfigPath(), logger, func(c *config.Config) {
//	    config.SetGlobal(c)
//	})
package config
