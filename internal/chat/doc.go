// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the client facade the user interface drives.
//
// One Service exists per process. It owns the session manager, the local
// transcript and the document cache, and allows one answer stream at a
// time.
//
// # Key Types
//
//   - Service: Session, transcript, documents and sending
//   - Options: Generation and retrieval settings for new turns
//
// # Usage
//
//	svc := chat.NewService(client, store, chat.DefaultOptions(), logger)
//	if _, err := svc.Start(ctx); err != nil {
//	    return err
//	}
//	res, err := svc.Send(ctx, "Summarize my notes", func(m model.Message) {
//	    render(m)
//	})
package chat
