// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"

	"github.com/jeranaias/ragchat/internal/model"
)

// Transcript is the local message list of one session.
type Transcript struct {
	mu       sync.RWMutex
	messages []model.Message
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(msg model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg.Clone())
}

// Update replaces the message with the same ID. It reports false when no
// such message exists.
func (t *Transcript) Update(msg model.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == msg.ID {
			t.messages[i] = msg.Clone()
			return true
		}
	}
	return false
}

// Upsert updates the message with the same ID or appends it.
func (t *Transcript) Upsert(msg model.Message) {
	if !t.Update(msg) {
		t.Append(msg)
	}
}

// Replace swaps the whole list, as when history is loaded from the backend.
func (t *Transcript) Replace(msgs []model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = make([]model.Message, 0, len(msgs))
	for i := range msgs {
		t.messages = append(t.messages, msgs[i].Clone())
	}
}

// Messages returns a copy of the list.
func (t *Transcript) Messages() []model.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Message, len(t.messages))
	for i := range t.messages {
		out[i] = t.messages[i].Clone()
	}
	return out
}

// Last returns the most recent message.
func (t *Transcript) Last() (model.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return model.Message{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset empties the transcript.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}
