// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "github.com/jeranaias/ragchat/internal/model"

// EventKind identifies the semantic meaning of an Event.
type EventKind int

const (
	// EventContent carries answer text.
	EventContent EventKind = iota
	// EventContext carries the retrieved citations for the answer.
	EventContext
	// EventDone ends the answer successfully.
	EventDone
	// EventError ends the answer with a server-declared failure.
	EventError
)

// String returns the name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventContext:
		return "context"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind ends the stream.
func (k EventKind) Terminal() bool {
	return k == EventDone || k == EventError
}

// Content is answer text decided once at parse time to be either a delta
// to append or the authoritative cumulative answer so far.
type Content struct {
	Text       string
	Cumulative bool
}

// Event is one semantic step of a streamed answer.
type Event struct {
	Kind EventKind

	// Content is set for EventContent.
	Content Content

	// Citations is set for EventContext. An empty, non-nil slice clears
	// the citations.
	Citations []model.Citation

	// Message is set for EventError.
	Message string
}

// ContentEvent builds an EventContent.
func ContentEvent(text string, cumulative bool) Event {
	return Event{Kind: EventContent, Content: Content{Text: text, Cumulative: cumulative}}
}

// ContextEvent builds an EventContext.
func ContextEvent(citations []model.Citation) Event {
	return Event{Kind: EventContext, Citations: citations}
}

// DoneEvent builds an EventDone.
func DoneEvent() Event {
	return Event{Kind: EventDone}
}

// ErrorEvent builds an EventError.
func ErrorEvent(message string) Event {
	return Event{Kind: EventError, Message: message}
}
