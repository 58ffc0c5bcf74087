// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jeranaias/ragchat/internal/model"
	"github.com/jeranaias/ragchat/internal/stream"
)

// ErrFrozen is returned when an event is applied to a finished message.
var ErrFrozen = errors.New("message is frozen")

// UpdateFunc receives a snapshot of the message after every mutation.
// It runs synchronously on the goroutine applying the event.
type UpdateFunc func(msg model.Message)

// EventSource yields stream events. *stream.Interpreter implements it.
type EventSource interface {
	Next() (stream.Event, error)
}

// Result is the outcome of consuming a stream.
type Result struct {
	// Message is the final snapshot of the answer.
	Message model.Message

	// Completed is true only when the server ended the stream with done.
	Completed bool

	// Events is how many events were applied.
	Events int
}

// Accumulator applies stream events to a single assistant message.
type Accumulator struct {
	mu        sync.Mutex
	msg       *model.Message
	onUpdate  UpdateFunc
	frozen    bool
	completed bool
	events    int
}

// NewAccumulator creates an accumulator that owns msg until it is frozen.
// onUpdate may be nil.
func NewAccumulator(msg *model.Message, onUpdate UpdateFunc) *Accumulator {
	return &Accumulator{msg: msg, onUpdate: onUpdate}
}

// Apply mutates the message according to ev. An error event freezes the
// message with its partial content and returns a *stream.ProtocolError.
func (a *Accumulator) Apply(ev stream.Event) error {
	a.mu.Lock()
	if a.frozen {
		a.mu.Unlock()
		return ErrFrozen
	}

	var err error
	switch ev.Kind {
	case stream.EventContent:
		if ev.Content.Cumulative {
			a.msg.Content = ev.Content.Text
		} else {
			a.msg.Content += ev.Content.Text
		}
	case stream.EventContext:
		a.msg.Citations = make([]model.Citation, len(ev.Citations))
		copy(a.msg.Citations, ev.Citations)
	case stream.EventDone:
		a.completed = true
		a.freezeLocked()
	case stream.EventError:
		a.freezeLocked()
		err = &stream.ProtocolError{Message: ev.Message}
	default:
		a.mu.Unlock()
		return fmt.Errorf("unknown stream event kind %d", ev.Kind)
	}
	a.events++
	snapshot := a.msg.Clone()
	a.mu.Unlock()

	a.notify(snapshot)
	return err
}

// Freeze ends the message without a done event. It is a no-op on an
// already frozen message.
func (a *Accumulator) Freeze() {
	a.mu.Lock()
	if a.frozen {
		a.mu.Unlock()
		return
	}
	a.freezeLocked()
	snapshot := a.msg.Clone()
	a.mu.Unlock()

	a.notify(snapshot)
}

// Frozen reports whether the message accepts no more events.
func (a *Accumulator) Frozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

// Message returns a snapshot of the message.
func (a *Accumulator) Message() model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.msg.Clone()
}

// Consume applies events from src until a terminal event, the end of the
// stream, or cancellation of ctx. The result always carries the partial
// message; the error is the protocol, transport or context error that
// stopped consumption.
func (a *Accumulator) Consume(ctx context.Context, src EventSource) (Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			a.Freeze()
			return a.result(), err
		}

		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			a.Freeze()
			return a.result(), nil
		}
		if err != nil {
			a.Freeze()
			return a.result(), fmt.Errorf("read stream: %w", err)
		}

		if err := a.Apply(ev); err != nil {
			return a.result(), err
		}
		if ev.Kind.Terminal() {
			return a.result(), nil
		}
	}
}

func (a *Accumulator) result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Result{
		Message:   a.msg.Clone(),
		Completed: a.completed,
		Events:    a.events,
	}
}

func (a *Accumulator) freezeLocked() {
	a.frozen = true
	a.msg.IsStreaming = false
}

func (a *Accumulator) notify(snapshot model.Message) {
	if a.onUpdate != nil {
		a.onUpdate(snapshot)
	}
}
