// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/model"
)

// =============================================================================
// PROTOCOL CONSTANTS
// =============================================================================

const (
	// DataPrefix marks a line that carries a payload.
	DataPrefix = "data:"

	// DoneSentinel is the reserved payload that ends a stream.
	DoneSentinel = "[DONE]"

	// defaultErrorMessage is used when an error frame names no message.
	defaultErrorMessage = "the server reported an error"
)

// Payload type discriminators.
const (
	typeStart    = "start"
	typeToken    = "token"
	typeContent  = "content"
	typeContext  = "context"
	typeComplete = "complete"
	typeDone     = "done"
	typeError    = "error"
)

var (
	// errorTypeRe finds an error declaration in a payload that is not valid JSON.
	errorTypeRe = regexp.MustCompile(`"type"\s*:\s*"error"`)
	// errorMessageRe recovers the message from such a payload when possible.
	errorMessageRe = regexp.MustCompile(`"(?:message|error)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// =============================================================================
// WIRE PAYLOAD
// =============================================================================

// wirePayload covers every payload shape the backend has emitted.
// Pointers distinguish an absent field from an empty one.
type wirePayload struct {
	Type        string          `json:"type"`
	Content     *string         `json:"content"`
	FullContent *string         `json:"full_content"`
	RAGContext  []wireCitation  `json:"rag_context"`
	ContextInfo []wireCitation  `json:"context_info"`
	Message     string          `json:"message"`
	Error       json.RawMessage `json:"error"`
}

// wireCitation accepts both historical citation shapes.
type wireCitation struct {
	DocumentID      string   `json:"document_id"`
	DocumentTitle   string   `json:"document_title"`
	Title           string   `json:"title"`
	ChunkContent    string   `json:"chunk_content"`
	Content         string   `json:"content"`
	SimilarityScore *float64 `json:"similarity_score"`
	Score           *float64 `json:"score"`
	ChunkID         string   `json:"chunk_id"`
	ChunkIndex      *int     `json:"chunk_index"`
}

func (w wireCitation) toModel() model.Citation {
	c := model.Citation{
		DocumentID:    w.DocumentID,
		DocumentTitle: w.DocumentTitle,
		ChunkContent:  w.ChunkContent,
		ChunkID:       w.ChunkID,
		ChunkIndex:    w.ChunkIndex,
	}
	if c.DocumentTitle == "" {
		c.DocumentTitle = w.Title
	}
	if c.ChunkContent == "" {
		c.ChunkContent = w.Content
	}
	switch {
	case w.SimilarityScore != nil:
		c.SimilarityScore = model.ClampScore(*w.SimilarityScore)
	case w.Score != nil:
		c.SimilarityScore = model.ClampScore(*w.Score)
	}
	return c
}

// citations returns the payload's citation set, or nil when it has none.
// rag_context wins when both shapes are present.
func (p *wirePayload) citations() []model.Citation {
	src := p.RAGContext
	if src == nil {
		src = p.ContextInfo
	}
	if src == nil {
		return nil
	}
	out := make([]model.Citation, 0, len(src))
	for _, w := range src {
		out = append(out, w.toModel())
	}
	return out
}

// content returns the payload's text as a tagged variant. The cumulative
// field is authoritative when present.
func (p *wirePayload) content() (Content, bool) {
	if p.FullContent != nil {
		return Content{Text: *p.FullContent, Cumulative: true}, true
	}
	if p.Content != nil && *p.Content != "" {
		return Content{Text: *p.Content}, true
	}
	return Content{}, false
}

// errorMessage picks the most specific message an error payload carries.
func (p *wirePayload) errorMessage() string {
	if p.Message != "" {
		return p.Message
	}
	if len(p.Error) > 0 {
		var s string
		if err := json.Unmarshal(p.Error, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(p.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	if p.Content != nil && *p.Content != "" {
		return *p.Content
	}
	return defaultErrorMessage
}

// =============================================================================
// INTERPRETER
// =============================================================================

// LineSource yields decoded lines. *Decoder implements it.
type LineSource interface {
	Next() (string, error)
}

// Interpreter maps decoded lines to semantic events. After a terminal
// event it stops reading and returns io.EOF.
type Interpreter struct {
	src      LineSource
	logger   *zap.Logger
	queue    []Event
	finished bool
	skipped  int
}

// NewInterpreter creates an interpreter over src. A nil logger discards
// diagnostics.
func NewInterpreter(src LineSource, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{src: src, logger: logger}
}

// Next returns the next event. It returns io.EOF after a terminal event or
// when the transport ends; transport errors are returned as-is.
func (in *Interpreter) Next() (Event, error) {
	for len(in.queue) == 0 {
		if in.finished {
			return Event{}, io.EOF
		}
		line, err := in.src.Next()
		if err != nil {
			in.finished = true
			return Event{}, err
		}
		in.queue = in.interpret(line)
	}

	ev := in.queue[0]
	in.queue = in.queue[1:]
	if ev.Kind.Terminal() {
		in.finished = true
		in.queue = nil
	}
	return ev, nil
}

// Skipped returns how many malformed frames were dropped so far.
func (in *Interpreter) Skipped() int {
	return in.skipped
}

// interpret maps one line to zero or more events.
func (in *Interpreter) interpret(line string) []Event {
	if !strings.HasPrefix(line, DataPrefix) {
		return nil
	}
	data := strings.TrimPrefix(line[len(DataPrefix):], " ")
	if strings.TrimSpace(data) == "" {
		return nil
	}
	if strings.TrimSpace(data) == DoneSentinel {
		return []Event{DoneEvent()}
	}

	var p wirePayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		if errorTypeRe.MatchString(data) {
			return []Event{ErrorEvent(recoverErrorMessage(data))}
		}
		in.skipped++
		in.logger.Warn("skipping malformed stream frame",
			zap.Error(&FrameParseError{Payload: data, Err: err}))
		return nil
	}
	return in.events(&p)
}

// events maps a parsed payload to events in the order they must be applied.
func (in *Interpreter) events(p *wirePayload) []Event {
	var out []Event
	switch strings.ToLower(p.Type) {
	case typeStart:
		return nil

	case typeError:
		return []Event{ErrorEvent(p.errorMessage())}

	case typeComplete, typeDone:
		if cites := p.citations(); cites != nil {
			out = append(out, ContextEvent(cites))
		}
		if p.FullContent != nil {
			out = append(out, ContentEvent(*p.FullContent, true))
		}
		return append(out, DoneEvent())

	case typeContext:
		if cites := p.citations(); cites != nil {
			out = append(out, ContextEvent(cites))
		}
		return out

	case typeToken, typeContent:
		if cites := p.citations(); cites != nil {
			out = append(out, ContextEvent(cites))
		}
		if c, ok := p.content(); ok {
			out = append(out, Event{Kind: EventContent, Content: c})
		}
		return out

	default:
		if cites := p.citations(); cites != nil {
			out = append(out, ContextEvent(cites))
		}
		if c, ok := p.content(); ok {
			out = append(out, Event{Kind: EventContent, Content: c})
		}
		if len(out) == 0 && p.Type != "" {
			in.logger.Debug("ignoring stream frame", zap.String("type", p.Type))
		}
		return out
	}
}

// recoverErrorMessage pulls a message out of an error frame that is not
// valid JSON.
func recoverErrorMessage(data string) string {
	m := errorMessageRe.FindStringSubmatch(data)
	if len(m) < 2 || m[1] == "" {
		return defaultErrorMessage
	}
	var s string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &s); err != nil {
		return m[1]
	}
	return s
}
