// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// sliceSource replays fixed lines, then io.EOF.
type sliceSource struct {
	lines []string
	reads int
}

func (s *sliceSource) Next() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	s.reads++
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func collect(t *testing.T, in *Interpreter) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := in.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func interpretBody(t *testing.T, body string) []Event {
	t.Helper()
	return collect(t, NewInterpreter(NewDecoder(strings.NewReader(body)), nil))
}

// =============================================================================
// TYPE MAPPING TESTS
// =============================================================================

func TestInterpreter_TokensThenDone(t *testing.T) {
	events := interpretBody(t,
		"data: {\"type\":\"start\"}\n\n"+
			"data: {\"type\":\"token\",\"content\":\"Hel\"}\n\n"+
			"data: {\"type\":\"token\",\"content\":\"lo\"}\n\n"+
			"data: [DONE]\n\n")

	require.Len(t, events, 3)
	assert.Equal(t, ContentEvent("Hel", false), events[0])
	assert.Equal(t, ContentEvent("lo", false), events[1])
	assert.Equal(t, EventDone, events[2].Kind)
}

func TestInterpreter_FullContentIsCumulative(t *testing.T) {
	events := interpretBody(t,
		`data: {"type":"content","content":"ignored","full_content":"Hello"}`+"\n")
	require.Len(t, events, 1)
	assert.Equal(t, Content{Text: "Hello", Cumulative: true}, events[0].Content)
}

func TestInterpreter_ContextBeforeContent(t *testing.T) {
	events := interpretBody(t,
		`data: {"type":"token","content":"x","rag_context":[{"document_id":"d1","similarity_score":0.5}]}`+"\n")
	require.Len(t, events, 2)
	assert.Equal(t, EventContext, events[0].Kind)
	assert.Equal(t, EventContent, events[1].Kind)
}

func TestInterpreter_CitationShapes(t *testing.T) {
	t.Run("rag_context", func(t *testing.T) {
		events := interpretBody(t,
			`data: {"type":"context","rag_context":[{"document_id":"d1","document_title":"Guide","chunk_content":"text","similarity_score":0.91,"chunk_index":3}]}`+"\n")
		require.Len(t, events, 1)
		require.Len(t, events[0].Citations, 1)
		c := events[0].Citations[0]
		assert.Equal(t, "d1", c.DocumentID)
		assert.Equal(t, "Guide", c.DocumentTitle)
		assert.Equal(t, "text", c.ChunkContent)
		assert.InDelta(t, 0.91, c.SimilarityScore, 1e-9)
		require.NotNil(t, c.ChunkIndex)
		assert.Equal(t, 3, *c.ChunkIndex)
	})

	t.Run("context_info", func(t *testing.T) {
		events := interpretBody(t,
			`data: {"type":"context","context_info":[{"document_id":"d2","title":"Notes","content":"chunk","score":1.7}]}`+"\n")
		require.Len(t, events, 1)
		c := events[0].Citations[0]
		assert.Equal(t, "Notes", c.DocumentTitle)
		assert.Equal(t, "chunk", c.ChunkContent)
		assert.Equal(t, 1.0, c.SimilarityScore, "scores are clamped")
	})

	t.Run("empty set clears", func(t *testing.T) {
		events := interpretBody(t, `data: {"type":"context","rag_context":[]}`+"\n")
		require.Len(t, events, 1)
		assert.NotNil(t, events[0].Citations)
		assert.Empty(t, events[0].Citations)
	})
}

func TestInterpreter_CompleteCarriesContextAndContent(t *testing.T) {
	events := interpretBody(t,
		`data: {"type":"complete","full_content":"Hello","rag_context":[{"document_id":"d1","similarity_score":0.8}]}`+"\n")

	require.Len(t, events, 3)
	assert.Equal(t, EventContext, events[0].Kind)
	assert.Equal(t, ContentEvent("Hello", true), events[1])
	assert.Equal(t, EventDone, events[2].Kind)
}

func TestInterpreter_UntypedPayload(t *testing.T) {
	events := interpretBody(t,
		"data: {\"content\":\"a\"}\n"+
			"data: {\"type\":\"heartbeat\"}\n"+
			"data: {\"type\":\"mystery\",\"content\":\"b\"}\n")
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Content.Text)
	assert.Equal(t, "b", events[1].Content.Text)
}

func TestInterpreter_IgnoresNonDataLines(t *testing.T) {
	events := interpretBody(t,
		": keep-alive\n"+
			"event: message\n"+
			"id: 7\n"+
			"data:{\"content\":\"tight\"}\n"+
			"data:  {\"content\":\"  spaced\"}\n")
	require.Len(t, events, 2)
	assert.Equal(t, "tight", events[0].Content.Text)
	// Only one space after the prefix is trimmed.
	assert.Equal(t, "  spaced", events[1].Content.Text)
}

// =============================================================================
// TERMINAL TESTS
// =============================================================================

func TestInterpreter_NothingAfterDone(t *testing.T) {
	src := &sliceSource{lines: []string{
		`data: {"content":"a"}`,
		"data: [DONE]",
		`data: {"content":"late"}`,
		"data: [DONE]",
	}}
	in := NewInterpreter(src, nil)
	events := collect(t, in)

	require.Len(t, events, 2)
	assert.Equal(t, EventDone, events[1].Kind)
	assert.Equal(t, 2, src.reads, "the interpreter must stop reading after done")

	_, err := in.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestInterpreter_ErrorIsTerminal(t *testing.T) {
	events := interpretBody(t,
		"data: {\"type\":\"token\",\"content\":\"partial\"}\n"+
			"data: {\"type\":\"error\",\"message\":\"model overloaded\"}\n"+
			"data: {\"type\":\"token\",\"content\":\"late\"}\n")
	require.Len(t, events, 2)
	assert.Equal(t, ErrorEvent("model overloaded"), events[1])
}

func TestInterpreter_ErrorMessageSources(t *testing.T) {
	cases := []struct {
		name string
		line string
		want string
	}{
		{"message field", `data: {"type":"error","message":"m"}`, "m"},
		{"error string", `data: {"type":"error","error":"e"}`, "e"},
		{"error object", `data: {"type":"error","error":{"message":"nested"}}`, "nested"},
		{"content fallback", `data: {"type":"error","content":"c"}`, "c"},
		{"generic", `data: {"type":"error"}`, defaultErrorMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := interpretBody(t, tc.line+"\n")
			require.Len(t, events, 1)
			assert.Equal(t, EventError, events[0].Kind)
			assert.Equal(t, tc.want, events[0].Message)
		})
	}
}

// =============================================================================
// MALFORMED FRAME TESTS
// =============================================================================

func TestInterpreter_SkipsMalformedFrame(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	in := NewInterpreter(NewDecoder(strings.NewReader(
		"data: {\"content\":\"a\"}\n"+
			"data: {not json\n"+
			"data: {\"content\":\"b\"}\n"+
			"data: [DONE]\n")), zap.New(core))

	events := collect(t, in)
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Content.Text)
	assert.Equal(t, "b", events[1].Content.Text)
	assert.Equal(t, 1, in.Skipped())
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed stream frame").Len())
}

func TestInterpreter_MalformedErrorFrame(t *testing.T) {
	t.Run("message recovered", func(t *testing.T) {
		events := interpretBody(t, `data: {"type": "error", "message": "quota \"exceeded\"", oops}`+"\n")
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Kind)
		assert.Equal(t, `quota "exceeded"`, events[0].Message)
	})

	t.Run("generic message", func(t *testing.T) {
		events := interpretBody(t, `data: {"type":"error",`+"\n")
		require.Len(t, events, 1)
		assert.Equal(t, defaultErrorMessage, events[0].Message)
	})
}

func TestInterpreter_TransportErrorPassesThrough(t *testing.T) {
	boom := errors.New("reset")
	in := NewInterpreter(NewDecoder(io.MultiReader(
		strings.NewReader("data: {\"content\":\"a\"}\n"),
		&failingReader{err: boom},
	)), nil)

	ev, err := in.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Content.Text)

	_, err = in.Next()
	assert.ErrorIs(t, err, boom)

	_, err = in.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "content", EventContent.String())
	assert.Equal(t, "done", EventDone.String())
	assert.True(t, EventError.Terminal())
	assert.False(t, EventContext.Terminal())
}
