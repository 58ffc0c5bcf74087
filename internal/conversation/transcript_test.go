// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"sync"
	"testing"

	"github.com/jeranaias/ragchat/internal/model"
)

func TestTranscript_AppendAndUpdate(t *testing.T) {
	tr := NewTranscript()
	user := model.NewUserMessage("s", "hi")
	answer := model.NewAssistantMessage("s")

	tr.Append(*user)
	tr.Append(*answer)

	answer.Content = "hello"
	if !tr.Update(*answer) {
		t.Fatal("Update should find the assistant message")
	}

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].Content != "hello" {
		t.Errorf("expected updated content, got %q", msgs[1].Content)
	}

	if tr.Update(model.Message{ID: "missing"}) {
		t.Error("Update should report false for an unknown id")
	}
}

func TestTranscript_UpsertAndLast(t *testing.T) {
	tr := NewTranscript()
	if _, ok := tr.Last(); ok {
		t.Error("empty transcript has no last message")
	}

	msg := model.NewAssistantMessage("s")
	tr.Upsert(*msg)
	msg.Content = "v2"
	tr.Upsert(*msg)

	if tr.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", tr.Len())
	}
	last, _ := tr.Last()
	if last.Content != "v2" {
		t.Errorf("expected v2, got %q", last.Content)
	}
}

func TestTranscript_ReplaceAndReset(t *testing.T) {
	tr := NewTranscript()
	tr.Append(*model.NewUserMessage("s", "old"))

	tr.Replace([]model.Message{
		*model.NewUserMessage("s", "a"),
		*model.NewUserMessage("s", "b"),
	})
	if tr.Len() != 2 {
		t.Fatalf("expected 2 messages after Replace, got %d", tr.Len())
	}

	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("expected empty transcript after Reset, got %d", tr.Len())
	}
}

func TestTranscript_MessagesIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(model.Message{ID: "m1", Citations: []model.Citation{{DocumentID: "d"}}})

	msgs := tr.Messages()
	msgs[0].Citations[0].DocumentID = "changed"

	if tr.Messages()[0].Citations[0].DocumentID != "d" {
		t.Error("Messages must not expose internal slices")
	}
}

func TestTranscript_Concurrent(t *testing.T) {
	tr := NewTranscript()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Append(*model.NewUserMessage("s", "x"))
			_ = tr.Messages()
		}()
	}
	wg.Wait()
	if tr.Len() != 50 {
		t.Errorf("expected 50 messages, got %d", tr.Len())
	}
}
