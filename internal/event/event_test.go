// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestQueue_IsSink(t *testing.T) {
	var sink Sink = NewQueue()

	if !sink.Push(Tick{}) {
		t.Fatal("Push() = false on open queue")
	}
}

func TestQueue_PreservesArrivalOrder(t *testing.T) {
	q := NewQueue()
	want := []Event{
		KeyInput{Key: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}},
		Tick{},
		NetworkLine{Text: "alice: hi"},
		Render{},
		Error{Err: errors.New("boom")},
		LogRecord{Line: "12:00:00 [INFO] connected"},
		Quit{},
	}
	for _, ev := range want {
		q.Push(ev)
	}

	for i, w := range want {
		got, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("Pop() #%d error = %v", i, err)
		}
		switch w := w.(type) {
		case KeyInput:
			k, ok := got.(KeyInput)
			if !ok || k.Key.String() != w.Key.String() {
				t.Errorf("event #%d = %#v, want %#v", i, got, w)
			}
		case Error:
			e, ok := got.(Error)
			if !ok || e.Err != w.Err {
				t.Errorf("event #%d = %#v, want %#v", i, got, w)
			}
		default:
			if got != w {
				t.Errorf("event #%d = %#v, want %#v", i, got, w)
			}
		}
	}
}
