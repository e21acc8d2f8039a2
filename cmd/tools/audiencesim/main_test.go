package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestScriptOrder(t *testing.T) {
	opts := &Options{
		Stream:     "s1",
		Streamer:   "Abi",
		Say:        []string{"hello chat", "yo xqc"},
		Face:       []string{"Abi"},
		Confidence: 0.8,
	}

	got := script(opts)
	want := []string{"join-stream", "start-fake-audience", "update-streamer-name", "face-detected", "speech-detected", "speech-detected"}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Fatalf("message %d: expected %s, got %s", i, typ, got[i].Type)
		}
	}

	opts.NoStart = true
	if got := script(opts); len(got) != 1 || got[0].Type != "join-stream" {
		t.Fatalf("watch-only script should only join, got %+v", got)
	}
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 30, 0, 0, time.Local).Unix()

	line := formatEvent(envelope{
		Type:      "fake-chat-message",
		StreamID:  "s1",
		Data:      json.RawMessage(`{"username":"xQc","message":"lets go"}`),
		Timestamp: ts,
	})
	if line != "12:30:00 [s1] xQc: lets go" {
		t.Fatalf("unexpected line %q", line)
	}

	line = formatEvent(envelope{Type: "audience-update", StreamID: "s1", Data: json.RawMessage(`7`), Timestamp: ts})
	if line != "12:30:00 [s1] viewers=7" {
		t.Fatalf("unexpected line %q", line)
	}
}
