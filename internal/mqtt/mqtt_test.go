package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFormatPayload(t *testing.T) {
	event := PinEvent{
		Timestamp: time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
		Pin:       3,
		Label:     "door",
		Edge:      "HIGH",
		UpCount:   4,
		DownCount: 3,
	}

	b, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}

	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if p.Pin.Timestamp != "2026-08-01T12:30:00Z" {
		t.Errorf("timestamp = %q", p.Pin.Timestamp)
	}
	if p.Pin.Pin != 3 || p.Pin.Label != "door" || p.Pin.Edge != "HIGH" {
		t.Errorf("fields wrong: %+v", p.Pin)
	}
	if p.Pin.Counts.Up != 4 || p.Pin.Counts.Down != 3 {
		t.Errorf("counts wrong: %+v", p.Pin.Counts)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	b, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}

	var p SystemPayload
	if err := json.Unmarshal(b, &p); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if p.System.Event != "SHUTDOWN" || p.System.Reason != "SIGTERM" {
		t.Errorf("fields wrong: %+v", p.System)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"custom":true}`)
	b, err := FormatSystemPayload(SystemEvent{RawPayload: raw})
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}
	if string(b) != string(raw) {
		t.Errorf("raw payload not passed through: %s", b)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	b, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "HEARTBEAT",
	})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if _, has := m["system"]["reason"]; has {
		t.Error("empty reason was not omitted")
	}
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()

	event := PinEvent{Timestamp: time.Now(), Pin: 3, Label: "door", Edge: "LOW"}
	if err := f.Publish(event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(f.Events) != 1 || f.Events[0].Edge != "LOW" {
		t.Errorf("event not recorded: %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("payload not recorded")
	}

	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if len(f.SystemEvents) != 1 {
		t.Errorf("system event not recorded")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	if err := f.Publish(PinEvent{}); err == nil {
		t.Error("expected injected error")
	}
	if len(f.Events) != 0 {
		t.Error("errored publish was recorded")
	}

	f.Reset()
	if err := f.Publish(PinEvent{}); err != nil {
		t.Errorf("error survived Reset: %v", err)
	}
}
