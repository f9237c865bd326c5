// Package mqtt publishes pin transition and system lifecycle events with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a pin transition event to the broker. Returns error
	// if publishing fails (should not crash the process).
	Publish(event PinEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// PinEvent is one settled transition on a debounced input.
type PinEvent struct {
	Timestamp time.Time
	Pin       uint8
	Label     string
	Edge      string // "HIGH" or "LOW"
	UpCount   uint16 // counter values when the event was drained
	DownCount uint16
}

// SystemEvent represents a system lifecycle event (startup, shutdown,
// heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool   // whether the broker should retain the message
}

// Payload is the MQTT message payload for a pin event.
type Payload struct {
	Pin PinPayload `json:"pin"`
}

// PinPayload contains the pin event details.
type PinPayload struct {
	Timestamp string        `json:"timestamp"`
	Pin       uint8         `json:"pin"`
	Label     string        `json:"label"`
	Edge      string        `json:"edge"`
	Counts    CountsPayload `json:"counts"`
}

// CountsPayload carries the transition counters.
type CountsPayload struct {
	Up   uint16 `json:"up"`
	Down uint16 `json:"down"`
}

// FormatPayload creates the JSON payload for a pin event.
func FormatPayload(event PinEvent) ([]byte, error) {
	payload := Payload{
		Pin: PinPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Pin:       event.Pin,
			Label:     event.Label,
			Edge:      event.Edge,
			Counts:    CountsPayload{Up: event.UpCount, Down: event.DownCount},
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message payload for simple system events that
// do not carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event. If
// event.RawPayload is set, it is returned directly (used for full status
// snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
