package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Pins          []PinJSON  `json:"pins"`
	Analog        []uint16   `json:"analog"`
	Ticks         uint32     `json:"ticks"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// PinJSON is the JSON representation of one debounced input.
type PinJSON struct {
	Pin       uint8  `json:"pin"`
	Label     string `json:"label"`
	Level     string `json:"level"`
	UpCount   uint16 `json:"up_count"`
	DownCount uint16 `json:"down_count"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Dropped   uint64 `json:"dropped_events"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	TopicPrefix    string `json:"topic_prefix"`
	HTTPAddr       string `json:"http_addr"`
	AnalogChannels uint8  `json:"analog_channels"`
	HistoryPath    string `json:"history_path,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	pins := make([]PinJSON, 0, len(snap.Pins))
	for _, p := range snap.Pins {
		level := p.Level
		if level == "" {
			level = "UNKNOWN"
		}
		pins = append(pins, PinJSON{
			Pin:       p.Pin,
			Label:     p.Label,
			Level:     level,
			UpCount:   p.UpCount,
			DownCount: p.DownCount,
		})
	}

	return StatusInner{
		Pins:          pins,
		Analog:        snap.Analog,
		Ticks:         snap.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Dropped:   snap.DroppedEvents,
		},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			TopicPrefix:    snap.Config.TopicPrefix,
			HTTPAddr:       snap.Config.HTTPAddr,
			AnalogChannels: snap.Config.AnalogChannels,
			HistoryPath:    snap.Config.HistoryPath,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no
// event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
