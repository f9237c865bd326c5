// Package status provides a thread-safe status tracker for the tickd
// daemon. It is read by the HTTP handlers and formatted into MQTT system
// event payloads.
package status

import (
	"sync"
	"time"
)

// PinStatus is the settled state of one debounced input.
type PinStatus struct {
	Pin       uint8
	Label     string
	Level     string // "HIGH" or "LOW"
	UpCount   uint16
	DownCount uint16
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs         int64
	HeartbeatMs    int64
	Broker         string
	TopicPrefix    string
	HTTPAddr       string
	AnalogChannels uint8
	HistoryPath    string
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the lock is released.
type Snapshot struct {
	Pins          []PinStatus
	Analog        []uint16
	Ticks         uint32
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	DroppedEvents uint64
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the scheduler-derived state. Called from the poll loop.
func (t *Tracker) Update(pins []PinStatus, analog []uint16, ticks uint32) {
	t.mu.Lock()
	t.snap.Pins = pins
	t.snap.Analog = analog
	t.snap.Ticks = ticks
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetDroppedEvents sets the count of events discarded by the publish rate
// cap.
func (t *Tracker) SetDroppedEvents(n uint64) {
	t.mu.Lock()
	t.snap.DroppedEvents = n
	t.mu.Unlock()
}

// SetConfig replaces the displayed configuration after a live reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state. The Now
// field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Pins = append([]PinStatus(nil), s.Pins...)
	s.Analog = append([]uint16(nil), s.Analog...)
	s.Now = time.Now()
	return s
}
