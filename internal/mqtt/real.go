package mqtt

import (
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"
)

// RealPublisher publishes to an actual MQTT broker. The event path runs
// through a token bucket so a chattering input cannot flood the broker;
// events over the cap are dropped and counted, never queued.
type RealPublisher struct {
	client      paho.Client
	topic       string
	topicSystem string
	limiter     *rate.Limiter

	dropped atomic.Uint64
}

// NewRealPublisher creates a publisher connected to the given broker.
// Topics are derived from prefix: <prefix>/events and <prefix>/system.
// eventsPerSec caps the event publish rate; 0 means uncapped.
func NewRealPublisher(broker, prefix string, eventsPerSec float64) (*RealPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("tickd").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	limit := rate.Inf
	burst := 1
	if eventsPerSec > 0 {
		limit = rate.Limit(eventsPerSec)
		burst = int(eventsPerSec)
		if burst < 1 {
			burst = 1
		}
	}

	return &RealPublisher{
		client:      client,
		topic:       prefix + "/events",
		topicSystem: prefix + "/system",
		limiter:     rate.NewLimiter(limit, burst),
	}, nil
}

// Publish sends a pin event to the broker, subject to the rate cap.
func (p *RealPublisher) Publish(event PinEvent) error {
	if !p.limiter.Allow() {
		p.dropped.Add(1)
		return nil
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained: the counters in the payload
	// let consumers detect gaps.
	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event. Not rate capped.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events: delivery matters.
	token := p.client.Publish(p.topicSystem, 1, event.Retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// Dropped returns the number of events discarded by the rate cap.
func (p *RealPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// IsConnected reports whether the client currently has a broker
// connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
