// Package config loads and validates the tickd daemon configuration from
// YAML, and watches the file for live edits so pin registrations can be
// applied without a restart.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/tickd/internal/logx"
	"github.com/sweeney/tickd/internal/sched"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "20ms" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Pin is one debounced digital input registration.
type Pin struct {
	Pin   uint8  `yaml:"pin"`   // BCM line offset, doubles as scheduler id
	Label string `yaml:"label"` // name used in events and status
	// Bypass registers the pin as recurring with period 0: sampled every
	// tick with no filter latency.
	Bypass bool `yaml:"bypass"`
	// PeriodMs is the evaluation period in ticks (default 1). Ignored
	// when Bypass is set.
	PeriodMs uint32 `yaml:"period_ms"`
}

// Timer is one plain manually polled timer registration.
type Timer struct {
	ID        uint8  `yaml:"id"`
	Label     string `yaml:"label"`
	PeriodMs  uint32 `yaml:"period_ms"`
	Recurring bool   `yaml:"recurring"`
}

// Analog configures the background analog scan ring.
type Analog struct {
	// Device is the IIO sysfs directory; empty disables real hardware
	// and the ring stores zeroes.
	Device   string `yaml:"device"`
	Channels uint8  `yaml:"channels"`
}

// History configures the sqlite event journal.
type History struct {
	Path          string   `yaml:"path"` // empty disables the journal
	Retention     Duration `yaml:"retention"`
	PruneSchedule string   `yaml:"prune_schedule"` // cron spec, default nightly
}

// Config is the full daemon configuration.
type Config struct {
	Log logx.Config `yaml:"log"`

	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	// PublishRate caps event publishes per second so a noisy pin cannot
	// flood the broker. 0 means uncapped.
	PublishRate float64 `yaml:"publish_rate"`

	HTTP      string   `yaml:"http"` // status server address, empty disables
	Poll      Duration `yaml:"poll"`
	Heartbeat Duration `yaml:"heartbeat"` // 0 disables

	GPIOChip string  `yaml:"gpio_chip"`
	Analog   Analog  `yaml:"analog"`
	History  History `yaml:"history"`

	Pins   []Pin   `yaml:"pins"`
	Timers []Timer `yaml:"timers"`
}

// Defaults fills in unset fields.
func (c *Config) Defaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "home/tickd"
	}
	if c.Poll == 0 {
		c.Poll = Duration(20 * time.Millisecond)
	}
	if c.GPIOChip == "" {
		c.GPIOChip = "gpiochip0"
	}
	if c.History.Path != "" && c.History.PruneSchedule == "" {
		c.History.PruneSchedule = "0 3 * * *"
	}
	if c.History.Path != "" && c.History.Retention == 0 {
		c.History.Retention = Duration(30 * 24 * time.Hour)
	}
	for i := range c.Pins {
		if c.Pins[i].PeriodMs == 0 && !c.Pins[i].Bypass {
			c.Pins[i].PeriodMs = 1
		}
		if c.Pins[i].Label == "" {
			c.Pins[i].Label = fmt.Sprintf("pin%d", c.Pins[i].Pin)
		}
	}
	for i := range c.Timers {
		if c.Timers[i].Label == "" {
			c.Timers[i].Label = fmt.Sprintf("timer%d", c.Timers[i].ID)
		}
	}
}

// Validate rejects configurations the scheduler cannot honor.
func (c *Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("poll must be positive, got %v", c.Poll.Std())
	}
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Analog.Channels > sched.MaxAnalogChannels {
		return fmt.Errorf("analog.channels %d exceeds the maximum of %d",
			c.Analog.Channels, sched.MaxAnalogChannels)
	}
	if n := len(c.Pins) + len(c.Timers); n > sched.DefaultCapacity {
		return fmt.Errorf("%d registrations exceed the %d-slot table", n, sched.DefaultCapacity)
	}

	seen := make(map[uint8]string)
	for _, p := range c.Pins {
		if sched.Classify(p.Pin, sched.DefaultMaxDigitalPin) != sched.KindDigital {
			return fmt.Errorf("pin %d (%s) is outside the digital range 0..%d",
				p.Pin, p.Label, sched.DefaultMaxDigitalPin)
		}
		if prev, dup := seen[p.Pin]; dup {
			return fmt.Errorf("id %d used by both %s and %s", p.Pin, prev, p.Label)
		}
		seen[p.Pin] = p.Label
	}
	for _, tm := range c.Timers {
		if sched.Classify(tm.ID, sched.DefaultMaxDigitalPin) != sched.KindTimer {
			return fmt.Errorf("timer id %d (%s) collides with the digital range 0..%d",
				tm.ID, tm.Label, sched.DefaultMaxDigitalPin)
		}
		if tm.PeriodMs == 0 {
			return fmt.Errorf("timer %s needs a nonzero period_ms", tm.Label)
		}
		if prev, dup := seen[tm.ID]; dup {
			return fmt.Errorf("id %d used by both %s and %s", tm.ID, prev, tm.Label)
		}
		seen[tm.ID] = tm.Label
	}
	return nil
}

// Load reads, decodes, defaults and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
