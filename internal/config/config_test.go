package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const validYAML = `
broker: tcp://localhost:1883
poll: 20ms
heartbeat: 15m
analog:
  channels: 2
pins:
  - pin: 3
    label: door
  - pin: 5
    bypass: true
timers:
  - id: 20
    label: blink
    period_ms: 500
    recurring: true
`

func TestParseValid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Poll.Std() != 20*time.Millisecond {
		t.Errorf("poll = %v, want 20ms", cfg.Poll.Std())
	}
	if cfg.Heartbeat.Std() != 15*time.Minute {
		t.Errorf("heartbeat = %v, want 15m", cfg.Heartbeat.Std())
	}
	if cfg.TopicPrefix != "home/tickd" {
		t.Errorf("topic prefix default = %q", cfg.TopicPrefix)
	}
	if cfg.Pins[0].PeriodMs != 1 {
		t.Errorf("pin period default = %d, want 1", cfg.Pins[0].PeriodMs)
	}
	if cfg.Pins[1].Label != "pin5" {
		t.Errorf("pin label default = %q, want pin5", cfg.Pins[1].Label)
	}
	if !cfg.Pins[1].Bypass {
		t.Error("bypass flag lost")
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing broker",
			yaml: "poll: 10ms\n",
			want: "broker",
		},
		{
			name: "unknown field",
			yaml: "broker: tcp://x\nbogus: 1\n",
			want: "bogus",
		},
		{
			name: "pin outside digital range",
			yaml: "broker: tcp://x\npins:\n  - pin: 20\n",
			want: "digital range",
		},
		{
			name: "timer inside digital range",
			yaml: "broker: tcp://x\ntimers:\n  - id: 5\n    period_ms: 10\n",
			want: "digital range",
		},
		{
			name: "timer without period",
			yaml: "broker: tcp://x\ntimers:\n  - id: 20\n",
			want: "period_ms",
		},
		{
			name: "duplicate ids",
			yaml: "broker: tcp://x\npins:\n  - pin: 3\n  - pin: 3\n",
			want: "used by both",
		},
		{
			name: "too many analog channels",
			yaml: "broker: tcp://x\nanalog:\n  channels: 12\n",
			want: "maximum",
		},
		{
			name: "bad duration",
			yaml: "broker: tcp://x\npoll: fast\n",
			want: "duration",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseRejectsOverCapacity(t *testing.T) {
	// 11 distinct ids cannot fit a 10-slot table.
	yaml := "broker: tcp://x\npins:\n" +
		"  - {pin: 0}\n  - {pin: 1}\n  - {pin: 2}\n  - {pin: 3}\n  - {pin: 4}\n" +
		"  - {pin: 5}\n  - {pin: 6}\n  - {pin: 7}\n  - {pin: 8}\n  - {pin: 9}\n" +
		"timers:\n  - {id: 20, period_ms: 10}\n"
	if _, err := Parse([]byte(yaml)); err == nil {
		t.Fatal("expected capacity error")
	} else if !strings.Contains(err.Error(), "slot table") {
		t.Errorf("error %q does not mention the slot table", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWatchPublishesValidUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickd.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	updated := strings.Replace(validYAML, "15m", "30m", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-w.Updates():
		if cfg.Heartbeat.Std() != 30*time.Minute {
			t.Errorf("heartbeat = %v, want 30m", cfg.Heartbeat.Std())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no update published")
	}
}

func TestWatchRejectsInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickd.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("not: [valid"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-w.Updates():
		t.Fatalf("invalid edit published a config: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
		// expected: nothing published
	}
}
