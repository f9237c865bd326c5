// Command tickd runs the millisecond tick scheduler as a daemon: it
// registers the configured debounced inputs and timers, publishes settled
// pin transitions to MQTT, journals them to sqlite, and serves a status
// page over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sweeney/tickd/internal/adc"
	"github.com/sweeney/tickd/internal/config"
	"github.com/sweeney/tickd/internal/gpio"
	"github.com/sweeney/tickd/internal/history"
	"github.com/sweeney/tickd/internal/logx"
	"github.com/sweeney/tickd/internal/mqtt"
	"github.com/sweeney/tickd/internal/sched"
	"github.com/sweeney/tickd/internal/status"
	"github.com/sweeney/tickd/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/tickd/tickd.yaml", "Path to the YAML configuration file")
	printState := flag.Bool("print-state", false, "Print current raw pin levels and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickd: %v\n", err)
		os.Exit(1)
	}

	log, closeLog, err := logx.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tickd: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(*configPath, cfg, *printState, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

func run(configPath string, cfg *config.Config, printState bool, log zerolog.Logger) error {
	pins := make([]uint8, 0, len(cfg.Pins))
	for _, p := range cfg.Pins {
		pins = append(pins, p.Pin)
	}

	gpioReader, err := gpio.NewRealReader(cfg.GPIOChip, pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	if printState {
		for _, p := range cfg.Pins {
			fmt.Printf("%s (pin %d): %s\n", p.Label, p.Pin, levelString(gpioReader.ReadPin(p.Pin)))
		}
		return nil
	}

	var converter adc.Converter
	if cfg.Analog.Channels > 0 && cfg.Analog.Device != "" {
		iio, err := adc.NewIIOConverter(cfg.Analog.Device)
		if err != nil {
			return fmt.Errorf("init adc: %w", err)
		}
		converter = iio
	}

	scheduler := sched.New(sched.Options{
		Pins:         gpioReader,
		ADC:          converter,
		TickInterval: time.Millisecond,
	})
	scheduler.Init(cfg.Analog.Channels)
	defer scheduler.Stop()
	applyRegistrations(scheduler, cfg, log)

	publisher, err := mqtt.NewRealPublisher(cfg.Broker, cfg.TopicPrefix, cfg.PublishRate)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))

	var journal *history.Store
	if cfg.History.Path != "" {
		journal, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer journal.Close()

		c := cron.New()
		retention := cfg.History.Retention.Std()
		if _, err := c.AddFunc(cfg.History.PruneSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			removed, err := journal.Prune(ctx, retention)
			if err != nil {
				log.Warn().Err(err).Msg("history prune failed")
				return
			}
			log.Info().Int64("removed", removed).Msg("history pruned")
		}); err != nil {
			return fmt.Errorf("history prune schedule: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	// Publish the startup event with a full status snapshot.
	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info().Str("addr", cfg.HTTP).Msg("http status server listening")
	}

	watcher, err := config.Watch(configPath, log)
	if err != nil {
		log.Warn().Err(err).Msg("config watch disabled")
	} else {
		defer watcher.Close()
	}
	var reload <-chan *config.Config
	if watcher != nil {
		reload = watcher.Updates()
	}

	// systemd integration: announce readiness, keep the watchdog fed.
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		log.Warn().Err(err).Msg("sd_notify failed")
	} else if ok {
		log.Debug().Msg("sd_notify: ready")
	}
	if interval, err := sd.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go feedWatchdog(interval)
	}

	log.Info().
		Dur("poll", cfg.Poll.Std()).
		Str("broker", cfg.Broker).
		Int("pins", len(cfg.Pins)).
		Int("timers", len(cfg.Timers)).
		Uint8("analog_channels", cfg.Analog.Channels).
		Msg("started")

	ticker := time.NewTicker(cfg.Poll.Std())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(scheduler, cfg, publisher, publisher, tracker, journal, log,
		time.Now, ticker.C, sigCh, reload)
}

// runLoop is the daemon's foreground loop: every poll interval it drains
// settled transitions out of the scheduler, publishes and journals them,
// and refreshes the status tracker. It returns when a signal arrives. All
// time sources and channels are injected so tests can drive it directly.
func runLoop(
	scheduler *sched.Scheduler,
	cfg *config.Config,
	publisher mqtt.Publisher,
	connStatus mqtt.ConnectionStatus,
	tracker *status.Tracker,
	journal *history.Store,
	log zerolog.Logger,
	now func() time.Time,
	tick <-chan time.Time,
	sig <-chan os.Signal,
	reload <-chan *config.Config,
) error {
	// Daemon-side running totals: the scheduler's own counters are
	// drained (read-and-reset) every poll so no transition is counted
	// twice, and the carry in the reset protocol means none is lost.
	totals := make(map[uint8]*counterPair, len(cfg.Pins))
	for _, p := range cfg.Pins {
		totals[p.Pin] = &counterPair{}
	}
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			signalName := "UNKNOWN"
			switch s {
			case syscall.SIGINT:
				signalName = "SIGINT"
			case syscall.SIGTERM:
				signalName = "SIGTERM"
			}
			log.Info().Str("signal", signalName).Msg("shutting down")

			if connStatus != nil {
				tracker.SetMQTTConnected(connStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warn().Err(err).Msg("failed to publish shutdown event")
			}
			return nil

		case newCfg := <-reload:
			applyReload(scheduler, cfg, newCfg, totals, log)
			cfg = newCfg
			tracker.SetConfig(statusConfig(cfg))

		case <-tick:
			t := now()

			for _, p := range cfg.Pins {
				drainPin(scheduler, p, totals[p.Pin], t, publisher, journal, log)
			}

			if connStatus != nil {
				tracker.SetMQTTConnected(connStatus.IsConnected())
			}
			if d, ok := publisher.(interface{ Dropped() uint64 }); ok {
				tracker.SetDroppedEvents(d.Dropped())
			}
			tracker.Update(pinStatuses(scheduler, cfg, totals), analogSnapshot(scheduler, cfg), scheduler.Now())

			if hb := cfg.Heartbeat.Std(); hb > 0 && t.Sub(lastHeartbeat) >= hb {
				lastHeartbeat = t
				snap := tracker.Snapshot()
				if err := publisher.PublishSystem(mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}); err != nil {
					log.Warn().Err(err).Msg("heartbeat publish error")
				}
			}
		}
	}
}

// counterPair accumulates drained transition counts for one pin.
type counterPair struct {
	up   uint64
	down uint64
}

// drainPin reads-and-resets both transition counters for a pin and turns
// any increments into published, journaled events.
func drainPin(
	scheduler *sched.Scheduler,
	p config.Pin,
	totals *counterPair,
	t time.Time,
	publisher mqtt.Publisher,
	journal *history.Store,
	log zerolog.Logger,
) {
	ups := scheduler.PinEventCount(p.Pin, true, true)
	downs := scheduler.PinEventCount(p.Pin, false, true)
	if ups == 0 && downs == 0 {
		return
	}
	totals.up += uint64(ups)
	totals.down += uint64(downs)

	emit := func(edge string, n uint16) {
		for i := uint16(0); i < n; i++ {
			event := mqtt.PinEvent{
				Timestamp: t,
				Pin:       p.Pin,
				Label:     p.Label,
				Edge:      edge,
				UpCount:   ups,
				DownCount: downs,
			}
			log.Info().Str("label", p.Label).Uint8("pin", p.Pin).Str("edge", edge).Msg("event")
			if err := publisher.Publish(event); err != nil {
				log.Warn().Err(err).Msg("publish error")
			}
			if journal != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := journal.Record(ctx, history.Event{
					At: t, Pin: p.Pin, Label: p.Label, Edge: edge,
					UpCount: ups, DownCount: downs,
				}); err != nil {
					log.Warn().Err(err).Msg("journal error")
				}
				cancel()
			}
		}
	}
	emit("HIGH", ups)
	emit("LOW", downs)
}

// applyRegistrations registers every configured pin and timer with the
// scheduler.
func applyRegistrations(scheduler *sched.Scheduler, cfg *config.Config, log zerolog.Logger) {
	for _, p := range cfg.Pins {
		period := p.PeriodMs
		if p.Bypass {
			period = 0
		}
		if !scheduler.Schedule(p.Pin, true, period) {
			log.Error().Uint8("pin", p.Pin).Str("label", p.Label).Msg("schedule failed: table full")
		}
	}
	for _, tm := range cfg.Timers {
		if !scheduler.Schedule(tm.ID, tm.Recurring, tm.PeriodMs) {
			log.Error().Uint8("id", tm.ID).Str("label", tm.Label).Msg("schedule failed: table full")
		}
	}
}

// applyReload cancels registrations that disappeared from the new config
// and applies the new set. Slots are deactivated, not freed: a config
// that churns through many distinct identifiers can still exhaust the
// table, which shows up as schedule failures in the log.
func applyReload(scheduler *sched.Scheduler, oldCfg, newCfg *config.Config, totals map[uint8]*counterPair, log zerolog.Logger) {
	keep := make(map[uint8]bool, len(newCfg.Pins)+len(newCfg.Timers))
	for _, p := range newCfg.Pins {
		keep[p.Pin] = true
		if _, ok := totals[p.Pin]; !ok {
			totals[p.Pin] = &counterPair{}
		}
	}
	for _, tm := range newCfg.Timers {
		keep[tm.ID] = true
	}
	for _, p := range oldCfg.Pins {
		if !keep[p.Pin] {
			scheduler.Cancel(p.Pin)
		}
	}
	for _, tm := range oldCfg.Timers {
		if !keep[tm.ID] {
			scheduler.Cancel(tm.ID)
		}
	}
	applyRegistrations(scheduler, newCfg, log)
	log.Info().Int("pins", len(newCfg.Pins)).Int("timers", len(newCfg.Timers)).Msg("registrations reapplied")
}

// pinStatuses builds the tracker view of every configured pin.
func pinStatuses(scheduler *sched.Scheduler, cfg *config.Config, totals map[uint8]*counterPair) []status.PinStatus {
	out := make([]status.PinStatus, 0, len(cfg.Pins))
	for _, p := range cfg.Pins {
		tp := totals[p.Pin]
		ps := status.PinStatus{
			Pin:   p.Pin,
			Label: p.Label,
			Level: levelString(scheduler.PinLevel(p.Pin, true)),
		}
		if tp != nil {
			ps.UpCount = clampUint16(tp.up)
			ps.DownCount = clampUint16(tp.down)
		}
		out = append(out, ps)
	}
	return out
}

func analogSnapshot(scheduler *sched.Scheduler, cfg *config.Config) []uint16 {
	if cfg.Analog.Channels == 0 {
		return nil
	}
	out := make([]uint16, cfg.Analog.Channels)
	for ch := uint8(0); ch < cfg.Analog.Channels; ch++ {
		out[ch] = scheduler.AnalogRead(ch)
	}
	return out
}

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:         cfg.Poll.Std().Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Std().Milliseconds(),
		Broker:         cfg.Broker,
		TopicPrefix:    cfg.TopicPrefix,
		HTTPAddr:       cfg.HTTP,
		AnalogChannels: cfg.Analog.Channels,
		HistoryPath:    cfg.History.Path,
	}
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func clampUint16(v uint64) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// feedWatchdog pings the systemd watchdog at half its timeout.
func feedWatchdog(interval time.Duration) {
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for range t.C {
		_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
	}
}
