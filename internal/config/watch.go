package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher re-parses the config file when it changes on disk and publishes
// valid new configurations on Updates. Invalid edits are logged and the
// previous configuration stays in force.
type Watcher struct {
	path    string
	log     zerolog.Logger
	fsw     *fsnotify.Watcher
	updates chan *Config
	done    chan struct{}

	last []byte // last committed raw content, to drop no-op write events
}

// Watch starts watching path. The initial content is remembered so editor
// write storms that do not change the content publish nothing.
func Watch(path string, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	// Watch the directory, not the file: editors that replace via rename
	// would otherwise drop the watch.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		log:     log,
		fsw:     fsw,
		updates: make(chan *Config, 1),
		done:    make(chan struct{}),
	}
	if b, err := os.ReadFile(path); err == nil {
		w.last = b
	}
	go w.loop()
	return w, nil
}

// Updates delivers each validated new configuration.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	var debounce *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Editors emit bursts of events per save; settle first.
			if debounce == nil {
				debounce = time.NewTimer(100 * time.Millisecond)
			} else {
				debounce.Reset(100 * time.Millisecond)
			}
			pending = debounce.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	b, err := os.ReadFile(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload: read failed")
		return
	}
	if bytes.Equal(b, w.last) {
		return
	}
	cfg, err := Parse(b)
	if err != nil {
		w.log.Warn().Err(err).Msg("config reload: rejected, keeping previous config")
		return
	}
	w.last = b
	w.log.Info().Str("path", w.path).Msg("config reloaded")

	// Coalesce: a slow consumer only ever sees the newest config.
	select {
	case w.updates <- cfg:
	default:
		select {
		case <-w.updates:
		default:
		}
		w.updates <- cfg
	}
}
