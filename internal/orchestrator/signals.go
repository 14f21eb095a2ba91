package orchestrator

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalWatcher drives a PauseController from signal files in the
// project's .forge/signals directory. Dropping a file named pause,
// resume, or stop controls the run from outside the process.
type SignalWatcher struct {
	signalsDir string
	controller *PauseController

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSignalWatcher creates a watcher over <projectRoot>/.forge/signals
// bound to the given controller. If the filesystem watcher cannot be
// established the returned watcher still works through CheckSignals
// polling.
func NewSignalWatcher(projectRoot string, controller *PauseController) (*SignalWatcher, error) {
	signalsDir := filepath.Join(projectRoot, ".forge", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sw := &SignalWatcher{
		signalsDir: signalsDir,
		controller: controller,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Polling fallback only.
		return sw, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher

	go sw.watch()
	return sw, nil
}

// watch reacts to signal file creation.
func (sw *SignalWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			sw.apply(filepath.Base(event.Name))
		case <-sw.watcher.Errors:
			// Keep watching; CheckSignals covers missed events.
		}
	}
}

// CheckSignals inspects the signal files directly. Called from the run
// loop between iterations so signals are honored even without a
// functioning filesystem watcher.
func (sw *SignalWatcher) CheckSignals() {
	for _, name := range []string{"stop", "pause", "resume"} {
		if _, err := os.Stat(filepath.Join(sw.signalsDir, name)); err == nil {
			sw.apply(name)
		}
	}
}

// apply translates a signal file name into a controller action.
// Consumed signal files are removed so a later run starts clean.
func (sw *SignalWatcher) apply(name string) {
	switch name {
	case "pause":
		sw.controller.Pause()
	case "resume":
		sw.controller.Resume()
		os.Remove(filepath.Join(sw.signalsDir, "pause"))
	case "stop":
		sw.controller.Stop()
	default:
		return
	}
	os.Remove(filepath.Join(sw.signalsDir, name))
}

// SendSignal writes a signal file for a running orchestrator to pick up.
func SendSignal(projectRoot, name string) error {
	signalsDir := filepath.Join(projectRoot, ".forge", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(signalsDir, name)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Close shuts down the watcher.
func (sw *SignalWatcher) Close() {
	close(sw.done)
	if sw.watcher != nil {
		sw.watcher.Close()
	}
}
