package update

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file events into one callback carrying
// every distinct path seen during the burst, in first-seen order.
type Debouncer struct {
	interval time.Duration
	callback func(paths []string)

	mu      sync.Mutex
	timer   *time.Timer
	pending []string
}

// NewDebouncer creates a debouncer that fires callback after interval
// without new events.
func NewDebouncer(interval time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: callback,
	}
}

// Trigger records an event for path and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !slices.Contains(d.pending, path) {
		d.pending = append(d.pending, path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debouncer callback panicked", slog.Any("error", r))
		}
	}()

	d.mu.Lock()
	paths := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(paths) > 0 {
		d.callback(paths)
	}
}

// Stop cancels a pending callback and drops the pending paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.pending = nil
}
