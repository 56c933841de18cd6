package performance

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of calls per key into one call made after the
// key has been quiet for the configured window.
type Debouncer struct {
	mutex   sync.Mutex
	timers  map[string]*time.Timer
	window  time.Duration
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		timers: make(map[string]*time.Timer),
		window: window,
	}
}

// Debounce schedules fn for key, replacing any call still pending for it.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	if timer, exists := d.timers[key]; exists {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.window, func() {
		d.mutex.Lock()
		if d.timers[key] != timer {
			d.mutex.Unlock()
			return
		}
		delete(d.timers, key)
		d.mutex.Unlock()
		fn()
	})
	d.timers[key] = timer
}

// Pending returns the number of keys with a scheduled call.
func (d *Debouncer) Pending() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.timers)
}

// Stop cancels every pending call and ignores later Debounce calls.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.stopped = true
	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}
