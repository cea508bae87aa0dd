package viewsync

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer holds the latest input and evaluates it once the input has been
// quiet for the delay. Every Push restarts the wait.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	fn    func(string)

	mu      sync.Mutex
	timer   *clock.Timer
	pending string
	has     bool
	gen     uint64
}

// NewDebouncer returns a Debouncer calling fn with the settled value.
func NewDebouncer(clk clock.Clock, delay time.Duration, fn func(string)) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{clock: clk, delay: delay, fn: fn}
}

// Push records value and reschedules evaluation.
func (d *Debouncer) Push(value string) {
	d.mu.Lock()
	d.pending = value
	d.has = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.delay <= 0 {
		d.mu.Unlock()
		d.fire(gen)
		return
	}
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Flush evaluates the pending value now. It reports whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	gen := d.gen
	has := d.has
	d.mu.Unlock()
	if !has {
		return false
	}
	return d.fire(gen)
}

// Cancel drops the pending value.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.has = false
	d.pending = ""
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending returns the value waiting to be evaluated.
func (d *Debouncer) Pending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.has
}

func (d *Debouncer) fire(gen uint64) bool {
	d.mu.Lock()
	if gen != d.gen || !d.has {
		d.mu.Unlock()
		return false
	}
	value := d.pending
	d.has = false
	d.pending = ""
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.fn(value)
	return true
}
