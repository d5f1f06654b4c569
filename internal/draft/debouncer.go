package draft

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/quickinvoice/internal/clock"
)

type State int

const (
	Idle State = iota
	PendingSave
)

func (s State) String() string {
	if s == PendingSave {
		return "pending_save"
	}
	return "idle"
}

// Debouncer runs fn once mutations have been quiet for the delay. Every
// Trigger restarts the quiet period. Timer-driven runs get a background
// context; Flush passes the caller's.
type Debouncer struct {
	mu    sync.Mutex
	clock clock.Clock
	delay func() time.Duration
	fn    func(context.Context)
	timer clock.Timer
	gen   uint64
	state State
}

func NewDebouncer(clk clock.Clock, delay func() time.Duration, fn func(context.Context)) *Debouncer {
	return &Debouncer{clock: clk, delay: delay, fn: fn}
}

// Trigger moves to PendingSave and (re)arms the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.state = PendingSave
	d.timer = d.clock.AfterFunc(d.delay(), func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.state != PendingSave {
		d.mu.Unlock()
		return
	}
	d.state = Idle
	d.timer = nil
	d.mu.Unlock()

	d.fn(context.Background())
}

// Flush runs fn now if a save is pending. It reports whether fn ran.
func (d *Debouncer) Flush(ctx context.Context) bool {
	if !d.Cancel() {
		return false
	}
	d.fn(ctx)
	return true
}

// Cancel drops a pending save. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != PendingSave {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.state = Idle
	return true
}

func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
