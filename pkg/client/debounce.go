package client

import (
	"sync"
	"time"
)

// SearchDelay is how long a typed term has to stay unchanged before it is searched
const SearchDelay = 500 * time.Millisecond

// Debouncer delivers the latest pushed value once no new value arrived for the delay.
// Every Push restarts the wait; only the last value of a burst reaches fire.
type Debouncer[T any] struct {
	delay time.Duration
	fire  func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer[T any](delay time.Duration, fire func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fire: fire}
}

// Push replaces the pending value and restarts the delay
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// a timer that could not be stopped in time still sees a newer generation
		current := gen == d.gen && !d.stopped
		d.mu.Unlock()
		if current {
			d.fire(v)
		}
	})
}

// Stop drops the pending value; later pushes are ignored
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}
