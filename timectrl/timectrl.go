package timectrl

import (
	"context"
	"sync"
	"time"
)

// Heartbeat fires registered listeners on a fixed wall-clock interval until
// it is stopped or its context is cancelled. Long simulation runs use it to
// report progress.
type Heartbeat struct {
	mu       sync.RWMutex
	Interval time.Duration

	beats    int
	lastBeat time.Time

	listeners []func(beat int, at time.Time)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHeartbeat constructs a heartbeat. A non-positive interval defaults to
// one second.
func NewHeartbeat(interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = time.Second
	}
	return &Heartbeat{
		Interval: interval,
		stop:     make(chan struct{}),
	}
}

// AddListener registers a callback invoked on every beat. Listeners must be
// added before Start.
func (h *Heartbeat) AddListener(fn func(beat int, at time.Time)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Beats reports how many beats have fired so far.
func (h *Heartbeat) Beats() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.beats
}

// LastBeat returns the wall-clock time of the most recent beat.
func (h *Heartbeat) LastBeat() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastBeat
}

// Start runs the heartbeat in a separate goroutine. It returns a channel that
// is closed once the heartbeat has stopped.
func (h *Heartbeat) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(h.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case now := <-ticker.C:
				h.mu.Lock()
				h.beats++
				h.lastBeat = now
				beat := h.beats
				listeners := append([]func(int, time.Time){}, h.listeners...)
				h.mu.Unlock()

				for _, fn := range listeners {
					fn(beat, now)
				}
			}
		}
	}()
	return done
}

// Stop ends the heartbeat. It is safe to call more than once.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}
