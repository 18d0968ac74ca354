package timectrl

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestHeartbeatDefaultsInterval(t *testing.T) {
	h := NewHeartbeat(0)
	if h.Interval != time.Second {
		t.Fatalf("Interval = %v, want 1s", h.Interval)
	}
}

func TestHeartbeatFiresUntilStopped(t *testing.T) {
	h := NewHeartbeat(2 * time.Millisecond)
	var fired atomic.Int32
	h.AddListener(func(beat int, _ time.Time) {
		fired.Store(int32(beat))
	})

	done := h.Start(context.Background())
	deadline := time.After(time.Second)
	for fired.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("heartbeat fired %d times before deadline, want >= 3", fired.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	h.Stop()
	h.Stop()
	<-done

	if got := h.Beats(); got < 3 {
		t.Fatalf("Beats() = %d, want >= 3", got)
	}
	if h.LastBeat().IsZero() {
		t.Fatalf("LastBeat() is zero after beats")
	}
}

func TestHeartbeatStopsOnContextCancel(t *testing.T) {
	h := NewHeartbeat(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := h.Start(ctx)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("heartbeat did not stop after cancel")
	}
	if got := h.Beats(); got != 0 {
		t.Fatalf("Beats() = %d, want 0", got)
	}
}
