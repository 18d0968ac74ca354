package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/multipath-simulator/core"
)

func cell(ix, iy int, q core.LinkQuality) core.ReceiverResult {
	return core.ReceiverResult{
		Receiver: core.Vec3{X: float64(ix) + 0.5, Y: float64(iy) + 0.5},
		GridX:    ix,
		GridY:    iy,
		Quality:  q,
	}
}

func TestPutAndGetResult(t *testing.T) {
	store := NewResultStore()
	store.PutResult("run-1", cell(2, 3, core.LinkQualityGood))

	got, ok := store.Get("run-1", 2, 3)
	if !ok {
		t.Fatalf("Get returned !ok for stored cell")
	}
	if got.Quality != core.LinkQualityGood {
		t.Fatalf("Quality = %v, want GOOD", got.Quality)
	}
	if _, ok := store.Get("run-1", 0, 0); ok {
		t.Fatalf("Get returned ok for missing cell")
	}
	if _, ok := store.Get("other", 2, 3); ok {
		t.Fatalf("Get returned ok for unknown run")
	}
}

func TestPutResultReplacesCell(t *testing.T) {
	store := NewResultStore()
	store.PutResult("r", cell(0, 0, core.LinkQualityDown))
	store.PutResult("r", cell(0, 0, core.LinkQualityFair))

	if got := store.Count("r"); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	if got, _ := store.Get("r", 0, 0); got.Quality != core.LinkQualityFair {
		t.Fatalf("Quality = %v, want FAIR", got.Quality)
	}
}

func TestResultsOrderedByRowThenColumn(t *testing.T) {
	store := NewResultStore()
	store.PutResult("r", cell(1, 1, core.LinkQualityPoor))
	store.PutResult("r", cell(0, 1, core.LinkQualityPoor))
	store.PutResult("r", cell(1, 0, core.LinkQualityPoor))
	store.PutResult("r", cell(0, 0, core.LinkQualityPoor))

	res := store.Results("r")
	want := [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	if len(res) != len(want) {
		t.Fatalf("Results len=%d, want %d", len(res), len(want))
	}
	for i, w := range want {
		if res[i].GridX != w[0] || res[i].GridY != w[1] {
			t.Fatalf("Results[%d] = (%d,%d), want (%d,%d)", i, res[i].GridX, res[i].GridY, w[0], w[1])
		}
	}
}

func TestRunsAndSummary(t *testing.T) {
	store := NewResultStore()
	for i := 0; i < 3; i++ {
		store.PutResult(fmt.Sprintf("run-%d", i), cell(i, 0, core.LinkQualityExcellent))
	}
	store.PutResult("run-0", cell(5, 5, core.LinkQualityDown))

	runs := store.Runs()
	if len(runs) != 3 || runs[0] != "run-0" || runs[2] != "run-2" {
		t.Fatalf("Runs = %v", runs)
	}
	sum := store.Summary("run-0")
	if sum[core.LinkQualityExcellent] != 1 || sum[core.LinkQualityDown] != 1 {
		t.Fatalf("Summary = %v", sum)
	}
	if _, ok := sum[core.LinkQualityGood]; !ok {
		t.Fatalf("Summary missing zero bucket for GOOD")
	}
}

func TestDeleteRunAndSubscribe(t *testing.T) {
	store := NewResultStore()

	var mu sync.Mutex
	var events []Event
	unsubscribe := store.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	store.PutResult("r", cell(0, 0, core.LinkQualityGood))
	if err := store.DeleteRun("r"); err != nil {
		t.Fatalf("DeleteRun error: %v", err)
	}
	if err := store.DeleteRun("r"); err == nil {
		t.Fatalf("expected DeleteRun on missing run to fail")
	}

	unsubscribe()
	unsubscribe()
	store.PutResult("r", cell(1, 1, core.LinkQualityGood))

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventResultStored || events[0].RunID != "r" {
		t.Fatalf("first event = %+v, want EventResultStored for r", events[0])
	}
	if events[1].Type != EventRunDeleted {
		t.Fatalf("second event type = %v, want EventRunDeleted", events[1].Type)
	}
}

func TestUnsubscribeKeepsOtherSubscribers(t *testing.T) {
	store := NewResultStore()
	var first, second int
	unsubFirst := store.Subscribe(func(Event) { first++ })
	store.Subscribe(func(Event) { second++ })

	unsubFirst()
	store.PutResult("r", cell(0, 0, core.LinkQualityGood))

	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d, want 0 and 1", first, second)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewResultStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Results("r")
			_ = store.Summary("r")
		}()
		go func() {
			defer wg.Done()
			store.PutResult("r", cell(i, 0, core.LinkQualityFair))
		}()
	}
	wg.Wait()

	if got := store.Count("r"); got != 10 {
		t.Fatalf("Count = %d, want 10", got)
	}
}
