package kb

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/multipath-simulator/core"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventResultStored EventType = iota
	EventRunDeleted
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type   EventType
	RunID  string
	Result core.ReceiverResult
}

type cellKey struct {
	x, y int
}

var _ core.ResultSink = (*ResultStore)(nil)

// ResultStore is an in-memory, thread-safe store of receiver results keyed by
// run ID and grid cell. Fixed-receiver results live at cell (-1, -1).
type ResultStore struct {
	mu sync.RWMutex

	runs map[string]map[cellKey]core.ReceiverResult

	subs   map[int]func(Event)
	nextID int
}

// NewResultStore constructs an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		runs: make(map[string]map[cellKey]core.ReceiverResult),
		subs: make(map[int]func(Event)),
	}
}

// PutResult stores res under runID, replacing any previous result for the
// same cell, and notifies subscribers.
func (s *ResultStore) PutResult(runID string, res core.ReceiverResult) {
	s.mu.Lock()
	cells, ok := s.runs[runID]
	if !ok {
		cells = make(map[cellKey]core.ReceiverResult)
		s.runs[runID] = cells
	}
	cells[cellKey{res.GridX, res.GridY}] = res
	subs := s.snapshotSubs()
	s.mu.Unlock()

	// Notify outside the lock so subscribers may read the store.
	event := Event{Type: EventResultStored, RunID: runID, Result: res}
	for _, sub := range subs {
		sub(event)
	}
}

// Get returns the result for a grid cell of a run.
func (s *ResultStore) Get(runID string, ix, iy int) (core.ReceiverResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[runID][cellKey{ix, iy}]
	return res, ok
}

// Results returns a snapshot of a run's results ordered by row then column.
func (s *ResultStore) Results(runID string) []core.ReceiverResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cells := s.runs[runID]
	out := make([]core.ReceiverResult, 0, len(cells))
	for _, r := range cells {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GridY != out[j].GridY {
			return out[i].GridY < out[j].GridY
		}
		return out[i].GridX < out[j].GridX
	})
	return out
}

// Count returns how many results a run holds.
func (s *ResultStore) Count(runID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs[runID])
}

// Runs lists the known run IDs in lexical order.
func (s *ResultStore) Runs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary counts a run's results per link quality.
func (s *ResultStore) Summary(runID string) map[core.LinkQuality]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[core.LinkQuality]int, len(core.AllLinkQualities))
	for _, q := range core.AllLinkQualities {
		out[q] = 0
	}
	for _, r := range s.runs[runID] {
		out[r.Quality]++
	}
	return out
}

// DeleteRun drops every result of a run. It returns an error if the run is
// unknown.
func (s *ResultStore) DeleteRun(runID string) error {
	s.mu.Lock()
	if _, ok := s.runs[runID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("run with ID %q not found", runID)
	}
	delete(s.runs, runID)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	event := Event{Type: EventRunDeleted, RunID: runID}
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function that is safe to call more than once.
func (s *ResultStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs copies subscribers in registration order; callers hold mu.
func (s *ResultStore) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
