package server

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/HerbHall/mibagent/internal/mib"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// TableHealth is what the tracker has learned about one table from the
// event bus.
type TableHealth struct {
	Published           bool      `json:"published"`
	LastPublished       time.Time `json:"last_published,omitzero"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Tracker follows table refresh events and answers readiness.
type Tracker struct {
	mu      sync.RWMutex
	tables  map[string]*TableHealth
	unsub   func()
	nowFunc func() time.Time
}

// NewTracker subscribes a tracker to every mib.* topic on sub.
func NewTracker(sub plugin.Subscriber) *Tracker {
	t := &Tracker{
		tables:  make(map[string]*TableHealth),
		nowFunc: time.Now,
	}
	t.unsub = sub.Subscribe("mib.*", t.handle)
	return t
}

// Close unsubscribes the tracker.
func (t *Tracker) Close() {
	if t.unsub != nil {
		t.unsub()
	}
}

func (t *Tracker) handle(_ context.Context, e plugin.Event) {
	at := e.Timestamp
	if at.IsZero() {
		at = t.nowFunc()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch p := e.Payload.(type) {
	case mib.SnapshotPublished:
		h := t.entry(p.Table)
		h.Published = true
		h.LastPublished = at
		h.ConsecutiveFailures = 0
	case mib.RefreshFailed:
		h := t.entry(p.Table)
		h.LastFailure = at
		h.ConsecutiveFailures++
	}
}

func (t *Tracker) entry(name string) *TableHealth {
	h, ok := t.tables[name]
	if !ok {
		h = &TableHealth{}
		t.tables[name] = h
	}
	return h
}

// Health returns what is known about a table.
func (t *Tracker) Health(name string) TableHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.tables[name]; ok {
		return *h
	}
	return TableHealth{}
}

// Ready returns nil once every named table has published a snapshot.
func (t *Tracker) Ready(names []string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var waiting []string
	for _, n := range names {
		if h, ok := t.tables[n]; !ok || !h.Published {
			waiting = append(waiting, n)
		}
	}
	if len(waiting) > 0 {
		slices.Sort(waiting)
		return fmt.Errorf("waiting for first snapshot of %v", waiting)
	}
	return nil
}
