// Package propagate fans change markers out to live viewers. Events carry
// no payload; viewers re-fetch the reconciled view on receipt. Delivery is
// best effort: every viewer also polls, so a dropped event costs latency,
// never correctness.
package propagate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "liturgyd/internal/log"
)

// Event is one change marker pushed to viewers.
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Quarter   string    `json:"quarter,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// viewerBuffer is the per-viewer event channel depth. A viewer that falls
// this far behind has its events dropped, not its connection killed; the
// poll loop will catch it up.
const viewerBuffer = 8

// Viewer is one live connection, tagged with the quarter it watches.
type Viewer struct {
	ID      string
	Quarter string
	// Events delivers change markers. It is closed on deregistration.
	Events chan Event

	connectedAt time.Time
	closed      bool
}

// Stats describes the current registry, for the debug endpoint.
type Stats struct {
	Total     int            `json:"total"`
	ByQuarter map[string]int `json:"by_quarter"`
}

// Hub is the viewer registry. Construct one per server instance; it is not
// a package-level singleton so tests get a fresh registry per case.
type Hub struct {
	mu      sync.Mutex
	viewers map[string]*Viewer
}

func NewHub() *Hub {
	return &Hub{viewers: make(map[string]*Viewer)}
}

// Register adds a viewer watching the given quarter and returns it.
func (h *Hub) Register(quarter string) *Viewer {
	v := &Viewer{
		ID:          uuid.NewString(),
		Quarter:     quarter,
		Events:      make(chan Event, viewerBuffer),
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	h.viewers[v.ID] = v
	total := len(h.viewers)
	h.mu.Unlock()

	appLog.Info("viewer connected", "viewer_id", v.ID, "quarter", quarter, "total", total)
	return v
}

// Unregister removes a viewer and closes its event channel. Safe to call
// more than once.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	v, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
		if !v.closed {
			v.closed = true
			close(v.Events)
		}
	}
	total := len(h.viewers)
	h.mu.Unlock()

	if ok {
		appLog.Info("viewer disconnected", "viewer_id", id, "quarter", v.Quarter, "total", total)
	}
}

// Broadcast pushes an event to every viewer watching the given quarter.
// Returns how many viewers were sent to and how many had the event dropped.
func (h *Hub) Broadcast(quarter string, ev Event) (sent, dropped int) {
	return h.send(func(v *Viewer) bool { return v.Quarter == quarter }, ev)
}

// BroadcastAll pushes an event to every viewer regardless of quarter. Used
// when the affected dates cannot be derived, e.g. the store webhook.
func (h *Hub) BroadcastAll(ev Event) (sent, dropped int) {
	return h.send(func(*Viewer) bool { return true }, ev)
}

func (h *Hub) send(match func(*Viewer) bool, ev Event) (sent, dropped int) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.Lock()
	for _, v := range h.viewers {
		if v.closed || !match(v) {
			continue
		}
		select {
		case v.Events <- ev:
			sent++
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	appLog.Info("broadcast complete", "type", ev.Type, "quarter", ev.Quarter, "sent", sent, "dropped", dropped)
	return sent, dropped
}

// Count returns the number of registered viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// GetStats returns a snapshot of the registry.
func (h *Hub) GetStats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{Total: len(h.viewers), ByQuarter: make(map[string]int)}
	for _, v := range h.viewers {
		s.ByQuarter[v.Quarter]++
	}
	return s
}

// SweepStale deregisters viewers older than maxAge. Transport-level aborts
// normally deregister viewers; the sweep is the backstop against silent
// connection drops leaking registrations.
func (h *Hub) SweepStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	h.mu.Lock()
	var stale []string
	for id, v := range h.viewers {
		if v.connectedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	for _, id := range stale {
		h.Unregister(id)
	}

	if len(stale) > 0 {
		appLog.Info("swept stale viewers", "count", len(stale))
	}
	return len(stale)
}
