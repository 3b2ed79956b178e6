// Package migration provides the migration engine: when a server dies,
// every session bound to it is reassigned across the healthy fleet, and
// an audit record is appended to a bounded history ring.
package migration

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/registry"
	"github.com/firasghr/GoGameGateway/session"
)

// historyLimit bounds the in-memory audit ring.
const historyLimit = 100

// Record is one append-only audit entry. ToServer is a single server id
// when every affected session landed on one server, otherwise the summary
// "<k> servers".
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	FromServer  string    `json:"fromServer"`
	ToServer    string    `json:"toServer"`
	ClientCount int       `json:"clientCount"`
}

// History is the bounded ring of migration records plus the running
// total. The total counts every migrated client ever, including clients
// whose records have been evicted from the ring, so
// total == sum(r.ClientCount) over all records ever appended.
type History struct {
	mu      sync.RWMutex
	records []Record
	total   int64
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds a record and advances the running total. The oldest record
// is evicted once the ring exceeds its limit.
func (h *History) Append(r Record) {
	h.mu.Lock()
	h.records = append(h.records, r)
	if len(h.records) > historyLimit {
		h.records = h.records[len(h.records)-historyLimit:]
	}
	h.total += int64(r.ClientCount)
	h.mu.Unlock()
}

// Recent returns up to n records, most recent first.
func (h *History) Recent(n int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.records) {
		n = len(h.records)
	}
	out := make([]Record, 0, n)
	for i := len(h.records) - 1; i >= len(h.records)-n; i-- {
		out = append(out, h.records[i])
	}
	return out
}

// Total returns the number of clients migrated since startup.
func (h *History) Total() int64 {
	h.mu.RLock()
	n := h.total
	h.mu.RUnlock()
	return n
}

// Engine rewrites session bindings when a server is evicted.
type Engine struct {
	registry *registry.Registry
	sessions *session.Table
	history  *History
	clock    clockwork.Clock
	log      zerolog.Logger
}

// NewEngine creates an Engine over the given fleet and session table.
func NewEngine(reg *registry.Registry, tbl *session.Table, hist *History,
	clock clockwork.Clock, log zerolog.Logger) *Engine {
	return &Engine{
		registry: reg,
		sessions: tbl,
		history:  hist,
		clock:    clock,
		log:      log.With().Str("component", "migration").Logger(),
	}
}

// History exposes the audit ring for status handlers.
func (e *Engine) History() *History { return e.history }

// Migrate reassigns every session bound to deadID across the healthy
// fleet and returns the number of sessions migrated.
//
// The walk is best-effort: the i-th affected client lands on
// healthy[i mod len(healthy)], each rebinding resets the session's idle
// budget, and a single record summarises the whole event. When no
// healthy target exists, the affected sessions are deleted instead —
// their clients get a fresh assignment on the next connect — and no
// record is appended.
//
// Migrate runs before the dead server's registry entry is removed, so
// the dead id is still distinguishable from an id that never existed.
func (e *Engine) Migrate(deadID string) int {
	clients := e.sessions.ForServer(deadID)
	if len(clients) == 0 {
		return 0
	}

	// The dead entry is still registered at this point (deletion happens
	// after migration); it must never be picked as a target.
	healthy := e.registry.Healthy()
	filtered := healthy[:0]
	for _, srv := range healthy {
		if srv.ID != deadID {
			filtered = append(filtered, srv)
		}
	}
	healthy = filtered
	if len(healthy) == 0 {
		for _, clientID := range clients {
			e.sessions.Delete(clientID)
		}
		e.log.Warn().Str("fromServer", deadID).Int("clientCount", len(clients)).
			Msg("no healthy servers; dropped sessions of dead server")
		return 0
	}

	targets := make(map[string]struct{}, len(healthy))
	var lastTarget string
	for i, clientID := range clients {
		target := healthy[i%len(healthy)]
		e.sessions.Rebind(clientID, target.ID)
		targets[target.ID] = struct{}{}
		lastTarget = target.ID
	}

	toServer := lastTarget
	if len(targets) > 1 {
		toServer = fmt.Sprintf("%d servers", len(targets))
	}
	e.history.Append(Record{
		Timestamp:   e.clock.Now(),
		FromServer:  deadID,
		ToServer:    toServer,
		ClientCount: len(clients),
	})

	e.log.Info().Str("fromServer", deadID).Str("toServer", toServer).
		Int("clientCount", len(clients)).Msg("sessions migrated")
	return len(clients)
}
