// Package session provides the session table – the authoritative map of
// client-to-server bindings with activity timestamps.
//
// Two client-id namespaces share one table: game clients (ids supplied by
// the client over the control plane) and HTTP proxy sessions (minted ids
// prefixed "http-"). Both are migrated together when a server dies.
//
// Concurrency model: a sync.RWMutex protects the map. Lookup refreshes
// the activity timestamp and therefore takes the write lock; pure reads
// (Count, Snapshot, ForServer) use RLock and return copies so callers
// never observe a torn entry.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// HTTPPrefix marks proxy-minted session ids.
const HTTPPrefix = "http-"

// ClientSession is one sticky binding.
type ClientSession struct {
	ClientID     string    `json:"clientId"`
	ServerID     string    `json:"serverId"`
	LastActivity time.Time `json:"lastActivity"`
}

// Table is the session table.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession
	clock    clockwork.Clock
}

// NewTable creates an empty session table.
func NewTable(clock clockwork.Clock) *Table {
	return &Table{
		sessions: make(map[string]*ClientSession),
		clock:    clock,
	}
}

// Lookup returns the session for clientID and refreshes its activity
// timestamp. The second result is false when no session exists.
func (t *Table) Lookup(clientID string) (ClientSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[clientID]
	if !ok {
		return ClientSession{}, false
	}
	s.LastActivity = t.clock.Now()
	return *s, true
}

// Bind creates or replaces the session for clientID, pointing it at
// serverID with a fresh activity timestamp. At most one session per
// client id exists at any time.
func (t *Table) Bind(clientID, serverID string) {
	t.mu.Lock()
	t.sessions[clientID] = &ClientSession{
		ClientID:     clientID,
		ServerID:     serverID,
		LastActivity: t.clock.Now(),
	}
	t.mu.Unlock()
}

// Rebind rewrites the server binding of an existing session and resets
// its activity timestamp, giving migrated sessions a fresh idle budget.
// A missing session is ignored (it raced with expiry).
func (t *Table) Rebind(clientID, serverID string) {
	t.mu.Lock()
	if s, ok := t.sessions[clientID]; ok {
		s.ServerID = serverID
		s.LastActivity = t.clock.Now()
	}
	t.mu.Unlock()
}

// Delete removes the session for clientID, if any.
func (t *Table) Delete(clientID string) {
	t.mu.Lock()
	delete(t.sessions, clientID)
	t.mu.Unlock()
}

// ForServer returns the client ids currently bound to serverID, sorted
// for deterministic migration order.
func (t *Table) ForServer(serverID string) []string {
	t.mu.RLock()
	var out []string
	for id, s := range t.sessions {
		if s.ServerID == serverID {
			out = append(out, id)
		}
	}
	t.mu.RUnlock()

	sort.Strings(out)
	return out
}

// ExpireIdle deletes every session whose idleness exceeds timeout and
// returns the number removed.
func (t *Table) ExpireIdle(timeout time.Duration) int {
	now := t.clock.Now()
	t.mu.Lock()
	removed := 0
	for id, s := range t.sessions {
		if now.Sub(s.LastActivity) > timeout {
			delete(t.sessions, id)
			removed++
		}
	}
	t.mu.Unlock()
	return removed
}

// Snapshot returns a point-in-time copy of every session, sorted by
// client id.
func (t *Table) Snapshot() []ClientSession {
	t.mu.RLock()
	out := make([]ClientSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Count returns the number of active sessions across both namespaces.
func (t *Table) Count() int {
	t.mu.RLock()
	n := len(t.sessions)
	t.mu.RUnlock()
	return n
}
