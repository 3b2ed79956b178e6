// Package registry provides the fleet registry – the authoritative map of
// live game servers, driven by registrations and heartbeats.
//
// Concurrency model:
//   - A sync.RWMutex protects the servers map. Reads (Get, Snapshot,
//     Healthy, Count) use RLock so they never block each other. Writes
//     (Register, Heartbeat, Unregister, Delete) use a full Lock, which
//     serialises all per-id mutations.
//   - Snapshot and Healthy return deep copies taken under the read lock,
//     so callers never observe a torn entry and may hold the result for
//     as long as they like.
package registry

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// ErrUnknownServer is returned by Heartbeat and Unregister when no server
// with the given id is registered.
var ErrUnknownServer = errors.New("registry: unknown server id")

// Status values reported in snapshots.
const (
	StatusHealthy = "healthy"
	StatusDead    = "dead"
)

// GameServer is one registered backend. The JSON tags are the wire shape
// used by /status and /api/stats.
type GameServer struct {
	ID         string `json:"id"`
	Host       string `json:"host"`
	PublicHost string `json:"publicHost"`
	Port       int    `json:"port"`
	WSPort     int    `json:"wsPort"`

	LastHeartbeat     time.Time `json:"lastHeartbeat"`
	ActiveConnections int       `json:"activeConnections"`
	MaxConnections    int       `json:"maxConnections"`

	// Optional metrics, refreshed on every heartbeat.
	CPUUsage float64 `json:"cpuUsage"`
	RAMUsage uint64  `json:"ramUsage"`
	RAMTotal uint64  `json:"ramTotal"`

	// Latency is half of the backend's last reported round-trip, in
	// milliseconds.
	Latency int64 `json:"latency"`

	// Status is computed at snapshot time: "healthy" iff the last
	// heartbeat is within the configured server timeout.
	Status string `json:"status"`
}

// HasCapacity reports whether the server can accept another assignment.
func (s GameServer) HasCapacity() bool {
	return s.ActiveConnections < s.MaxConnections
}

// Registration carries the fields of a register call. PublicHost defaults
// to Host when empty.
type Registration struct {
	ID             string
	Host           string
	PublicHost     string
	Port           int
	WSPort         int
	MaxConnections int
}

// HeartbeatUpdate carries the mutable fields of a heartbeat call.
// RTT is the backend's measured round-trip in milliseconds; zero means
// not reported, leaving the stored latency untouched.
type HeartbeatUpdate struct {
	ID                string
	ActiveConnections int
	CPUUsage          float64
	RAMUsage          uint64
	RAMTotal          uint64
	RTT               float64
}

// Registry is the authoritative fleet map.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*GameServer

	clock   clockwork.Clock
	timeout time.Duration
	log     zerolog.Logger
}

// New creates an empty Registry. timeout is the maximum heartbeat silence
// before a server is reported dead in snapshots and excluded from the
// healthy set.
func New(timeout time.Duration, clock clockwork.Clock, log zerolog.Logger) *Registry {
	return &Registry{
		servers: make(map[string]*GameServer),
		clock:   clock,
		timeout: timeout,
		log:     log.With().Str("component", "registry").Logger(),
	}
}

// Register creates or refreshes a server entry. Re-registration of an
// existing id preserves its ActiveConnections (the backend did not lose
// its players by re-announcing itself) and overwrites every other field.
// The heartbeat timestamp is reset to now.
func (r *Registry) Register(reg Registration) {
	if reg.PublicHost == "" {
		reg.PublicHost = reg.Host
	}

	r.mu.Lock()
	active := 0
	if prev, ok := r.servers[reg.ID]; ok {
		active = prev.ActiveConnections
	}
	r.servers[reg.ID] = &GameServer{
		ID:                reg.ID,
		Host:              reg.Host,
		PublicHost:        reg.PublicHost,
		Port:              reg.Port,
		WSPort:            reg.WSPort,
		MaxConnections:    reg.MaxConnections,
		ActiveConnections: active,
		LastHeartbeat:     r.clock.Now(),
	}
	r.mu.Unlock()

	r.log.Info().Str("serverId", reg.ID).Str("host", reg.Host).
		Int("maxConnections", reg.MaxConnections).Msg("server registered")
}

// Heartbeat refreshes a server's liveness and metrics. When the update
// carries a round-trip measurement, the stored latency becomes half of it,
// rounded to the nearest millisecond. Returns ErrUnknownServer for ids
// that were never registered or have already been evicted.
func (r *Registry) Heartbeat(hb HeartbeatUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	srv, ok := r.servers[hb.ID]
	if !ok {
		return ErrUnknownServer
	}
	srv.ActiveConnections = hb.ActiveConnections
	srv.CPUUsage = hb.CPUUsage
	srv.RAMUsage = hb.RAMUsage
	srv.RAMTotal = hb.RAMTotal
	if hb.RTT > 0 {
		srv.Latency = int64(math.Round(hb.RTT / 2))
	}
	srv.LastHeartbeat = r.clock.Now()
	return nil
}

// Unregister deletes the server entry. Sessions bound to the id are left
// alone: they expire on idleness or are reassigned on the client's next
// contact. Returns ErrUnknownServer if the id is absent.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	_, ok := r.servers[id]
	if ok {
		delete(r.servers, id)
	}
	r.mu.Unlock()

	if !ok {
		return ErrUnknownServer
	}
	r.log.Info().Str("serverId", id).Msg("server unregistered")
	return nil
}

// Delete removes a server entry without the not-found error. Used by the
// reaper after migration has completed for the dead id.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.servers, id)
	r.mu.Unlock()
}

// Get returns a copy of the server with the given id.
func (r *Registry) Get(id string) (GameServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	srv, ok := r.servers[id]
	if !ok {
		return GameServer{}, false
	}
	out := *srv
	out.Status = r.status(srv)
	return out, true
}

// Snapshot returns a point-in-time copy of every server, with Status
// computed from heartbeat freshness. The result is sorted by id so that
// selection and wire output are deterministic.
func (r *Registry) Snapshot() []GameServer {
	r.mu.RLock()
	out := make([]GameServer, 0, len(r.servers))
	for _, srv := range r.servers {
		cp := *srv
		cp.Status = r.status(srv)
		out = append(out, cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Healthy returns the servers eligible for assignment: heartbeat within
// the timeout and spare connection capacity. Sorted by id.
func (r *Registry) Healthy() []GameServer {
	all := r.Snapshot()
	out := all[:0]
	for _, srv := range all {
		if srv.Status == StatusHealthy && srv.HasCapacity() {
			out = append(out, srv)
		}
	}
	return out
}

// Expired returns the ids of servers whose heartbeat silence exceeds the
// timeout. The reaper migrates their sessions and then deletes them.
func (r *Registry) Expired() []string {
	now := r.clock.Now()
	r.mu.RLock()
	var out []string
	for id, srv := range r.servers {
		if now.Sub(srv.LastHeartbeat) > r.timeout {
			out = append(out, id)
		}
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Count returns the number of registered servers, dead or alive.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.servers)
	r.mu.RUnlock()
	return n
}

// status computes the snapshot status for srv. Callers hold at least the
// read lock.
func (r *Registry) status(srv *GameServer) string {
	if r.clock.Now().Sub(srv.LastHeartbeat) < r.timeout {
		return StatusHealthy
	}
	return StatusDead
}
