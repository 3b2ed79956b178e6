// Package gateway provides the coordinator that owns the fleet registry,
// the session table, the assignment policy, and the migration engine.
// Handlers receive the coordinator value explicitly; there are no
// process-level registries.
package gateway

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/balancer"
	"github.com/firasghr/GoGameGateway/metrics"
	"github.com/firasghr/GoGameGateway/migration"
	"github.com/firasghr/GoGameGateway/registry"
	"github.com/firasghr/GoGameGateway/session"
)

// Gateway is the coordination core shared by the control-plane WebSocket
// endpoint, the HTTP reverse proxy, and the admin API.
type Gateway struct {
	Registry   *registry.Registry
	Sessions   *session.Table
	Migrations *migration.Engine
	Metrics    *metrics.Metrics

	balancer *balancer.Balancer
	log      zerolog.Logger
}

// New wires a Gateway from its owned parts.
func New(reg *registry.Registry, tbl *session.Table, eng *migration.Engine,
	bal *balancer.Balancer, m *metrics.Metrics, log zerolog.Logger) *Gateway {
	return &Gateway{
		Registry:   reg,
		Sessions:   tbl,
		Migrations: eng,
		Metrics:    m,
		balancer:   bal,
		log:        log.With().Str("component", "gateway").Logger(),
	}
}

// ServerForClient resolves the sticky assignment for clientID.
//
// An existing session is honoured as long as its server still exists and
// has spare capacity; the lookup refreshes the session's activity
// timestamp. Otherwise the stale session is dropped and the balancer
// picks a new target among the healthy servers, creating a fresh
// session. The second result is false when no server is eligible.
func (g *Gateway) ServerForClient(clientID string) (registry.GameServer, bool) {
	if s, ok := g.Sessions.Lookup(clientID); ok {
		if srv, ok := g.Registry.Get(s.ServerID); ok && srv.HasCapacity() {
			g.Metrics.IncrementAssignments()
			return srv, true
		}
		// Server gone or full: the binding is stale.
		g.Sessions.Delete(clientID)
	}

	srv, ok := g.balancer.Select(g.Registry.Healthy())
	if !ok {
		return registry.GameServer{}, false
	}
	g.Sessions.Bind(clientID, srv.ID)
	g.Metrics.IncrementAssignments()
	g.log.Info().Str("clientId", clientID).Str("serverId", srv.ID).
		Msg("client assigned")
	return srv, true
}

// RandomServer picks a uniformly random registered server. The HTTP
// proxy deliberately uses this instead of the round-robin path so that a
// burst of cookie-less requests does not stampede a single backend.
func (g *Gateway) RandomServer() (registry.GameServer, bool) {
	snap := g.Registry.Snapshot()
	if len(snap) == 0 {
		return registry.GameServer{}, false
	}
	return snap[rand.Intn(len(snap))], true //nolint:gosec // load spreading, not crypto
}
