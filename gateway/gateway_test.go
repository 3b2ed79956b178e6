package gateway_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/balancer"
	"github.com/firasghr/GoGameGateway/gateway"
	"github.com/firasghr/GoGameGateway/metrics"
	"github.com/firasghr/GoGameGateway/migration"
	"github.com/firasghr/GoGameGateway/registry"
	"github.com/firasghr/GoGameGateway/session"
)

func newGateway(t *testing.T) (*gateway.Gateway, *registry.Registry, *session.Table) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	reg := registry.New(30*time.Second, clock, zerolog.Nop())
	tbl := session.NewTable(clock)
	hist := migration.NewHistory()
	eng := migration.NewEngine(reg, tbl, hist, clock, zerolog.Nop())
	bal := balancer.New(balancer.PolicyRoundRobin)
	gw := gateway.New(reg, tbl, eng, bal, metrics.NewMetrics(), zerolog.Nop())
	return gw, reg, tbl
}

func TestServerForClient_Sticky(t *testing.T) {
	gw, reg, _ := newGateway(t)
	reg.Register(registry.Registration{ID: "s1", Host: "a", MaxConnections: 1000})

	first, ok := gw.ServerForClient("c1")
	if !ok {
		t.Fatal("expected an assignment")
	}
	second, ok := gw.ServerForClient("c1")
	if !ok || second.ID != first.ID {
		t.Errorf("got %q then %q, want the same server twice", first.ID, second.ID)
	}
}

func TestServerForClient_RoundRobinAcrossClients(t *testing.T) {
	gw, reg, _ := newGateway(t)
	reg.Register(registry.Registration{ID: "s1", Host: "a", MaxConnections: 1000})
	reg.Register(registry.Registration{ID: "s2", Host: "b", MaxConnections: 1000})

	want := []string{"s1", "s2", "s1"}
	for i, client := range []string{"c1", "c2", "c3"} {
		srv, ok := gw.ServerForClient(client)
		if !ok {
			t.Fatalf("client %s: no assignment", client)
		}
		if srv.ID != want[i] {
			t.Errorf("client %s: got %q, want %q", client, srv.ID, want[i])
		}
	}
}

func TestServerForClient_NoServers(t *testing.T) {
	gw, _, tbl := newGateway(t)
	if _, ok := gw.ServerForClient("c1"); ok {
		t.Error("expected no assignment with an empty fleet")
	}
	if tbl.Count() != 0 {
		t.Error("a failed assignment must not create a session")
	}
}

func TestServerForClient_FullServerFallsThrough(t *testing.T) {
	gw, reg, tbl := newGateway(t)
	reg.Register(registry.Registration{ID: "s1", Host: "a", MaxConnections: 1})
	reg.Register(registry.Registration{ID: "s2", Host: "b", MaxConnections: 1000})
	tbl.Bind("c1", "s1")

	// s1 fills up; the sticky binding is stale and must be replaced.
	if err := reg.Heartbeat(registry.HeartbeatUpdate{ID: "s1", ActiveConnections: 1}); err != nil {
		t.Fatal(err)
	}

	srv, ok := gw.ServerForClient("c1")
	if !ok || srv.ID != "s2" {
		t.Errorf("got %v %v, want reassignment to s2", srv.ID, ok)
	}
	s, _ := tbl.Lookup("c1")
	if s.ServerID != "s2" {
		t.Errorf("session still bound to %q, want s2", s.ServerID)
	}
}

func TestServerForClient_DeletedServerFallsThrough(t *testing.T) {
	gw, reg, tbl := newGateway(t)
	reg.Register(registry.Registration{ID: "s2", Host: "b", MaxConnections: 1000})
	tbl.Bind("c1", "gone")

	srv, ok := gw.ServerForClient("c1")
	if !ok || srv.ID != "s2" {
		t.Errorf("got %v %v, want reassignment to s2", srv.ID, ok)
	}
}

func TestRandomServer(t *testing.T) {
	gw, reg, _ := newGateway(t)
	if _, ok := gw.RandomServer(); ok {
		t.Error("expected no server from an empty fleet")
	}

	reg.Register(registry.Registration{ID: "s1", Host: "a", MaxConnections: 10})
	reg.Register(registry.Registration{ID: "s2", Host: "b", MaxConnections: 10})

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		srv, ok := gw.RandomServer()
		if !ok {
			t.Fatal("expected a server")
		}
		seen[srv.ID] = true
	}
	if !seen["s1"] || !seen["s2"] {
		t.Errorf("uniform pick over 200 draws should hit both servers, got %v", seen)
	}
}
