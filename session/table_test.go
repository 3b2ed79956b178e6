package session_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/firasghr/GoGameGateway/session"
)

func TestBindAndLookup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tbl := session.NewTable(clock)

	tbl.Bind("c1", "s1")
	s, ok := tbl.Lookup("c1")
	if !ok {
		t.Fatal("session c1 not found after bind")
	}
	if s.ServerID != "s1" {
		t.Errorf("got serverId=%q, want s1", s.ServerID)
	}

	if _, ok := tbl.Lookup("ghost"); ok {
		t.Error("lookup of unknown client should miss")
	}
}

func TestBind_OneSessionPerClient(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tbl := session.NewTable(clock)

	tbl.Bind("c1", "s1")
	tbl.Bind("c1", "s2")

	if tbl.Count() != 1 {
		t.Errorf("got %d sessions, want 1", tbl.Count())
	}
	s, _ := tbl.Lookup("c1")
	if s.ServerID != "s2" {
		t.Errorf("got serverId=%q, want latest binding s2", s.ServerID)
	}
}

func TestLookup_RefreshesActivity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tbl := session.NewTable(clock)

	tbl.Bind("c1", "s1")
	first, _ := tbl.Lookup("c1")

	clock.Advance(5 * time.Minute)
	second, _ := tbl.Lookup("c1")
	if !second.LastActivity.After(first.LastActivity) {
		t.Error("lastActivity should advance on each lookup")
	}

	// The refresh keeps the session out of idle expiry.
	clock.Advance(6 * time.Minute)
	if removed := tbl.ExpireIdle(10 * time.Minute); removed != 0 {
		t.Errorf("expired %d sessions, want 0 (activity was refreshed)", removed)
	}
}

func TestRebind_ResetsIdleBudget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tbl := session.NewTable(clock)

	tbl.Bind("c1", "s1")
	clock.Advance(9 * time.Minute)
	tbl.Rebind("c1", "s2")

	clock.Advance(2 * time.Minute) // 11m since bind, 2m since rebind
	if removed := tbl.ExpireIdle(10 * time.Minute); removed != 0 {
		t.Errorf("expired %d sessions, want 0 after rebind", removed)
	}

	s, _ := tbl.Lookup("c1")
	if s.ServerID != "s2" {
		t.Errorf("got serverId=%q, want s2", s.ServerID)
	}

	// Rebinding a missing session is a no-op.
	tbl.Rebind("ghost", "s2")
	if tbl.Count() != 1 {
		t.Errorf("got %d sessions, want 1", tbl.Count())
	}
}

func TestForServer_SortedAndNamespaced(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tbl := session.NewTable(clock)

	tbl.Bind("c2", "s1")
	tbl.Bind("c1", "s1")
	tbl.Bind(session.HTTPPrefix+"abc", "s1")
	tbl.Bind("c3", "s2")

	got := tbl.ForServer("s1")
	want := []string{"c1", "c2", session.HTTPPrefix + "abc"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpireIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tbl := session.NewTable(clock)

	tbl.Bind("old", "s1")
	clock.Advance(11 * time.Minute)
	tbl.Bind("fresh", "s1")

	removed := tbl.ExpireIdle(10 * time.Minute)
	if removed != 1 {
		t.Errorf("expired %d sessions, want 1", removed)
	}
	if _, ok := tbl.Lookup("old"); ok {
		t.Error("old session should be gone")
	}
	if _, ok := tbl.Lookup("fresh"); !ok {
		t.Error("fresh session should survive")
	}
}
