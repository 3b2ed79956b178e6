// Package scheduler drives the gateway's periodic sweeps: evicting dead
// servers (migrating their sessions first) and expiring idle sessions.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/migration"
	"github.com/firasghr/GoGameGateway/registry"
	"github.com/firasghr/GoGameGateway/session"
	"github.com/firasghr/GoGameGateway/worker"
)

// sessionSweepInterval is how often idle sessions are expired.
const sessionSweepInterval = 60 * time.Second

// Reaper runs the dead-server sweep every heartbeat interval and the
// idle-session sweep every minute.
//
// Both sweeps are driven from a single control goroutine, so a session
// sweep never observes a migration in progress. Within a dead-server
// sweep the per-server migrate-then-delete jobs fan out through the
// worker pool and the sweep waits for all of them before returning;
// deletion always happens after migration so the engine can still read
// the dead entry.
type Reaper struct {
	registry *registry.Registry
	sessions *session.Table
	engine   *migration.Engine
	pool     *worker.Pool

	heartbeatInterval time.Duration
	sessionTimeout    time.Duration

	clock  clockwork.Clock
	log    zerolog.Logger
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewReaper creates a Reaper. The pool must be started by the caller and
// outlive the reaper.
func NewReaper(reg *registry.Registry, tbl *session.Table, eng *migration.Engine,
	pool *worker.Pool, heartbeatInterval, sessionTimeout time.Duration,
	clock clockwork.Clock, log zerolog.Logger) *Reaper {
	return &Reaper{
		registry:          reg,
		sessions:          tbl,
		engine:            eng,
		pool:              pool,
		heartbeatInterval: heartbeatInterval,
		sessionTimeout:    sessionTimeout,
		clock:             clock,
		log:               log.With().Str("component", "reaper").Logger(),
		stopCh:            make(chan struct{}),
	}
}

// Start launches the control goroutine. It is non-blocking.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop signals the control goroutine to exit and waits for the current
// sweep, if any, to finish. Idempotent.
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reaper) loop() {
	defer r.wg.Done()

	deadTicker := r.clock.NewTicker(r.heartbeatInterval)
	defer deadTicker.Stop()
	idleTicker := r.clock.NewTicker(sessionSweepInterval)
	defer idleTicker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-deadTicker.Chan():
			r.sweepDeadServers()
		case <-idleTicker.Chan():
			r.sweepIdleSessions()
		}
	}
}

// sweepDeadServers migrates and removes every server whose heartbeat
// silence exceeds the server timeout.
func (r *Reaper) sweepDeadServers() {
	r.evict(r.registry.Expired())
}

// evict runs the migrate-then-delete job for each id through the pool
// and waits for all of them. A server that came back between the ids
// being collected and its job running (re-registration or a late
// heartbeat) is left alone.
func (r *Reaper) evict(ids []string) {
	if len(ids) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		deadID := id
		wg.Add(1)
		r.pool.Submit(func() {
			defer wg.Done()
			srv, ok := r.registry.Get(deadID)
			if !ok || srv.Status == registry.StatusHealthy {
				return
			}
			migrated := r.engine.Migrate(deadID)
			r.registry.Delete(deadID)
			r.log.Warn().Str("serverId", deadID).Int("migrated", migrated).
				Msg("dead server evicted")
		})
	}
	wg.Wait()
}

// sweepIdleSessions expires sessions that have been idle longer than the
// session timeout.
func (r *Reaper) sweepIdleSessions() {
	if removed := r.sessions.ExpireIdle(r.sessionTimeout); removed > 0 {
		r.log.Info().Int("removed", removed).Msg("idle sessions expired")
	}
}
