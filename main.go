// GoGameGateway is the connection gateway and load balancer in front of a
// fleet of stateful game servers.
//
// Startup sequence:
//  1. Parse flags and load configuration (JSON file plus env overrides).
//  2. Initialise the structured logger.
//  3. Build the core: fleet registry, session table, balancer, migration
//     engine, and the gateway coordinator that ties them together.
//  4. Start the worker pool and the reaper sweeps.
//  5. Bind the admin/proxy HTTP listener and the control-plane WebSocket
//     listener, with TLS when a cert pair is loadable.
//  6. Monitor metrics in a background goroutine.
//  7. Block until OS signals SIGINT or SIGTERM, then shut down cleanly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/balancer"
	"github.com/firasghr/GoGameGateway/config"
	"github.com/firasghr/GoGameGateway/control"
	"github.com/firasghr/GoGameGateway/dashboard"
	"github.com/firasghr/GoGameGateway/gateway"
	"github.com/firasghr/GoGameGateway/logger"
	"github.com/firasghr/GoGameGateway/metrics"
	"github.com/firasghr/GoGameGateway/migration"
	"github.com/firasghr/GoGameGateway/proxy"
	"github.com/firasghr/GoGameGateway/registry"
	"github.com/firasghr/GoGameGateway/scheduler"
	"github.com/firasghr/GoGameGateway/session"
	"github.com/firasghr/GoGameGateway/worker"
)

func main() {
	// ── Flags ──────────────────────────────────────────────────────────────
	configFile := flag.String("config", "", "Path to JSON config file (optional; env and defaults if omitted)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// ── Logger ─────────────────────────────────────────────────────────────
	log := logger.New(*debug)
	log.Info().Msg("GoGameGateway starting up")

	// ── Configuration ──────────────────────────────────────────────────────
	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.LoadConfig(*configFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *configFile).Msg("failed to load config")
		}
		log.Info().Str("file", *configFile).Msg("configuration loaded")
	} else {
		cfg = config.FromEnv()
		log.Info().Msg("no config file supplied; using environment and defaults")
	}
	if cfg.Gateway.AuthKey == "" {
		log.Warn().Msg("no auth key configured; server registrations and operator logins will all be rejected")
	}

	clock := clockwork.NewRealClock()

	// ── Core ───────────────────────────────────────────────────────────────
	m := metrics.NewMetrics()
	reg := registry.New(cfg.Gateway.ServerTimeout, clock, log)
	tbl := session.NewTable(clock)
	eng := migration.NewEngine(reg, tbl, migration.NewHistory(), clock, log)
	bal := balancer.New(balancer.ParsePolicy(cfg.Gateway.LoadBalancing))
	gw := gateway.New(reg, tbl, eng, bal, m, log)

	// ── Worker pool and reaper ─────────────────────────────────────────────
	pool := worker.NewPool(runtime.NumCPU())
	pool.Start()
	reaper := scheduler.NewReaper(reg, tbl, eng, pool,
		cfg.Gateway.HeartbeatInterval, cfg.Gateway.SessionTimeout, clock, log)
	reaper.Start()
	log.Info().
		Dur("heartbeatInterval", cfg.Gateway.HeartbeatInterval).
		Dur("serverTimeout", cfg.Gateway.ServerTimeout).
		Dur("sessionTimeout", cfg.Gateway.SessionTimeout).
		Msg("reaper started")

	// ── Listeners ──────────────────────────────────────────────────────────
	tlsConf, err := cfg.LoadTLS()
	if err != nil {
		log.Warn().Err(err).Msg("TLS requested but certificate pair unavailable; falling back to plain listeners")
		cfg.Gateway.TLS.Enabled = false // the port chain follows the fallback
	}

	adminSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort()),
		Handler:           dashboard.NewServer(gw, proxy.NewHandler(gw, log), cfg.Gateway.AuthKey, clock, log),
		TLSConfig:         tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
	}
	controlSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Gateway.WSPort),
		Handler:           control.NewServer(gw, cfg.Gateway.MaxBufferSize, clock, log),
		TLSConfig:         tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go serve(adminSrv, "admin", log)
	go serve(controlSrv, "control", log)
	log.Info().Str("admin", adminSrv.Addr).Str("control", controlSrv.Addr).
		Bool("tls", tlsConf != nil).Msg("listeners starting")

	// ── Metrics monitor ────────────────────────────────────────────────────
	// Log a summary line every 10 seconds.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			assignments, proxied, proxyErrors, dropped := m.Snapshot()
			log.Info().
				Uint64("assignments", assignments).
				Uint64("proxied", proxied).
				Uint64("proxyErrors", proxyErrors).
				Uint64("droppedFrames", dropped).
				Float64("proxiedPerSec", m.ProxiedPerSecond()).
				Int("servers", reg.Count()).
				Int("sessions", tbl.Count()).
				Msg("gateway metrics")
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Println() // newline after ^C
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("admin listener shutdown")
	}
	if err := controlSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("control listener shutdown")
	}

	// Stop the sweeps before the pool so no new jobs are submitted, then
	// wait for in-flight migrations to finish.
	reaper.Stop()
	pool.Stop()

	assignments, proxied, proxyErrors, dropped := m.Snapshot()
	log.Info().
		Uint64("assignments", assignments).
		Uint64("proxied", proxied).
		Uint64("proxyErrors", proxyErrors).
		Uint64("droppedFrames", dropped).
		Msg("final metrics")
	log.Info().Msg("GoGameGateway shut down cleanly")
}

// serve runs srv until shutdown, honouring its TLS config.
func serve(srv *http.Server, name string, log zerolog.Logger) {
	var err error
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Str("listener", name).Msg("listener failed")
	}
}
