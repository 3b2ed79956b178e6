// Package dashboard serves the gateway's admin HTTP surface: the
// server-plane endpoints (register, heartbeat, unregister), the public
// status endpoint, and the cookie-authenticated operator API with its
// static pages. Any path outside the route table falls through to the
// reverse proxy.
package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/gateway"
	"github.com/firasghr/GoGameGateway/migration"
	"github.com/firasghr/GoGameGateway/registry"
)

// SessionCookie names the operator login cookie.
const SessionCookie = "dashboard_session"

// ── Wire types ──────────────────────────────────────────────────────────

type registerRequest struct {
	ID             string `json:"id"`
	Host           string `json:"host"`
	PublicHost     string `json:"publicHost"`
	Port           int    `json:"port"`
	WSPort         int    `json:"wsPort"`
	MaxConnections int    `json:"maxConnections"`
	AuthKey        string `json:"authKey"`
}

type heartbeatRequest struct {
	ID                string  `json:"id"`
	ActiveConnections int     `json:"activeConnections"`
	CPUUsage          float64 `json:"cpuUsage"`
	RAMUsage          uint64  `json:"ramUsage"`
	RAMTotal          uint64  `json:"ramTotal"`
	RTT               float64 `json:"rtt"`
	Timestamp         int64   `json:"timestamp"`
	AuthKey           string  `json:"authKey"`
}

type unregisterRequest struct {
	ID      string `json:"id"`
	AuthKey string `json:"authKey"`
}

type loginRequest struct {
	AuthKey string `json:"authKey"`
}

type statusResponse struct {
	TotalServers        int                   `json:"totalServers"`
	TotalActiveSessions int                   `json:"totalActiveSessions"`
	TotalMigrations     int64                 `json:"totalMigrations"`
	RecentMigrations    []migration.Record    `json:"recentMigrations"`
	Servers             []registry.GameServer `json:"servers"`
}

type statsResponse struct {
	Timestamp      int64 `json:"timestamp"`
	HealthyServers int   `json:"healthyServers"`
	statusResponse
}

type debugSession struct {
	ClientID     string    `json:"clientId"`
	ServerID     string    `json:"serverId"`
	LastActivity time.Time `json:"lastActivity"`
	Age          string    `json:"age"`
}

// ── Server ──────────────────────────────────────────────────────────────

// Server is the admin HTTP handler. Routing is an explicit table: paths
// in the table are gateway endpoints, /api/* and /debug/* never leak to
// the proxy, and everything else is forwarded to fallback.
type Server struct {
	gw       *gateway.Gateway
	fallback http.Handler
	authKey  string
	store    *sessionStore
	clock    clockwork.Clock
	log      zerolog.Logger
	routes   map[string]http.HandlerFunc
}

// NewServer creates the admin handler. fallback receives every request
// whose path is not a gateway route; pass the reverse proxy here.
func NewServer(gw *gateway.Gateway, fallback http.Handler, authKey string,
	clock clockwork.Clock, log zerolog.Logger) *Server {
	s := &Server{
		gw:       gw,
		fallback: fallback,
		authKey:  authKey,
		store:    newSessionStore(clock),
		clock:    clock,
		log:      log.With().Str("component", "dashboard").Logger(),
	}
	s.routes = map[string]http.HandlerFunc{
		"/":               s.handleLoginPage,
		"/register":       s.handleRegister,
		"/heartbeat":      s.handleHeartbeat,
		"/unregister":     s.handleUnregister,
		"/status":         s.handleStatus,
		"/debug/sessions": s.handleDebugSessions,
		"/api/login":      s.handleLogin,
		"/api/logout":     s.handleLogout,
		"/api/stats":      s.handleStats,
		"/dashboard":      s.handleDashboard,
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := s.routes[r.URL.Path]; ok {
		h(w, r)
		return
	}
	// Reserved prefixes must never reach a backend.
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/debug/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if s.fallback != nil {
		s.fallback.ServeHTTP(w, r)
		return
	}
	writeError(w, http.StatusNotFound, "Not found")
}

// ── Server plane ────────────────────────────────────────────────────────

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.authorized(req.AuthKey) {
		s.unauthorized(w, r)
		return
	}
	// Only publicHost is optional; a server without ports would hand out
	// unusable proxy targets and assignment frames.
	if req.ID == "" || req.Host == "" || req.Port <= 0 || req.WSPort <= 0 || req.MaxConnections <= 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	s.gw.Registry.Register(registry.Registration{
		ID:             req.ID,
		Host:           req.Host,
		PublicHost:     req.PublicHost,
		Port:           req.Port,
		WSPort:         req.WSPort,
		MaxConnections: req.MaxConnections,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "serverId": req.ID})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.authorized(req.AuthKey) {
		s.unauthorized(w, r)
		return
	}
	err := s.gw.Registry.Heartbeat(registry.HeartbeatUpdate{
		ID:                req.ID,
		ActiveConnections: req.ActiveConnections,
		CPUUsage:          req.CPUUsage,
		RAMUsage:          req.RAMUsage,
		RAMTotal:          req.RAMTotal,
		RTT:               req.RTT,
	})
	if errors.Is(err, registry.ErrUnknownServer) {
		writeError(w, http.StatusNotFound, "Unknown server id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"timestamp": s.clock.Now().UnixMilli(),
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.authorized(req.AuthKey) {
		s.unauthorized(w, r)
		return
	}
	if errors.Is(s.gw.Registry.Unregister(req.ID), registry.ErrUnknownServer) {
		writeError(w, http.StatusNotFound, "Unknown server id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ── Status and debug ────────────────────────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleDebugSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	// Session dumps expose client identifiers, so they require an
	// operator login like /api/stats does.
	if !s.store.Valid(s.token(r)) {
		s.unauthorized(w, r)
		return
	}
	now := s.clock.Now()
	sessions := s.gw.Sessions.Snapshot()
	out := make([]debugSession, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, debugSession{
			ClientID:     sess.ClientID,
			ServerID:     sess.ServerID,
			LastActivity: sess.LastActivity,
			Age:          now.Sub(sess.LastActivity).Truncate(time.Second).String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// ── Operator API ────────────────────────────────────────────────────────

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.authorized(req.AuthKey) {
		s.unauthorized(w, r)
		return
	}
	token := s.store.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	s.log.Info().Msg("operator logged in")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if token := s.token(r); token != "" {
		s.store.Delete(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	// The poll doubles as the keep-alive: only this endpoint slides the
	// login expiry forward.
	if !s.store.Extend(s.token(r)) {
		s.unauthorized(w, r)
		return
	}
	healthy := 0
	st := s.status()
	for _, srv := range st.Servers {
		if srv.Status == registry.StatusHealthy {
			healthy++
		}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Timestamp:      s.clock.Now().UnixMilli(),
		HealthyServers: healthy,
		statusResponse: st,
	})
}

// ── Pages ───────────────────────────────────────────────────────────────

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(loginPage))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.store.Valid(s.token(r)) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardPage))
}

// ── Helpers ─────────────────────────────────────────────────────────────

func (s *Server) status() statusResponse {
	recent := s.gw.Migrations.History().Recent(10)
	if recent == nil {
		recent = []migration.Record{}
	}
	return statusResponse{
		TotalServers:        s.gw.Registry.Count(),
		TotalActiveSessions: s.gw.Sessions.Count(),
		TotalMigrations:     s.gw.Migrations.History().Total(),
		RecentMigrations:    recent,
		Servers:             s.gw.Registry.Snapshot(),
	}
}

func (s *Server) authorized(key string) bool {
	return s.authKey != "" && key == s.authKey
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).
		Msg("authentication failed")
	writeError(w, http.StatusUnauthorized, "Invalid authentication key")
}

func (s *Server) token(r *http.Request) string {
	ck, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
