// Package control serves the client-facing control-plane WebSocket
// endpoint. A connecting game client is told which game server to talk
// to; the connection then stays open for further control frames, with a
// bounded outbound queue guarding against slow consumers.
package control

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/gateway"
	"github.com/firasghr/GoGameGateway/registry"
)

// assignedServer is the connection target handed to a client.
type assignedServer struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	WSPort int    `json:"wsPort"`
}

type assignmentFrame struct {
	Type     string         `json:"type"`
	ClientID string         `json:"clientId"`
	Server   assignedServer `json:"server"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Server upgrades control-plane connections and hands out server
// assignments through the gateway coordinator.
type Server struct {
	gw        *gateway.Gateway
	upgrader  websocket.Upgrader
	maxBuffer int64
	clock     clockwork.Clock
	log       zerolog.Logger
}

// NewServer creates a control Server. maxBuffer bounds each connection's
// outbound queue in bytes.
func NewServer(gw *gateway.Gateway, maxBuffer int64, clock clockwork.Clock,
	log zerolog.Logger) *Server {
	return &Server{
		gw: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Game clients connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxBuffer: maxBuffer,
		clock:     clock,
		log:       log.With().Str("component", "control").Logger(),
	}
}

// ServeHTTP upgrades the request and runs the connection to completion.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = "client-" + uuid.NewString()
	}
	log := s.log.With().Str("clientId", clientID).Logger()

	conn := NewConn(ws, s.maxBuffer, s.clock, s.gw.Metrics, log)
	defer conn.Close()

	srv, ok := s.gw.ServerForClient(clientID)
	if !ok {
		s.sendJSON(conn, errorFrame{Type: "error", Message: "No available servers"})
		// Give the frame a moment to flush before the close.
		s.clock.Sleep(100 * time.Millisecond)
		log.Warn().Msg("no servers available for client")
		return
	}
	s.sendJSON(conn, assignment(clientID, srv))
	log.Info().Str("serverId", srv.ID).Msg("assignment sent")

	// Clients are not expected to send anything on the control plane;
	// the read loop exists to observe the close.
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("control connection closed")
			return
		}
		log.Warn().Int("bytes", len(msg)).Msg("unexpected inbound control frame")
	}
}

func assignment(clientID string, srv registry.GameServer) assignmentFrame {
	return assignmentFrame{
		Type:     "server_assignment",
		ClientID: clientID,
		Server: assignedServer{
			Host:   srv.PublicHost,
			Port:   srv.Port,
			WSPort: srv.WSPort,
		},
	}
}

func (s *Server) sendJSON(conn *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("control frame marshal failed")
		return
	}
	conn.Send(b)
}
