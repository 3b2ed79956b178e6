// Package proxy forwards plain HTTP traffic to the game-server fleet. A
// browser session sticks to one backend through the gateway_http_session
// cookie; cookie-less requests are spread uniformly at random.
package proxy

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firasghr/GoGameGateway/gateway"
	"github.com/firasghr/GoGameGateway/registry"
	"github.com/firasghr/GoGameGateway/session"
)

// SessionCookie names the stickiness cookie handed to HTTP clients. Its
// value keys the shared session table under the http- namespace.
const SessionCookie = "gateway_http_session"

const upstreamTimeout = 30 * time.Second

// hopHeaders are stripped when forwarding in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler is the reverse proxy in front of the game servers.
type Handler struct {
	gw     *gateway.Gateway
	client *http.Client
	log    zerolog.Logger
}

// NewHandler creates a proxy Handler with a pooled upstream client.
func NewHandler(gw *gateway.Gateway, log zerolog.Logger) *Handler {
	return &Handler{
		gw: gw,
		client: &http.Client{
			Timeout: upstreamTimeout,
			Transport: &http.Transport{
				MaxIdleConns:          500,
				MaxIdleConnsPerHost:   100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			// The browser follows redirects, not the gateway.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log.With().Str("component", "proxy").Logger(),
	}
}

// ServeHTTP resolves the sticky backend for the request and forwards it
// verbatim, streaming the origin response back.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv, ok := h.resolve(w, r)
	if !ok {
		http.Error(w, "No game servers available", http.StatusServiceUnavailable)
		return
	}

	target := fmt.Sprintf("http://%s:%d%s", srv.Host, srv.Port, r.URL.RequestURI())
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		h.gw.Metrics.IncrementProxyErrors()
		http.Error(w, "Failed to fetch resource", http.StatusBadGateway)
		return
	}
	copyHeaders(req.Header, r.Header)

	resp, err := h.client.Do(req)
	if err != nil {
		h.gw.Metrics.IncrementProxyErrors()
		h.log.Warn().Err(err).Str("serverId", srv.ID).Str("path", r.URL.Path).
			Msg("origin fetch failed")
		http.Error(w, "Failed to fetch resource", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.log.Debug().Err(err).Msg("response copy interrupted")
	}
	h.gw.Metrics.IncrementProxied()
}

// resolve maps the request to a backend. An existing cookie whose server
// is still registered wins; any other cookie is discarded and a fresh
// id is minted, exactly as for a cookie-less request. Client-supplied
// values never become session keys, which keeps the http- namespace of
// the shared table intact.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (registry.GameServer, bool) {
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		// Cookie values double as session keys and carry the http-
		// prefix that separates them from game-client ids.
		if s, found := h.gw.Sessions.Lookup(ck.Value); found {
			if srv, exists := h.gw.Registry.Get(s.ServerID); exists {
				return srv, true
			}
			h.gw.Sessions.Delete(ck.Value)
		}
	}

	srv, ok := h.gw.RandomServer()
	if !ok {
		return registry.GameServer{}, false
	}
	value := session.HTTPPrefix + uuid.NewString()
	h.gw.Sessions.Bind(value, srv.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return srv, true
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	for _, k := range hopHeaders {
		dst.Del(k)
	}
}
