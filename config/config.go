// Package config provides configuration management for GoGameGateway.
// It supports JSON-based configuration loading with safe defaults and the
// environment-variable override chain used by the deployment scripts.
package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// TLSConfig controls optional TLS termination on both listeners.
type TLSConfig struct {
	// Enabled turns TLS on for the HTTP and WebSocket listeners. Even when
	// enabled, the gateway falls back to plain listeners (with a warning)
	// if the cert/key pair cannot be loaded.
	Enabled bool `json:"enabled"`

	// CertPath and KeyPath locate the PEM-encoded certificate and key.
	CertPath string `json:"certPath"`
	KeyPath  string `json:"keyPath"`
}

// GatewayConfig holds the tunables for the gateway core.
//
// Durations are encoded in the JSON file as integer nanoseconds (Go's
// time.Duration encoding); the corresponding environment overrides are
// plain integer seconds, which is what the fleet tooling exports.
type GatewayConfig struct {
	// Port is the HTTP listener port from the config file. The effective
	// port additionally honours the WEBSRV_* environment chain; see
	// Config.HTTPPort.
	Port int `json:"port"`

	// WSPort is the control-plane WebSocket listener port.
	WSPort int `json:"wsPort"`

	// HeartbeatInterval is how often the reaper sweeps for dead servers.
	HeartbeatInterval time.Duration `json:"heartbeatInterval"`

	// ServerTimeout is the maximum heartbeat silence before a server is
	// considered dead and its sessions are migrated.
	ServerTimeout time.Duration `json:"serverTimeout"`

	// SessionTimeout is the maximum idleness before a client session is
	// expired by the reaper.
	SessionTimeout time.Duration `json:"sessionTimeout"`

	// AuthKey is the shared secret for server-plane and operator
	// authentication. GATEWAY_AUTH_KEY overrides the file value.
	AuthKey string `json:"authKey"`

	// MaxBufferSize is the per-connection outbound byte ceiling above
	// which control-plane sends are deferred (backpressure).
	MaxBufferSize int64 `json:"maxBufferSize"`

	// LoadBalancing selects the assignment policy: "round-robin"
	// (shipped default) or "least-connections".
	LoadBalancing string `json:"loadBalancing"`

	TLS TLSConfig `json:"tls"`
}

// Config is the root of the gateway configuration file (config.json).
// It is loaded once at startup and then shared across goroutines as a
// read-only value, making it inherently thread-safe after initialization.
type Config struct {
	Gateway GatewayConfig `json:"gateway"`
}

// DefaultConfig returns a *Config pre-filled with production defaults.
// Each call returns a fresh independent copy; callers are free to mutate
// the result before handing it to other components.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:              80,
			WSPort:            8081,
			HeartbeatInterval: 10 * time.Second,
			ServerTimeout:     30 * time.Second,
			SessionTimeout:    10 * time.Minute,
			AuthKey:           "",
			MaxBufferSize:     1 << 30, // 1 GiB
			LoadBalancing:     "round-robin",
		},
	}
}

// LoadConfig reads a JSON file at filename, deserialises it into a Config,
// and applies the environment override chain. It returns an error if the
// file cannot be opened or if the JSON is malformed.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 – filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields() // catch typos in config files early
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// FromEnv returns the default configuration with environment overrides
// applied. Used when no config file is supplied.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// applyEnv overlays the environment variables exported by the deployment
// scripts onto the file values. Duration overrides are integer seconds.
func (c *Config) applyEnv() {
	if v := os.Getenv("GATEWAY_AUTH_KEY"); v != "" {
		c.Gateway.AuthKey = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Gateway.WSPort = n
		}
	}
	if d, ok := envSeconds("HEARTBEAT_INTERVAL"); ok {
		c.Gateway.HeartbeatInterval = d
	}
	if d, ok := envSeconds("SERVER_TIMEOUT"); ok {
		c.Gateway.ServerTimeout = d
	}
	if d, ok := envSeconds("SESSION_TIMEOUT"); ok {
		c.Gateway.SessionTimeout = d
	}
	if v := os.Getenv("WEBSRV_USESSL"); v != "" {
		c.Gateway.TLS.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("WEBSRV_CERT_PATH"); v != "" {
		c.Gateway.TLS.CertPath = v
	}
	if v := os.Getenv("WEBSRV_KEY_PATH"); v != "" {
		c.Gateway.TLS.KeyPath = v
	}
}

func envSeconds(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// HTTPPort resolves the effective HTTP listener port. With TLS enabled the
// chain is WEBSRV_PORTSSL then 443; otherwise WEBSRV_PORT, then the config
// file's gateway.port, then 80.
func (c *Config) HTTPPort() int {
	if c.Gateway.TLS.Enabled {
		if n, ok := envPort("WEBSRV_PORTSSL"); ok {
			return n
		}
		return 443
	}
	if n, ok := envPort("WEBSRV_PORT"); ok {
		return n
	}
	if c.Gateway.Port > 0 {
		return c.Gateway.Port
	}
	return 80
}

func envPort(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 65535 {
		return 0, false
	}
	return n, true
}

// LoadTLS attempts to load the configured certificate pair. It returns a
// nil *tls.Config (and nil error) when TLS is disabled, and an error when
// TLS is enabled but the pair cannot be loaded, in which case the caller
// should fall back to plain listeners with a warning.
func (c *Config) LoadTLS() (*tls.Config, error) {
	if !c.Gateway.TLS.Enabled {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.Gateway.TLS.CertPath, c.Gateway.TLS.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("config: load TLS pair (%q, %q): %w",
			c.Gateway.TLS.CertPath, c.Gateway.TLS.KeyPath, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
