package config_test

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/firasghr/GoGameGateway/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.Gateway.WSPort <= 0 {
		t.Errorf("WSPort should be > 0, got %d", cfg.Gateway.WSPort)
	}
	if cfg.Gateway.HeartbeatInterval <= 0 {
		t.Errorf("HeartbeatInterval should be > 0, got %v", cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.ServerTimeout <= cfg.Gateway.HeartbeatInterval {
		t.Errorf("ServerTimeout %v should exceed HeartbeatInterval %v",
			cfg.Gateway.ServerTimeout, cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.MaxBufferSize != 1<<30 {
		t.Errorf("got MaxBufferSize=%d, want 1 GiB", cfg.Gateway.MaxBufferSize)
	}
	if cfg.Gateway.LoadBalancing != "round-robin" {
		t.Errorf("got LoadBalancing=%q, want round-robin", cfg.Gateway.LoadBalancing)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	raw := map[string]interface{}{
		"gateway": map[string]interface{}{
			"port":              8080,
			"wsPort":            9090,
			"heartbeatInterval": int64(5 * time.Second),
			"serverTimeout":     int64(15 * time.Second),
			"sessionTimeout":    int64(5 * time.Minute),
			"authKey":           "file-secret",
			"maxBufferSize":     int64(1 << 30),
			"loadBalancing":     "least-connections",
		},
	}
	f, err := os.CreateTemp(t.TempDir(), "config*.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.NewEncoder(f).Encode(raw); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg, err := config.LoadConfig(f.Name())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.WSPort != 9090 {
		t.Errorf("got WSPort=%d, want 9090", cfg.Gateway.WSPort)
	}
	if cfg.Gateway.AuthKey != "file-secret" {
		t.Errorf("got AuthKey=%q, want file-secret", cfg.Gateway.AuthKey)
	}
	if cfg.Gateway.LoadBalancing != "least-connections" {
		t.Errorf("got LoadBalancing=%q, want least-connections", cfg.Gateway.LoadBalancing)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := config.LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bad*.json")
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not valid json}")
	f.Close()

	_, err = config.LoadConfig(f.Name())
	if err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_AUTH_KEY", "env-secret")
	t.Setenv("GATEWAY_PORT", "7777")
	t.Setenv("HEARTBEAT_INTERVAL", "3")
	t.Setenv("SERVER_TIMEOUT", "9")
	t.Setenv("SESSION_TIMEOUT", "120")

	cfg := config.FromEnv()
	if cfg.Gateway.AuthKey != "env-secret" {
		t.Errorf("got AuthKey=%q, want env-secret", cfg.Gateway.AuthKey)
	}
	if cfg.Gateway.WSPort != 7777 {
		t.Errorf("got WSPort=%d, want 7777", cfg.Gateway.WSPort)
	}
	if cfg.Gateway.HeartbeatInterval != 3*time.Second {
		t.Errorf("got HeartbeatInterval=%v, want 3s", cfg.Gateway.HeartbeatInterval)
	}
	if cfg.Gateway.ServerTimeout != 9*time.Second {
		t.Errorf("got ServerTimeout=%v, want 9s", cfg.Gateway.ServerTimeout)
	}
	if cfg.Gateway.SessionTimeout != 120*time.Second {
		t.Errorf("got SessionTimeout=%v, want 2m", cfg.Gateway.SessionTimeout)
	}
}

func TestHTTPPort_PlainChain(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gateway.Port = 8080
	if got := cfg.HTTPPort(); got != 8080 {
		t.Errorf("got port %d, want file value 8080", got)
	}

	t.Setenv("WEBSRV_PORT", "8888")
	if got := cfg.HTTPPort(); got != 8888 {
		t.Errorf("got port %d, want env value 8888", got)
	}

	cfg.Gateway.Port = 0
	t.Setenv("WEBSRV_PORT", "")
	if got := cfg.HTTPPort(); got != 80 {
		t.Errorf("got port %d, want fallback 80", got)
	}
}

func TestHTTPPort_TLSChain(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gateway.TLS.Enabled = true
	if got := cfg.HTTPPort(); got != 443 {
		t.Errorf("got port %d, want TLS fallback 443", got)
	}

	t.Setenv("WEBSRV_PORTSSL", "8443")
	if got := cfg.HTTPPort(); got != 8443 {
		t.Errorf("got port %d, want env value 8443", got)
	}
}

func TestLoadTLS_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	tc, err := cfg.LoadTLS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc != nil {
		t.Error("expected nil tls.Config when TLS is disabled")
	}
}

func TestLoadTLS_BadPair(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gateway.TLS.Enabled = true
	cfg.Gateway.TLS.CertPath = "/nonexistent/cert.pem"
	cfg.Gateway.TLS.KeyPath = "/nonexistent/key.pem"
	if _, err := cfg.LoadTLS(); err == nil {
		t.Error("expected error for unloadable cert pair, got nil")
	}
}
