package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validTestConfig renders a config file that passes validation. The MQTT
// broker port is unroutable so startup fails fast without a live broker.
func validTestConfig(dbPath string) string {
	return `
agent:
  id: test-agent

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: 18080
  timeouts:
    read: 30
    write: 60
    idle: 120

oauth:
  client:
    id: assistant
    secret: test-secret
    redirect_uris:
      - https://oauth.example.com/callback
    grants:
      - authorization_code
      - refresh_token
  identity_secret: "0123456789abcdef0123456789abcdef"
  auth_code_ttl: 600
  access_token_ttl: 3600
  refresh_token_ttl: 315360000

ir:
  bind_address: "0.0.0.0"
  broadcast_address: "255.255.255.255"
  port: 10000
  poll_interval: 1s
  discovery_timeout: 5s

pipeline:
  workers: 2
  run_timeout: 10s
`
}

func withConfigEnv(t *testing.T, path string) {
	t.Helper()

	originalEnv := os.Getenv("IRHUB_CONFIG")
	t.Cleanup(func() { os.Setenv("IRHUB_CONFIG", originalEnv) })
	os.Setenv("IRHUB_CONFIG", path)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	withConfigEnv(t, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	if err := os.WriteFile(configPath, []byte(validTestConfig("")), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	withConfigEnv(t, configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("IRHUB_CONFIG")
	defer os.Setenv("IRHUB_CONFIG", originalEnv)

	os.Unsetenv("IRHUB_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	withConfigEnv(t, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_NoBroker verifies startup fails cleanly when the MQTT broker is
// unreachable, with migrations already applied.
func TestRun_NoBroker(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	if err := os.WriteFile(configPath, []byte(validTestConfig(dbPath)), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	withConfigEnv(t, configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Log("run() completed without error (broker unexpectedly reachable)")
	} else {
		t.Logf("run() returned error (expected without broker): %v", err)
	}

	// The database should exist regardless: it is opened and migrated
	// before the broker connection is attempted.
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("database file missing after run: %v", statErr)
	}
}
