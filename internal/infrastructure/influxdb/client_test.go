package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hiroag/irhub-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: false,
		URL:     "http://localhost:8086",
	}

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() with disabled config: got %v, want ErrDisabled", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}

	err := c.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() on disconnected client: got %v, want ErrNotConnected", err)
	}
}

func TestClose_NilClient(t *testing.T) {
	c := &Client{}

	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero-value client: got %v, want nil", err)
	}
}

// Writes on a disconnected client must be silent no-ops so a missing
// metrics backend never breaks command execution.
func TestWrites_DisconnectedNoOp(t *testing.T) {
	c := &Client{}

	c.WriteExecutionMetric("tv-living", "action.devices.commands.OnOff", "acknowledged", 100*time.Millisecond)
	c.WriteDispatchMetric("remote-1", 2, 50*time.Millisecond)
	c.WritePoint("custom", map[string]string{"k": "v"}, map[string]interface{}{"f": 1.0})
	c.Flush()
}

func TestSetOnError(t *testing.T) {
	c := &Client{}

	called := false
	c.SetOnError(func(error) { called = true })

	c.mu.RLock()
	cb := c.onError
	c.mu.RUnlock()

	if cb == nil {
		t.Fatal("expected error callback to be stored")
	}
	cb(errors.New("boom"))
	if !called {
		t.Error("expected callback to be invoked")
	}
}

func TestIsConnected(t *testing.T) {
	c := &Client{}
	if c.IsConnected() {
		t.Error("zero-value client should not report connected")
	}

	c.connected = true
	if !c.IsConnected() {
		t.Error("expected connected client to report connected")
	}
}
