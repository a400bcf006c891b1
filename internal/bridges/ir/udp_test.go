package ir

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hiroag/irhub-core/internal/infrastructure/config"
)

// startFakeGateway runs a UDP gateway that answers probes with the given
// MAC and records transmit frames on the returned channel.
func startFakeGateway(t *testing.T, mac string) (port int, frames <-chan []byte) {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting fake gateway: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	ch := make(chan []byte, 8)
	go func() {
		buf := make([]byte, maxWaveformSize+1)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			switch buf[0] {
			case packetProbe:
				reply := append([]byte{packetAnnounce}, []byte(mac)...)
				conn.WriteTo(reply, from)
			case packetTransmit:
				frame := make([]byte, n-1)
				copy(frame, buf[1:n])
				ch <- frame
			}
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr).Port, ch
}

func testDriver(port int) *UDPDriver {
	return NewUDPDriver(config.IRConfig{
		BindAddress:      "127.0.0.1",
		BroadcastAddress: "127.0.0.1",
		Port:             port,
	})
}

func TestUDPDriver_DiscoverAndTransmit(t *testing.T) {
	port, frames := startFakeGateway(t, "aa:bb:cc:dd:ee:ff")
	driver := testDriver(port)

	handle, ok := driver.Discover(context.Background(), "aa:bb:cc:dd:ee:ff")
	if !ok {
		t.Fatal("Discover() did not find the gateway")
	}

	waveform := []byte{0x26, 0x00, 0x4c}
	if err := handle.Transmit(context.Background(), waveform); err != nil {
		t.Fatalf("Transmit() error: %v", err)
	}

	select {
	case frame := <-frames:
		if string(frame) != string(waveform) {
			t.Errorf("gateway received %x, want %x", frame, waveform)
		}
	case <-time.After(time.Second):
		t.Fatal("gateway did not receive the waveform")
	}
}

func TestUDPDriver_DiscoverMatchesCaseInsensitive(t *testing.T) {
	port, _ := startFakeGateway(t, "AA:BB:CC:DD:EE:FF")
	driver := testDriver(port)

	if _, ok := driver.Discover(context.Background(), "aa:bb:cc:dd:ee:ff"); !ok {
		t.Error("Discover() should match MAC addresses case-insensitively")
	}
}

func TestUDPDriver_DiscoverWrongMAC(t *testing.T) {
	port, _ := startFakeGateway(t, "aa:bb:cc:dd:ee:ff")
	driver := testDriver(port)

	if _, ok := driver.Discover(context.Background(), "11:22:33:44:55:66"); ok {
		t.Error("Discover() matched a gateway with a different MAC")
	}
}

// The driver must work when built straight from the default IR config:
// the default bind address has to open a socket.
func TestUDPDriver_DefaultBindAddress(t *testing.T) {
	port, _ := startFakeGateway(t, "aa:bb:cc:dd:ee:ff")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
oauth:
  client:
    id: "assistant-client"
    secret: "client-secret"
  identity_secret: "identity-secret-at-least-32-chars!!"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	irCfg := cfg.IR
	irCfg.BroadcastAddress = "127.0.0.1"
	irCfg.Port = port

	driver := NewUDPDriver(irCfg)
	if _, ok := driver.Discover(context.Background(), "aa:bb:cc:dd:ee:ff"); !ok {
		t.Fatal("Discover() failed with the default bind address")
	}
}

func TestUDPHandle_RejectsOversizedWaveform(t *testing.T) {
	h := &udpHandle{gatewayAddr: "127.0.0.1:1"}

	err := h.Transmit(context.Background(), make([]byte, maxWaveformSize+1))
	if err == nil {
		t.Error("Transmit() accepted an oversized waveform")
	}
}
