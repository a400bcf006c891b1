package ir

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hiroag/irhub-core/internal/infrastructure/config"
)

// Gateway wire protocol. Transceiver gateways listen on a UDP port,
// answer discovery probes with their MAC address, and accept raw
// waveform frames for replay.
const (
	packetProbe    = 0x01 // hub -> gateway: who is out there
	packetAnnounce = 0x02 // gateway -> hub: ASCII MAC follows
	packetTransmit = 0x03 // hub -> gateway: waveform bytes follow

	// probeReadTimeout bounds one discovery round. The dispatcher's
	// polling loop provides the longer retry window.
	probeReadTimeout = 500 * time.Millisecond

	// announceBufferSize fits a type byte plus an ASCII MAC address.
	announceBufferSize = 64

	// maxWaveformSize bounds a single transmit frame. Longest known AC
	// unit codes are under 1KB; 4KB leaves generous headroom.
	maxWaveformSize = 4096
)

// UDPDriver discovers transceiver gateways with UDP broadcast probes.
//
// Thread Safety:
//   - Discover opens a fresh socket per call and is safe to invoke
//     concurrently from multiple pipeline runs.
type UDPDriver struct {
	bindAddr      string
	broadcastAddr string
}

// NewUDPDriver creates a driver from the hub's IR configuration.
func NewUDPDriver(cfg config.IRConfig) *UDPDriver {
	return &UDPDriver{
		bindAddr:      net.JoinHostPort(cfg.BindAddress, "0"),
		broadcastAddr: net.JoinHostPort(cfg.BroadcastAddress, fmt.Sprintf("%d", cfg.Port)),
	}
}

// Discover broadcasts one probe and collects announcements until the read
// window closes, returning a handle for the gateway whose MAC matches.
func (d *UDPDriver) Discover(ctx context.Context, macAddr string) (Handle, bool) {
	conn, err := net.ListenPacket("udp4", d.bindAddr)
	if err != nil {
		return nil, false
	}
	defer conn.Close()

	target, err := net.ResolveUDPAddr("udp4", d.broadcastAddr)
	if err != nil {
		return nil, false
	}

	if _, err := conn.WriteTo([]byte{packetProbe}, target); err != nil {
		return nil, false
	}

	deadline := time.Now().Add(probeReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, false
	}

	buf := make([]byte, announceBufferSize)
	for {
		if ctx.Err() != nil {
			return nil, false
		}

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			// Read deadline expired with no matching announcement.
			return nil, false
		}
		if n < 2 || buf[0] != packetAnnounce {
			continue
		}

		announced := strings.TrimSpace(string(buf[1:n]))
		if !strings.EqualFold(announced, macAddr) {
			continue
		}

		return &udpHandle{gatewayAddr: from.String()}, true
	}
}

// udpHandle transmits waveforms to one discovered gateway.
type udpHandle struct {
	gatewayAddr string
}

// Transmit sends a single waveform frame to the gateway.
func (h *udpHandle) Transmit(ctx context.Context, waveform []byte) error {
	if len(waveform) == 0 {
		return nil
	}
	if len(waveform) > maxWaveformSize {
		return fmt.Errorf("%w: waveform of %d bytes exceeds %d-byte frame limit",
			ErrTransmitFailed, len(waveform), maxWaveformSize)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp4", h.gatewayAddr)
	if err != nil {
		return fmt.Errorf("%w: dialing gateway %s: %w", ErrConnectionFailed, h.gatewayAddr, err)
	}
	defer conn.Close()

	frame := make([]byte, 0, len(waveform)+1)
	frame = append(frame, packetTransmit)
	frame = append(frame, waveform...)

	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: sending to gateway %s: %w", ErrTransmitFailed, h.gatewayAddr, err)
	}

	return nil
}
