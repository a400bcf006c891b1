package ir

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
)

// Logger interface for optional logging.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Dispatcher turns a batch of hex-encoded waveforms into transmissions
// against one physical transceiver.
//
// Thread Safety:
//   - Dispatch is safe to call concurrently; each call runs its own
//     discovery loop and holds no shared state.
type Dispatcher struct {
	driver           Driver
	pollInterval     time.Duration
	discoveryTimeout time.Duration
	logger           Logger
}

// NewDispatcher creates a dispatcher polling at pollInterval for at most
// discoveryTimeout before giving up on an absent transceiver.
func NewDispatcher(driver Driver, pollInterval, discoveryTimeout time.Duration, logger Logger) *Dispatcher {
	return &Dispatcher{
		driver:           driver,
		pollInterval:     pollInterval,
		discoveryTimeout: discoveryTimeout,
		logger:           logger,
	}
}

// Dispatch discovers the transceiver at macAddr and transmits every
// non-empty waveform in list order.
//
// Empty waveform entries are skipped; they mean the remote has no code
// stored for that command and skipping keeps the rest of the batch alive.
// Waveforms are decoded from hex before transmission; a malformed entry
// fails the whole batch since it indicates a corrupt code table.
//
// Parameters:
//   - ctx: Context for cancellation; also bounds the discovery window
//   - macAddr: MAC address of the target transceiver
//   - waveforms: Hex-encoded IR codes, in execution order
//
// Returns:
//   - error: ErrDiscoveryTimeout, ErrInvalidWaveform, a transmit error,
//     or ctx.Err() on cancellation
func (d *Dispatcher) Dispatch(ctx context.Context, macAddr string, waveforms []string) error {
	decoded, err := decodeWaveforms(waveforms)
	if err != nil {
		return err
	}
	if len(decoded) == 0 {
		return nil
	}

	handle, err := d.awaitHandle(ctx, macAddr)
	if err != nil {
		return err
	}

	for i, waveform := range decoded {
		if err := handle.Transmit(ctx, waveform); err != nil {
			return fmt.Errorf("transmitting waveform %d of %d to %s: %w", i+1, len(decoded), macAddr, err)
		}
	}

	if d.logger != nil {
		d.logger.Debug("IR batch dispatched", "mac_addr", macAddr, "waveforms", len(decoded))
	}

	return nil
}

// awaitHandle polls the driver until the transceiver answers, the
// discovery window closes, or the context is cancelled.
func (d *Dispatcher) awaitHandle(ctx context.Context, macAddr string) (Handle, error) {
	discoverCtx, cancel := context.WithTimeout(ctx, d.discoveryTimeout)
	defer cancel()

	if handle, ok := d.driver.Discover(discoverCtx, macAddr); ok {
		return handle, nil
	}

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-discoverCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if d.logger != nil {
				d.logger.Warn("transceiver discovery timed out",
					"mac_addr", macAddr,
					"timeout", d.discoveryTimeout,
				)
			}
			return nil, fmt.Errorf("%w: %s after %v", ErrDiscoveryTimeout, macAddr, d.discoveryTimeout)
		case <-ticker.C:
			if handle, ok := d.driver.Discover(discoverCtx, macAddr); ok {
				return handle, nil
			}
		}
	}
}

// decodeWaveforms hex-decodes the batch, dropping empty entries.
func decodeWaveforms(waveforms []string) ([][]byte, error) {
	decoded := make([][]byte, 0, len(waveforms))
	for i, w := range waveforms {
		if w == "" {
			continue
		}
		b, err := hex.DecodeString(w)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidWaveform, i, err)
		}
		decoded = append(decoded, b)
	}
	return decoded, nil
}
