package ir

import "errors"

// Sentinel errors for dispatch operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDiscoveryTimeout is returned when no transceiver with the target
	// MAC address appears within the configured discovery window.
	ErrDiscoveryTimeout = errors.New("ir: transceiver discovery timed out")

	// ErrInvalidWaveform is returned when a stored code is not valid hex.
	ErrInvalidWaveform = errors.New("ir: invalid waveform encoding")

	// ErrTransmitFailed is returned when sending a waveform to the
	// transceiver fails.
	ErrTransmitFailed = errors.New("ir: transmit failed")

	// ErrConnectionFailed is returned when the driver cannot open its
	// network socket.
	ErrConnectionFailed = errors.New("ir: connection failed")
)
