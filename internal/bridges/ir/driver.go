package ir

import "context"

// Handle is a live connection to one discovered transceiver.
type Handle interface {
	// Transmit sends one decoded binary waveform. Fire-and-forget: a nil
	// return means the send completed, not that the appliance reacted.
	Transmit(ctx context.Context, waveform []byte) error
}

// Driver locates transceivers on the local network.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Discover probes for the transceiver with the given MAC address.
	// Returns (handle, true) when it responds, (nil, false) when absent.
	// Absence is not an error; callers poll.
	Discover(ctx context.Context, macAddr string) (Handle, bool)
}
