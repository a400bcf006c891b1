// Package ir talks to the physical IR transceivers.
//
// A Driver locates the transceiver for a MAC address on the local network;
// the Dispatcher wraps that discovery in a bounded polling loop and then
// replays hex-encoded waveforms through the obtained handle.
//
// Transceivers are unreliable at process start and after a hardware reset,
// so a single discovery probe is not enough: the dispatcher polls at a
// fixed interval until a handle appears or the configured timeout expires.
// Transmission itself is fire-and-forget; IR is replay-tolerant and the
// hardware offers no acknowledgment beyond the send completing.
package ir
