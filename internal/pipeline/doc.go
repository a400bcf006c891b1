// Package pipeline executes command events end to end.
//
// One run per event: resolve the alias to its device and remote, translate
// each abstract command into a code-table lookup key against a single state
// snapshot, dispatch the resolved waveforms to the transceiver, merge the
// command parameters into the alias's state, and finally acknowledge the
// event. Acknowledgment is unconditional: a failed run is logged and
// cleared rather than retried, so a poison event can never wedge the queue.
//
// Events for different aliases run concurrently on a bounded worker pool.
// Events for the same alias are serialized with a per-alias lock so
// overlapping runs cannot interleave their state merges.
package pipeline
