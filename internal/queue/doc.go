// Package queue implements the durable command-event queue on top of MQTT
// retained messages.
//
// An EXECUTE intent publishes the alias's command batch as retained JSON on
// irhub/commands/<alias>. The pipeline subscribes with a wildcard: live
// events arrive as they are published, and events queued while the hub was
// down are replayed by the broker from the retained set on subscribe.
//
// Acknowledgment is a retained publish with an empty payload, which deletes
// the broker's stored message. There is no separate ack channel; an empty
// or absent retained message IS the acknowledged state, so the queue can
// never accumulate processed entries.
package queue
