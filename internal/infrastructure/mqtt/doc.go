// Package mqtt wraps paho.mqtt.golang with connection management for the
// IR hub's message bus.
//
// The broker carries the command-event queue: cloud execute intents are
// published as retained messages under irhub/commands/<alias>, and the
// pipeline subscribes with a wildcard to receive both live events and the
// retained backlog left over from a previous run. Clearing an event is a
// retained publish with an empty payload, which deletes the retained
// message on the broker.
//
// The client handles:
//   - Automatic reconnection with exponential backoff
//   - Re-subscription of tracked topics after reconnect
//   - Last Will and Testament on irhub/system/status for crash detection
//   - Panic recovery around message handlers
//
// All methods are safe for concurrent use.
package mqtt
