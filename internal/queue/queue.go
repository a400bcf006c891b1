package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hiroag/irhub-core/internal/infrastructure/mqtt"
)

// Command is one abstract cloud command within an event batch.
type Command struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// EventHandler is invoked once per command event.
//
// Handlers run on the MQTT client's delivery goroutines and should hand
// work off quickly rather than block.
type EventHandler func(aliasID string, commands []Command)

// Bus is the subset of the MQTT client the queue needs.
// Satisfied by *mqtt.Client; faked in tests.
type Bus interface {
	PublishRetained(topic string, payload []byte) error
	ClearRetained(topic string) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Queue publishes and consumes command events for the pipeline.
type Queue struct {
	bus    Bus
	topics mqtt.Topics
	qos    byte
}

// New creates a queue on the given bus. QoS applies to the wildcard
// subscription; publishes use the bus's configured default.
func New(bus Bus, qos byte) *Queue {
	return &Queue{bus: bus, qos: qos}
}

// Set stores the command batch for an alias as the pending event,
// replacing any unprocessed event for the same alias.
//
// Parameters:
//   - aliasID: The personal device alias the commands target
//   - commands: Ordered command batch, executed in list order
//
// Returns:
//   - error: ErrInvalidAlias, ErrInvalidEvent, or a publish failure
func (q *Queue) Set(aliasID string, commands []Command) error {
	if err := validateAlias(aliasID); err != nil {
		return err
	}
	if len(commands) == 0 {
		return fmt.Errorf("%w: empty command batch", ErrInvalidEvent)
	}

	payload, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("marshalling command event: %w", err)
	}

	if err := q.bus.PublishRetained(q.topics.CommandEvent(aliasID), payload); err != nil {
		return fmt.Errorf("publishing command event for alias %s: %w", aliasID, err)
	}

	return nil
}

// Acknowledge clears the pending event for an alias by deleting the
// retained message. Safe to call for an already-cleared alias.
func (q *Queue) Acknowledge(aliasID string) error {
	if err := validateAlias(aliasID); err != nil {
		return err
	}

	if err := q.bus.ClearRetained(q.topics.CommandEvent(aliasID)); err != nil {
		return fmt.Errorf("acknowledging command event for alias %s: %w", aliasID, err)
	}

	return nil
}

// Listen subscribes to all command events and invokes the handler once per
// arriving event. Empty payloads (retained-message deletions echoed back by
// the broker) and undecodable payloads are skipped; a bad event must never
// stop the feed.
func (q *Queue) Listen(handler EventHandler) error {
	return q.bus.Subscribe(q.topics.AllCommandEvents(), q.qos, func(topic string, payload []byte) error {
		if len(payload) == 0 {
			return nil
		}

		aliasID := mqtt.AliasFromCommandTopic(topic)
		if aliasID == "" {
			return fmt.Errorf("%w: unexpected topic %s", ErrInvalidEvent, topic)
		}

		var commands []Command
		if err := json.Unmarshal(payload, &commands); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		if len(commands) == 0 {
			return nil
		}

		handler(aliasID, commands)
		return nil
	})
}

// validateAlias rejects alias IDs that would break topic addressing.
func validateAlias(aliasID string) error {
	if aliasID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAlias)
	}
	if strings.ContainsAny(aliasID, "/+#") {
		return fmt.Errorf("%w: %q contains topic metacharacters", ErrInvalidAlias, aliasID)
	}
	return nil
}
