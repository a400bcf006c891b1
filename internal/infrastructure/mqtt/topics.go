package mqtt

import "fmt"

// Topic prefixes for the IR hub message bus.
//
// Command events live under irhub/commands/<alias_id> as retained messages
// so that a restarting hub replays unprocessed events from the broker.
const (
	// TopicPrefix is the base for all hub topics.
	TopicPrefix = "irhub"

	// TopicPrefixCommands is the base for the command-event queue.
	TopicPrefixCommands = "irhub/commands"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "irhub/system"
)

// Topics provides builders for the hub's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.CommandEvent("tv-living")
//	// Returns: "irhub/commands/tv-living"
type Topics struct{}

// CommandEvent returns the command-event topic for a single alias.
//
// Example: irhub/commands/tv-living
func (Topics) CommandEvent(aliasID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCommands, aliasID)
}

// AllCommandEvents returns a pattern matching every alias's command events.
//
// Pattern: irhub/commands/+
func (Topics) AllCommandEvents() string {
	return TopicPrefixCommands + "/+"
}

// SystemStatus returns the hub status topic used for the online/offline
// retained message and the Last Will and Testament.
//
// Example: irhub/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: irhub/system/shutdown
func (Topics) SystemShutdown() string {
	return TopicPrefixSystem + "/shutdown"
}

// AliasFromCommandTopic extracts the alias ID from a command-event topic.
// Returns an empty string if the topic is not under the commands prefix
// or has extra levels.
func AliasFromCommandTopic(topic string) string {
	const prefix = TopicPrefixCommands + "/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	alias := topic[len(prefix):]
	for i := 0; i < len(alias); i++ {
		if alias[i] == '/' {
			return ""
		}
	}
	return alias
}
