package queue

import "errors"

// Sentinel errors for queue operations.
var (
	// ErrInvalidEvent is returned when a command-event payload cannot be
	// decoded or contains no commands.
	ErrInvalidEvent = errors.New("queue: invalid command event")

	// ErrInvalidAlias is returned when an alias ID is empty or would not
	// survive a round trip through a topic segment.
	ErrInvalidAlias = errors.New("queue: invalid alias id")
)
