package homegraph

import "errors"

// Sentinel errors for HomeGraph operations.
var (
	// ErrDisabled indicates HomeGraph calls are turned off in configuration.
	ErrDisabled = errors.New("homegraph disabled")

	// ErrRequestFailed indicates the HomeGraph API rejected or dropped a call.
	ErrRequestFailed = errors.New("homegraph request failed")
)
