package registry

import "errors"

// Sentinel errors for registry lookups and alias resolution.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a canonical device does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrRemoteNotFound is returned when a remote does not exist.
	ErrRemoteNotFound = errors.New("registry: remote not found")

	// ErrAliasNotFound is returned when an alias exists in neither the
	// group-owned nor the user-owned collection.
	ErrAliasNotFound = errors.New("registry: alias not found")

	// ErrCodeNotFound is returned when a remote has no IR code stored for
	// a (command, value key) pair.
	ErrCodeNotFound = errors.New("registry: code not found")

	// ErrConsistency is returned when the alias data violates an ownership
	// invariant: the same alias ID present in both owner-kind collections,
	// or an alias missing both the direct ID and the document reference
	// for its device or remote. Callers must fail fast on this error,
	// never silently pick one side.
	ErrConsistency = errors.New("registry: alias consistency violation")

	// ErrInvalidRef is returned when a stored document reference cannot be
	// parsed into a collection and ID.
	ErrInvalidRef = errors.New("registry: invalid document reference")
)
