// Package registry holds the canonical device/remote records and the
// per-user and per-group aliases that point at them.
//
// An alias is the identity the cloud assistant sees: a user says "turn on
// the living room TV" and the intent arrives keyed by the alias ID, not by
// the canonical device. The resolver maps an alias to its device record,
// its remote (IR code table owner) and a display name, enforcing that an
// alias belongs to exactly one owner kind.
//
// Registry tables are provisioned externally and treated as read-only
// here; the repository exposes only lookups and list queries.
package registry
