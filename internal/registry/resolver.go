package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Resolver maps personal device aliases to their canonical device and
// remote records.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the resolver holds no
//     mutable state of its own.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve maps an alias ID to its display name and canonical records.
//
// The alias is looked up in both owner-kind collections. An ID present in
// neither fails with ErrAliasNotFound; present in both fails with
// ErrConsistency, as does an alias missing the device or remote pointer
// entirely. The device and remote records are then fetched concurrently.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - aliasID: The personal device alias ID from the cloud intent
//
// Returns:
//   - *Resolution: Display name plus device and remote records
//   - error: ErrAliasNotFound, ErrConsistency, or a lookup failure
func (r *Resolver) Resolve(ctx context.Context, aliasID string) (*Resolution, error) {
	alias, err := r.findAlias(ctx, aliasID)
	if err != nil {
		return nil, err
	}

	if alias.Device.IsZero() {
		return nil, fmt.Errorf("%w: alias %s has no device id or reference", ErrConsistency, aliasID)
	}
	if alias.Remote.IsZero() {
		return nil, fmt.Errorf("%w: alias %s has no remote id or reference", ErrConsistency, aliasID)
	}

	deviceID, err := alias.Device.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving device reference for alias %s: %w", aliasID, err)
	}
	remoteID, err := alias.Remote.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving remote reference for alias %s: %w", aliasID, err)
	}

	// Fetch device and remote concurrently; both lookups are independent.
	var (
		wg        sync.WaitGroup
		device    *Device
		remote    *Remote
		deviceErr error
		remoteErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		device, deviceErr = r.repo.GetDevice(ctx, deviceID)
	}()
	go func() {
		defer wg.Done()
		remote, remoteErr = r.repo.GetRemote(ctx, remoteID)
	}()
	wg.Wait()

	if deviceErr != nil {
		return nil, fmt.Errorf("fetching device %s for alias %s: %w", deviceID, aliasID, deviceErr)
	}
	if remoteErr != nil {
		return nil, fmt.Errorf("fetching remote %s for alias %s: %w", remoteID, aliasID, remoteErr)
	}

	return &Resolution{
		Name:   alias.Name,
		Device: device,
		Remote: remote,
	}, nil
}

// findAlias looks an alias up in both owner-kind collections and enforces
// the exactly-one-owner invariant.
func (r *Resolver) findAlias(ctx context.Context, aliasID string) (*Alias, error) {
	var (
		wg         sync.WaitGroup
		groupAlias *Alias
		userAlias  *Alias
		groupErr   error
		userErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		groupAlias, groupErr = r.repo.GetAlias(ctx, OwnerGroup, aliasID)
	}()
	go func() {
		defer wg.Done()
		userAlias, userErr = r.repo.GetAlias(ctx, OwnerUser, aliasID)
	}()
	wg.Wait()

	if groupErr != nil && !errors.Is(groupErr, ErrAliasNotFound) {
		return nil, fmt.Errorf("looking up group alias %s: %w", aliasID, groupErr)
	}
	if userErr != nil && !errors.Is(userErr, ErrAliasNotFound) {
		return nil, fmt.Errorf("looking up user alias %s: %w", aliasID, userErr)
	}

	switch {
	case groupAlias != nil && userAlias != nil:
		return nil, fmt.Errorf("%w: alias %s exists in both group and user collections", ErrConsistency, aliasID)
	case groupAlias != nil:
		return groupAlias, nil
	case userAlias != nil:
		return userAlias, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAliasNotFound, aliasID)
	}
}

// ListForOwner returns the devices aliased by one group or user, with the
// canonical record attached to each entry. Aliases whose device record has
// been deleted are skipped rather than failing the whole listing.
func (r *Resolver) ListForOwner(ctx context.Context, kind OwnerKind, ownerID string) ([]OwnedDevice, error) {
	aliases, err := r.repo.ListAliases(ctx, kind, ownerID)
	if err != nil {
		return nil, err
	}

	var devices []OwnedDevice
	for _, alias := range aliases {
		if alias.Device.IsZero() {
			continue
		}
		deviceID, err := alias.Device.Resolve()
		if err != nil {
			continue
		}

		device, err := r.repo.GetDevice(ctx, deviceID)
		if err != nil {
			if errors.Is(err, ErrDeviceNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetching device %s for alias %s: %w", deviceID, alias.ID, err)
		}

		devices = append(devices, OwnedDevice{
			ID:     alias.ID,
			Name:   alias.Name,
			Device: *device,
		})
	}

	return devices, nil
}

// ListForUser returns every device visible to a user: the devices of all
// groups the user belongs to, flattened into one sequence, followed by the
// user's own aliases. Duplicate alias IDs are deduplicated with
// last-seen-wins, so a user-owned alias shadows a group-owned one.
func (r *Resolver) ListForUser(ctx context.Context, userID string) ([]OwnedDevice, error) {
	groups, err := r.repo.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing groups for user %s: %w", userID, err)
	}

	var all []OwnedDevice
	for _, groupID := range groups {
		devices, err := r.ListForOwner(ctx, OwnerGroup, groupID)
		if err != nil {
			return nil, fmt.Errorf("listing devices for group %s: %w", groupID, err)
		}
		all = append(all, devices...)
	}

	own, err := r.ListForOwner(ctx, OwnerUser, userID)
	if err != nil {
		return nil, fmt.Errorf("listing devices for user %s: %w", userID, err)
	}
	all = append(all, own...)

	return dedupByID(all), nil
}

// dedupByID removes duplicate alias IDs, keeping the last occurrence's
// record in the first occurrence's position.
func dedupByID(devices []OwnedDevice) []OwnedDevice {
	if len(devices) < 2 {
		return devices
	}

	index := make(map[string]int, len(devices))
	result := devices[:0]
	for _, d := range devices {
		if i, seen := index[d.ID]; seen {
			result[i] = d
			continue
		}
		index[d.ID] = len(result)
		result = append(result, d)
	}

	return result
}
