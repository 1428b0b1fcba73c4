package permission

import (
	"context"
	"fmt"

	"github.com/automated-cuckoo/cuckoo-core/internal/device"
)

// DeviceLookup is the slice of the device registry the resolver needs.
type DeviceLookup interface {
	GetByID(ctx context.Context, id string) (*device.Device, error)
}

// Resolver computes which devices a user is authorised to command, combining
// explicit trustee grants with the device public-use flag.
//
// Granting and revoking mutate the grant relation only; existing schedules
// are untouched unless the revocation cascade policy is enabled.
type Resolver struct {
	grants  *SQLiteRepository
	devices DeviceLookup

	// revokeDisablesSchedules makes Revoke also disable the user's
	// schedules on the device (permissions.revoke_disables_schedules).
	revokeDisablesSchedules bool
}

// NewResolver creates a permission resolver over the given stores.
func NewResolver(grants *SQLiteRepository, devices DeviceLookup, revokeDisablesSchedules bool) *Resolver {
	return &Resolver{
		grants:                  grants,
		devices:                 devices,
		revokeDisablesSchedules: revokeDisablesSchedules,
	}
}

// CanAccess reports whether the user may act on the device: true iff an
// explicit grant exists or the device is flagged public-use.
// Returns device.ErrDeviceNotFound for an unknown device.
func (r *Resolver) CanAccess(ctx context.Context, userID, deviceID string) (bool, error) {
	d, err := r.devices.GetByID(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if d.PublicUse {
		return true, nil
	}
	return r.grants.HasGrant(ctx, userID, deviceID)
}

// AccessibleDevices returns the set of device IDs the user may act on:
// the union of explicit grants and public-use devices, without duplicates.
func (r *Resolver) AccessibleDevices(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.grants.AccessibleDeviceIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving accessible devices: %w", err)
	}
	return ids, nil
}

// Grant records a trustee grant for the pair. Idempotent. The device must
// exist; granting on an unknown device is a caller error worth surfacing.
func (r *Resolver) Grant(ctx context.Context, userID, deviceID string) error {
	if _, err := r.devices.GetByID(ctx, deviceID); err != nil {
		return err
	}
	return r.grants.Grant(ctx, userID, deviceID)
}

// Revoke removes the trustee grant for the pair. Idempotent. When the
// revocation cascade policy is enabled, the user's schedules on the device
// are disabled in the same transaction.
func (r *Resolver) Revoke(ctx context.Context, userID, deviceID string) error {
	if r.revokeDisablesSchedules {
		return r.grants.RevokeAndDisableSchedules(ctx, userID, deviceID)
	}
	return r.grants.Revoke(ctx, userID, deviceID)
}

// ListGrants returns the user's explicit grants with their bookkeeping.
func (r *Resolver) ListGrants(ctx context.Context, userID string) ([]Grant, error) {
	return r.grants.ListByUser(ctx, userID)
}

// RecordUse bumps the grant usage counter after a successful schedule
// creation through the grant.
func (r *Resolver) RecordUse(ctx context.Context, userID, deviceID string) error {
	return r.grants.IncrementUse(ctx, userID, deviceID)
}
