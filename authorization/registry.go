/*
registry.go - Treatment authorization store operations

PURPOSE:
  Requesting, lookup, verification, status transitions, and expiry extension
  for treatment authorizations.

AUTHORIZATION:
  - Request:      open; the caller becomes the requester
  - UpdateStatus: admin only
  - Extend:       admin only
  - TransferAdmin: current admin only

CHECK ORDERING:
  UpdateStatus checks existence, then authorization, then the status
  whitelist. The order is part of the wire contract: probing an unknown id
  yields NotFound (102), not Unauthorized (100), and a bad status from a
  non-admin yields 100, not 104.

SEE ALSO:
  - generic/registry.go: Shared CRUD and admin plumbing
  - generic/guards.go:   Expiry and extension validation
*/
package authorization

import (
	"context"
	"encoding/json"

	"github.com/caremesh/record-engine/generic"
)

// Registry is the treatment authorization record store.
type Registry struct {
	core *generic.Registry
}

// NewRegistry creates the authorization registry over the given backend with
// the given initial admin.
func NewRegistry(ctx context.Context, store generic.TxRecordStore, clock generic.Clock, admin generic.Identity) (*Registry, error) {
	core, err := generic.NewRegistry(ctx, generic.KindAuthorization, store, clock, admin)
	if err != nil {
		return nil, err
	}
	return &Registry{core: core}, nil
}

// Admin returns the current admin identity.
func (r *Registry) Admin() generic.Identity { return r.core.Admin() }

// TransferAdmin hands the admin role to newAdmin. Admin-only.
func (r *Registry) TransferAdmin(ctx context.Context, caller, newAdmin generic.Identity) error {
	return r.core.TransferAdmin(ctx, newAdmin, caller)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Request creates an authorization in pending status. Open to any non-empty
// caller; the caller is stamped as requester. The expiry must be strictly
// beyond the current height; on failure nothing is written, not even the
// index entry.
func (r *Registry) Request(ctx context.Context, caller generic.Identity, id generic.RecordID, patientID generic.SubjectID, providerID, treatmentCode, description, policyID string, expiresAt generic.Height) error {
	if caller == generic.Nobody {
		return &generic.OpError{Kind: generic.KindAuthorization, Op: "request", ID: id, Err: generic.ErrUnauthorized}
	}
	now := r.core.Now()
	a := Authorization{
		ID:            id,
		PatientID:     patientID,
		ProviderID:    providerID,
		TreatmentCode: treatmentCode,
		Description:   description,
		PolicyID:      policyID,
		ExpiresAt:     expiresAt,
		Status:        StatusPending,
		RequestedBy:   caller,
		RequestedAt:   now,
	}
	value, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.core.Create(ctx, patientID, id, value, func() error {
		return generic.EnsureFuture(expiresAt, now)
	})
}

// Get returns the authorization record, or nil for unknown ids. Reads are
// public.
func (r *Registry) Get(ctx context.Context, id generic.RecordID) (*Authorization, error) {
	value, found, err := r.core.Load(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	var a Authorization
	if err := json.Unmarshal(value, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// IsPatientAuthorization reports whether the authorization belongs to the
// patient, via the secondary index.
func (r *Registry) IsPatientAuthorization(ctx context.Context, patientID generic.SubjectID, id generic.RecordID) (bool, error) {
	return r.core.Owns(ctx, patientID, id)
}

// UpdateStatus moves the authorization to approved, denied, or completed.
// Admin-only. Any other target, pending included, fails ErrInvalidStatus.
func (r *Registry) UpdateStatus(ctx context.Context, caller generic.Identity, id generic.RecordID, status Status) error {
	return r.mutate(ctx, "update-status", id, func(a *Authorization) error {
		if !r.core.IsAdmin(caller) {
			return &generic.OpError{Kind: generic.KindAuthorization, Op: "update-status", ID: id, Err: generic.ErrUnauthorized}
		}
		if !status.ValidTarget() {
			return &generic.OpError{Kind: generic.KindAuthorization, Op: "update-status", ID: id, Err: generic.ErrInvalidStatus}
		}
		a.Status = status
		return nil
	})
}

// Verify evaluates validity at the current height: approved and not expired.
// False, never an error, for unknown ids.
func (r *Registry) Verify(ctx context.Context, id generic.RecordID) (bool, error) {
	a, err := r.Get(ctx, id)
	if err != nil || a == nil {
		return false, err
	}
	return a.ValidAt(r.core.Now()), nil
}

// Extend moves the expiry strictly forward. Admin-only. Fails ErrExpired if
// the new expiry is at or below the clock or at or below the stored expiry.
func (r *Registry) Extend(ctx context.Context, caller generic.Identity, id generic.RecordID, newExpiry generic.Height) error {
	return r.mutate(ctx, "extend", id, func(a *Authorization) error {
		if !r.core.IsAdmin(caller) {
			return &generic.OpError{Kind: generic.KindAuthorization, Op: "extend", ID: id, Err: generic.ErrUnauthorized}
		}
		if err := generic.EnsureExtends(newExpiry, a.ExpiresAt, r.core.Now()); err != nil {
			return &generic.OpError{Kind: generic.KindAuthorization, Op: "extend", ID: id, Err: err}
		}
		a.ExpiresAt = newExpiry
		return nil
	})
}

// List returns all authorizations, when the backend supports enumeration.
func (r *Registry) List(ctx context.Context) ([]Authorization, error) {
	entries, err := r.core.List(ctx)
	if err != nil {
		return nil, err
	}
	auths := make([]Authorization, 0, len(entries))
	for _, e := range entries {
		var a Authorization
		if err := json.Unmarshal(e.Value, &a); err != nil {
			return nil, err
		}
		auths = append(auths, a)
	}
	return auths, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// mutate runs fn on the decoded snapshot inside the core's transactional
// rewrite, so the checks in fn and the write commit as one unit.
func (r *Registry) mutate(ctx context.Context, op string, id generic.RecordID, fn func(*Authorization) error) error {
	return r.core.Mutate(ctx, op, id, func(value []byte) ([]byte, error) {
		var a Authorization
		if err := json.Unmarshal(value, &a); err != nil {
			return nil, err
		}
		if err := fn(&a); err != nil {
			return nil, err
		}
		return json.Marshal(a)
	})
}
