/*
registry.go - Consent store operations

PURPOSE:
  Granting, lookup, verification, revocation, and expiry extension for
  data-sharing consents.

AUTHORIZATION:
  - Grant:  open; the caller becomes the granter
  - Revoke: admin OR granter
  - Extend: granter only; the admin cannot extend someone else's consent
  - TransferAdmin: current admin only

REVOCATION:
  Revoke sets a one-way flag. Extending a revoked consent fails with
  ErrRevoked (code 104) before any temporal check runs.

SEE ALSO:
  - generic/registry.go: Shared CRUD and admin plumbing
  - generic/guards.go:   Expiry and extension validation
*/
package consent

import (
	"context"
	"encoding/json"

	"github.com/caremesh/record-engine/generic"
)

// Registry is the consent record store.
type Registry struct {
	core *generic.Registry
}

// NewRegistry creates the consent registry over the given backend with the
// given initial admin.
func NewRegistry(ctx context.Context, store generic.TxRecordStore, clock generic.Clock, admin generic.Identity) (*Registry, error) {
	core, err := generic.NewRegistry(ctx, generic.KindConsent, store, clock, admin)
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

// Grant creates a consent record. Open to any non-empty caller; the caller
// is stamped as granter. The expiry must be strictly beyond the current
// height, checked before anything is written.
func (r *Registry) Grant(ctx context.Context, caller generic.Identity, id generic.RecordID, patientID generic.SubjectID, providerID, purpose string, expiresAt generic.Height) error {
	if caller == generic.Nobody {
		return &generic.OpError{Kind: generic.KindConsent, Op: "grant", ID: id, Err: generic.ErrUnauthorized}
	}
	now := r.core.Now()
	c := Consent{
		ID:         id,
		PatientID:  patientID,
		ProviderID: providerID,
		Purpose:    purpose,
		ExpiresAt:  expiresAt,
		Revoked:    false,
		GrantedBy:  caller,
		GrantedAt:  now,
	}
	value, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.core.Create(ctx, patientID, id, value, func() error {
		return generic.EnsureFuture(expiresAt, now)
	})
}

// Get returns the consent record, or nil for unknown ids. Reads are public.
func (r *Registry) Get(ctx context.Context, id generic.RecordID) (*Consent, error) {
	value, found, err := r.core.Load(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	var c Consent
	if err := json.Unmarshal(value, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// IsPatientConsent reports whether the consent belongs to the patient, via
// the secondary index. Entries survive revocation.
func (r *Registry) IsPatientConsent(ctx context.Context, patientID generic.SubjectID, id generic.RecordID) (bool, error) {
	return r.core.Owns(ctx, patientID, id)
}

// Verify evaluates validity at the current height: not revoked and not
// expired. False, never an error, for unknown ids.
func (r *Registry) Verify(ctx context.Context, id generic.RecordID) (bool, error) {
	c, err := r.Get(ctx, id)
	if err != nil || c == nil {
		return false, err
	}
	return c.ValidAt(r.core.Now()), nil
}

// Revoke sets the revoked flag. Admin or granter only. There is no
// un-revoke.
func (r *Registry) Revoke(ctx context.Context, caller generic.Identity, id generic.RecordID) error {
	return r.mutate(ctx, "revoke", id, func(c *Consent) error {
		if !r.core.IsAdmin(caller) && (caller == generic.Nobody || caller != c.GrantedBy) {
			return &generic.OpError{Kind: generic.KindConsent, Op: "revoke", ID: id, Err: generic.ErrUnauthorized}
		}
		c.Revoked = true
		return nil
	})
}

// Extend moves the expiry strictly forward. Granter only. Fails ErrRevoked
// for revoked consents, then ErrExpired if the new expiry is at or below the
// clock or at or below the stored expiry.
func (r *Registry) Extend(ctx context.Context, caller generic.Identity, id generic.RecordID, newExpiry generic.Height) error {
	return r.mutate(ctx, "extend", id, func(c *Consent) error {
		if caller == generic.Nobody || caller != c.GrantedBy {
			return &generic.OpError{Kind: generic.KindConsent, Op: "extend", ID: id, Err: generic.ErrUnauthorized}
		}
		if c.Revoked {
			return &generic.OpError{Kind: generic.KindConsent, Op: "extend", ID: id, Err: generic.ErrRevoked}
		}
		if err := generic.EnsureExtends(newExpiry, c.ExpiresAt, r.core.Now()); err != nil {
			return &generic.OpError{Kind: generic.KindConsent, Op: "extend", ID: id, Err: err}
		}
		c.ExpiresAt = newExpiry
		return nil
	})
}

// List returns all consents, when the backend supports enumeration.
func (r *Registry) List(ctx context.Context) ([]Consent, error) {
	entries, err := r.core.List(ctx)
	if err != nil {
		return nil, err
	}
	consents := make([]Consent, 0, len(entries))
	for _, e := range entries {
		var c Consent
		if err := json.Unmarshal(e.Value, &c); err != nil {
			return nil, err
		}
		consents = append(consents, c)
	}
	return consents, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// mutate runs fn on the decoded snapshot inside the core's transactional
// rewrite, so the checks in fn and the write commit as one unit.
func (r *Registry) mutate(ctx context.Context, op string, id generic.RecordID, fn func(*Consent) error) error {
	return r.core.Mutate(ctx, op, id, func(value []byte) ([]byte, error) {
		var c Consent
		if err := json.Unmarshal(value, &c); err != nil {
			return nil, err
		}
		if err := fn(&c); err != nil {
			return nil, err
		}
		return json.Marshal(c)
	})
}
