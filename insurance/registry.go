/*
registry.go - Insurance policy store operations

PURPOSE:
  Policy creation, lookup, coverage verification, updates, and the
  deactivate/reactivate lifecycle. Policies are administrative records: every
  mutation, including creation, is admin-only. Record owners have no special
  rights here, unlike the patient and consent stores.

CHECK ORDERING:
  Add checks authorization before existence (the create ordering); all other
  mutations check existence before authorization.

SEE ALSO:
  - generic/registry.go: Shared CRUD and admin plumbing
  - generic/guards.go:   Coverage-window validation
*/
package insurance

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/caremesh/record-engine/generic"
)

// Registry is the insurance policy record store.
type Registry struct {
	core *generic.Registry
}

// NewRegistry creates the policy registry over the given backend with the
// given initial admin.
func NewRegistry(ctx context.Context, store generic.TxRecordStore, clock generic.Clock, admin generic.Identity) (*Registry, error) {
	core, err := generic.NewRegistry(ctx, generic.KindPolicy, store, clock, admin)
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

// Add creates a policy record. Admin-only; the window must satisfy
// start < end. The record and its (patient, policy) index entry commit
// together or not at all.
func (r *Registry) Add(ctx context.Context, caller generic.Identity, id generic.RecordID, patientID generic.SubjectID, provider, policyNumber string, start, end generic.Height, amount decimal.Decimal) error {
	if !r.core.IsAdmin(caller) {
		return &generic.OpError{Kind: generic.KindPolicy, Op: "add", ID: id, Err: generic.ErrUnauthorized}
	}
	p := Policy{
		ID:             id,
		PatientID:      patientID,
		Provider:       provider,
		PolicyNumber:   policyNumber,
		CoverageStart:  start,
		CoverageEnd:    end,
		CoverageAmount: amount,
		Active:         true,
		AddedBy:        caller,
		AddedAt:        r.core.Now(),
	}
	value, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.core.Create(ctx, patientID, id, value, func() error {
		return generic.EnsureWindow(start, end)
	})
}

// Get returns the policy record, or nil for unknown ids. Reads are public.
func (r *Registry) Get(ctx context.Context, id generic.RecordID) (*Policy, error) {
	value, found, err := r.core.Load(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	var p Policy
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// IsPatientPolicy reports whether the policy belongs to the patient, via the
// secondary index. False for unknown pairs; never an error on absence. Index
// entries survive deactivation.
func (r *Registry) IsPatientPolicy(ctx context.Context, patientID generic.SubjectID, id generic.RecordID) (bool, error) {
	return r.core.Owns(ctx, patientID, id)
}

// VerifyCoverage evaluates validity at the current height: active and
// coverage end not passed. False, never an error, for unknown ids.
func (r *Registry) VerifyCoverage(ctx context.Context, id generic.RecordID) (bool, error) {
	p, err := r.Get(ctx, id)
	if err != nil || p == nil {
		return false, err
	}
	return p.Covers(r.core.Now()), nil
}

// Update replaces the policy's mutable fields, re-validating the coverage
// window. Admin-only. Id, patient reference, and provenance stay fixed.
func (r *Registry) Update(ctx context.Context, caller generic.Identity, id generic.RecordID, provider, policyNumber string, start, end generic.Height, amount decimal.Decimal) error {
	return r.mutate(ctx, "update", id, func(p *Policy) error {
		if !r.core.IsAdmin(caller) {
			return &generic.OpError{Kind: generic.KindPolicy, Op: "update", ID: id, Err: generic.ErrUnauthorized}
		}
		if err := generic.EnsureWindow(start, end); err != nil {
			return &generic.OpError{Kind: generic.KindPolicy, Op: "update", ID: id, Err: err}
		}
		p.Provider = provider
		p.PolicyNumber = policyNumber
		p.CoverageStart = start
		p.CoverageEnd = end
		p.CoverageAmount = amount
		return nil
	})
}

// Deactivate flips the active flag off. Admin-only. Idempotent.
func (r *Registry) Deactivate(ctx context.Context, caller generic.Identity, id generic.RecordID) error {
	return r.setActive(ctx, caller, id, "deactivate", false)
}

// Reactivate flips the active flag back on. Admin-only. Idempotent.
func (r *Registry) Reactivate(ctx context.Context, caller generic.Identity, id generic.RecordID) error {
	return r.setActive(ctx, caller, id, "reactivate", true)
}

// List returns all policies, when the backend supports enumeration.
func (r *Registry) List(ctx context.Context) ([]Policy, error) {
	entries, err := r.core.List(ctx)
	if err != nil {
		return nil, err
	}
	policies := make([]Policy, 0, len(entries))
	for _, e := range entries {
		var p Policy
		if err := json.Unmarshal(e.Value, &p); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (r *Registry) setActive(ctx context.Context, caller generic.Identity, id generic.RecordID, op string, active bool) error {
	return r.mutate(ctx, op, id, func(p *Policy) error {
		if !r.core.IsAdmin(caller) {
			return &generic.OpError{Kind: generic.KindPolicy, Op: op, ID: id, Err: generic.ErrUnauthorized}
		}
		p.Active = active
		return nil
	})
}

// mutate runs fn on the decoded snapshot inside the core's transactional
// rewrite, so the checks in fn and the write commit as one unit.
func (r *Registry) mutate(ctx context.Context, op string, id generic.RecordID, fn func(*Policy) error) error {
	return r.core.Mutate(ctx, op, id, func(value []byte) ([]byte, error) {
		var p Policy
		if err := json.Unmarshal(value, &p); err != nil {
			return nil, err
		}
		if err := fn(&p); err != nil {
			return nil, err
		}
		return json.Marshal(p)
	})
}
