/*
registry.go - Patient registry operations

PURPOSE:
  Registration, lookup, demographic updates, and the deactivate/reactivate
  lifecycle for patient records.

AUTHORIZATION:
  - Register:   open; the caller becomes the record's owner
  - Update:     admin OR owner
  - Deactivate/Reactivate: admin OR owner
  - TransferAdmin: current admin only

CHECK ORDERING:
  Mutations check existence before authorization, so unknown ids always fail
  NotFound (102) rather than Unauthorized (100).

SEE ALSO:
  - generic/registry.go: Shared CRUD and admin plumbing
*/
package patient

import (
	"context"
	"encoding/json"

	"github.com/caremesh/record-engine/generic"
)

// Registry is the patient record store.
type Registry struct {
	core *generic.Registry
}

// NewRegistry creates the patient registry over the given backend with the
// given initial admin.
func NewRegistry(ctx context.Context, store generic.TxRecordStore, clock generic.Clock, admin generic.Identity) (*Registry, error) {
	core, err := generic.NewRegistry(ctx, generic.KindPatient, store, clock, admin)
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

// Register creates a patient record. Open to any non-empty caller; the
// caller is stamped as owner. Fails with AlreadyExists if the id is taken.
func (r *Registry) Register(ctx context.Context, caller generic.Identity, id generic.RecordID, name, dob string) error {
	if caller == generic.Nobody {
		return &generic.OpError{Kind: generic.KindPatient, Op: "register", ID: id, Err: generic.ErrUnauthorized}
	}
	p := Patient{
		ID:           id,
		Name:         name,
		DOB:          dob,
		Active:       true,
		RegisteredBy: caller,
		RegisteredAt: r.core.Now(),
	}
	value, err := json.Marshal(p)
	if err != nil {
		return err
	}
	// Patients are their own index subject; the pattern's one-entry-per-record
	// invariant holds even though no ownership query exists for this store.
	return r.core.Create(ctx, generic.SubjectID(id), id, value, nil)
}

// Get returns the patient record, or nil for unknown ids. Reads are public.
func (r *Registry) Get(ctx context.Context, id generic.RecordID) (*Patient, error) {
	value, found, err := r.core.Load(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	var p Patient
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update replaces the patient's demographic fields. Admin or owner only.
func (r *Registry) Update(ctx context.Context, caller generic.Identity, id generic.RecordID, name, dob string) error {
	return r.mutate(ctx, "update", id, func(p *Patient) error {
		if err := r.authorizeOwner(caller, p, "update", id); err != nil {
			return err
		}
		p.Name = name
		p.DOB = dob
		return nil
	})
}

// Deactivate flips the active flag off. Admin or owner only. Idempotent.
func (r *Registry) Deactivate(ctx context.Context, caller generic.Identity, id generic.RecordID) error {
	return r.setActive(ctx, caller, id, "deactivate", false)
}

// Reactivate flips the active flag back on. Admin or owner only. Idempotent.
func (r *Registry) Reactivate(ctx context.Context, caller generic.Identity, id generic.RecordID) error {
	return r.setActive(ctx, caller, id, "reactivate", true)
}

// List returns all patients, when the backend supports enumeration.
func (r *Registry) List(ctx context.Context) ([]Patient, error) {
	entries, err := r.core.List(ctx)
	if err != nil {
		return nil, err
	}
	patients := make([]Patient, 0, len(entries))
	for _, e := range entries {
		var p Patient
		if err := json.Unmarshal(e.Value, &p); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

func (r *Registry) setActive(ctx context.Context, caller generic.Identity, id generic.RecordID, op string, active bool) error {
	return r.mutate(ctx, op, id, func(p *Patient) error {
		if err := r.authorizeOwner(caller, p, op, id); err != nil {
			return err
		}
		p.Active = active
		return nil
	})
}

func (r *Registry) authorizeOwner(caller generic.Identity, p *Patient, op string, id generic.RecordID) error {
	if r.core.IsAdmin(caller) || (caller != generic.Nobody && caller == p.RegisteredBy) {
		return nil
	}
	return &generic.OpError{Kind: generic.KindPatient, Op: op, ID: id, Err: generic.ErrUnauthorized}
}

// mutate runs fn on the decoded snapshot inside the core's transactional
// rewrite, so the checks in fn and the write commit as one unit.
func (r *Registry) mutate(ctx context.Context, op string, id generic.RecordID, fn func(*Patient) error) error {
	return r.core.Mutate(ctx, op, id, func(value []byte) ([]byte, error) {
		var p Patient
		if err := json.Unmarshal(value, &p); err != nil {
			return nil, err
		}
		if err := fn(&p); err != nil {
			return nil, err
		}
		return json.Marshal(p)
	})
}
