/*
registry.go - The shared store pattern instantiated by each record type

PURPOSE:
  Bundles the pieces every record store shares: the backing TxRecordStore, the
  host clock, and the access controller. Domain packages (patient, insurance,
  consent, authorization) embed a Registry and add their schema, their
  temporal guards, and their per-operation authorization decisions.

CHECK ORDERING:
  Create commits are atomic and ordered: existence check, then the domain
  guard, then record write + index write in one WithTx scope. Mutations of
  existing records run their whole load-check-rewrite sequence inside one
  WithTx scope too (Mutate), so a concurrent commit can never be overwritten
  by a stale snapshot. Domain packages order existence before authorization
  before domain validation; that ordering is part of the wire contract (a
  caller probing an unknown id gets NotFound, never Unauthorized).

ADMIN BOOTSTRAP:
  When the backing store implements AdminStore, a previously saved admin wins
  over the initial one passed at construction, and transfers are persisted.
  Backends without the capability keep admin state in memory only.

SEE ALSO:
  - access.go, store.go, clock.go
  - patient/, insurance/, consent/, authorization/: the four instantiations
*/
package generic

import "context"

// Registry is the generic record store: one keyspace, one admin, one clock.
type Registry struct {
	kind   Kind
	store  TxRecordStore
	clock  Clock
	access *AccessController
}

// NewRegistry constructs a registry for kind over the given backend. The
// initial admin is normally the deploying identity; a persisted admin, if the
// backend has one, takes precedence.
func NewRegistry(ctx context.Context, kind Kind, store TxRecordStore, clock Clock, initialAdmin Identity) (*Registry, error) {
	admin := initialAdmin
	if as, ok := store.(AdminStore); ok {
		saved, found, err := as.LoadAdmin(ctx, kind)
		if err != nil {
			return nil, err
		}
		if found {
			admin = saved
		} else if err := as.SaveAdmin(ctx, kind, initialAdmin); err != nil {
			return nil, err
		}
	}
	return &Registry{
		kind:   kind,
		store:  store,
		clock:  clock,
		access: NewAccessController(admin),
	}, nil
}

// Kind returns the registry's store discriminator.
func (r *Registry) Kind() Kind { return r.kind }

// Now returns the current logical height from the host clock.
func (r *Registry) Now() Height { return r.clock.Height() }

// Admin returns the current admin identity.
func (r *Registry) Admin() Identity { return r.access.Admin() }

// IsAdmin reports whether caller is the current admin.
func (r *Registry) IsAdmin(caller Identity) bool { return r.access.IsAdmin(caller) }

// TransferAdmin replaces the admin, persisting it when the backend can. The
// persisted value is written before the live controller is swapped, so a
// failed save leaves the running process on the old admin and in agreement
// with the store.
func (r *Registry) TransferAdmin(ctx context.Context, newAdmin, caller Identity) error {
	if !r.access.IsAdmin(caller) {
		return &OpError{Kind: r.kind, Op: "transfer-admin", Err: ErrUnauthorized}
	}
	if as, ok := r.store.(AdminStore); ok {
		if err := as.SaveAdmin(ctx, r.kind, newAdmin); err != nil {
			return err
		}
	}
	if err := r.access.TransferAdmin(newAdmin, caller); err != nil {
		return &OpError{Kind: r.kind, Op: "transfer-admin", Err: err}
	}
	return nil
}

// =============================================================================
// SHARED CRUD
// =============================================================================

// Create inserts a new record and its secondary-index entry atomically.
// Fails with ErrAlreadyExists when the id is taken; ids are never reassigned.
// The guard runs after the existence check and before any write, so a failed
// temporal precondition leaves neither a record nor an index entry behind.
func (r *Registry) Create(ctx context.Context, subject SubjectID, id RecordID, value []byte, guard func() error) error {
	return r.store.WithTx(ctx, func(s RecordStore) error {
		_, exists, err := s.GetRecord(ctx, r.kind, id)
		if err != nil {
			return err
		}
		if exists {
			return &OpError{Kind: r.kind, Op: "create", ID: id, Err: ErrAlreadyExists}
		}
		if guard != nil {
			if err := guard(); err != nil {
				return &OpError{Kind: r.kind, Op: "create", ID: id, Err: err}
			}
		}
		if err := s.PutRecord(ctx, r.kind, id, value); err != nil {
			return err
		}
		return s.PutIndex(ctx, r.kind, subject, id)
	})
}

// Load returns the raw record value, or found=false for unknown ids. Reads
// are public and absence is not an error.
func (r *Registry) Load(ctx context.Context, id RecordID) ([]byte, bool, error) {
	return r.store.GetRecord(ctx, r.kind, id)
}

// Mutate rewrites an existing record inside one WithTx scope: load, run fn
// on the stored value, write fn's result back. Fails with ErrNotFound for
// unknown ids before fn runs. Because the load and the write share the
// transaction, fn always sees the latest committed snapshot and its result
// can never be clobbered by a writer that committed in between; domain
// authorization and validation run inside fn under the same guarantee.
func (r *Registry) Mutate(ctx context.Context, op string, id RecordID, fn func(value []byte) ([]byte, error)) error {
	return r.store.WithTx(ctx, func(s RecordStore) error {
		value, found, err := s.GetRecord(ctx, r.kind, id)
		if err != nil {
			return err
		}
		if !found {
			return &OpError{Kind: r.kind, Op: op, ID: id, Err: ErrNotFound}
		}
		next, err := fn(value)
		if err != nil {
			return err
		}
		return s.PutRecord(ctx, r.kind, id, next)
	})
}

// Owns reports whether the (subject, id) index marker exists. Markers are
// never removed, so ownership survives revocation and deactivation.
func (r *Registry) Owns(ctx context.Context, subject SubjectID, id RecordID) (bool, error) {
	return r.store.HasIndex(ctx, r.kind, subject, id)
}

// List enumerates raw records when the backend supports it.
func (r *Registry) List(ctx context.Context) ([]RecordEntry, error) {
	ls, ok := r.store.(ListableStore)
	if !ok {
		return nil, ErrStoreRequired
	}
	return ls.ListRecords(ctx, r.kind)
}
