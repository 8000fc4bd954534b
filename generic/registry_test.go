package generic_test

import (
	"context"
	"errors"
	"testing"

	"github.com/caremesh/record-engine/generic"
	"github.com/caremesh/record-engine/generic/store"
)

func newTestRegistry(t *testing.T, kind generic.Kind) (*generic.Registry, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	r, err := generic.NewRegistry(context.Background(), kind, m, generic.FixedClock(100), "admin")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r, m
}

// =============================================================================
// CREATE SEMANTICS
// =============================================================================

func TestRegistry_Create_WritesRecordAndIndexTogether(t *testing.T) {
	r, m := newTestRegistry(t, generic.KindConsent)
	ctx := context.Background()

	if err := r.Create(ctx, "pat-1", "c1", []byte("{}"), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, found, _ := m.GetRecord(ctx, generic.KindConsent, "c1")
	if !found {
		t.Error("record should be stored")
	}
	owned, _ := r.Owns(ctx, "pat-1", "c1")
	if !owned {
		t.Error("index entry should be stored with the record")
	}
}

func TestRegistry_Create_DuplicateID(t *testing.T) {
	// Ids are never reassigned: the second create fails and the first value
	// stays.
	r, _ := newTestRegistry(t, generic.KindConsent)
	ctx := context.Background()

	if err := r.Create(ctx, "pat-1", "c1", []byte(`{"v":1}`), nil); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := r.Create(ctx, "pat-2", "c1", []byte(`{"v":2}`), nil)
	if !errors.Is(err, generic.ErrAlreadyExists) {
		t.Fatalf("second Create = %v, want ErrAlreadyExists", err)
	}

	value, _, _ := r.Load(ctx, "c1")
	if string(value) != `{"v":1}` {
		t.Errorf("stored value = %q, want the first call's fields", value)
	}
	if owned, _ := r.Owns(ctx, "pat-2", "c1"); owned {
		t.Error("failed create must not add an index entry for the second subject")
	}
}

func TestRegistry_Create_GuardFailureWritesNothing(t *testing.T) {
	// The domain guard runs after the existence check and before any write;
	// on failure neither the record nor the index entry lands.
	r, m := newTestRegistry(t, generic.KindAuthorization)
	ctx := context.Background()

	err := r.Create(ctx, "pat-1", "a1", []byte("{}"), func() error {
		return generic.ErrExpired
	})
	if !errors.Is(err, generic.ErrExpired) {
		t.Fatalf("Create = %v, want ErrExpired", err)
	}

	_, found, _ := m.GetRecord(ctx, generic.KindAuthorization, "a1")
	if found {
		t.Error("guard failure must not write the record")
	}
	if owned, _ := r.Owns(ctx, "pat-1", "a1"); owned {
		t.Error("guard failure must not write the index entry")
	}
}

// =============================================================================
// MUTATE SEMANTICS
// =============================================================================

func TestRegistry_Mutate_UnknownID(t *testing.T) {
	r, _ := newTestRegistry(t, generic.KindConsent)

	err := r.Mutate(context.Background(), "extend", "ghost", func(value []byte) ([]byte, error) {
		t.Error("fn must not run for a missing record")
		return value, nil
	})
	if !errors.Is(err, generic.ErrNotFound) {
		t.Fatalf("Mutate = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Mutate_FnErrorLeavesValue(t *testing.T) {
	r, _ := newTestRegistry(t, generic.KindConsent)
	ctx := context.Background()
	if err := r.Create(ctx, "pat-1", "c1", []byte(`{"v":1}`), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("boom")
	err := r.Mutate(ctx, "extend", "c1", func(value []byte) ([]byte, error) {
		return []byte(`{"v":2}`), boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate = %v, want the fn error", err)
	}

	value, _, _ := r.Load(ctx, "c1")
	if string(value) != `{"v":1}` {
		t.Errorf("stored value = %q, want the pre-mutation value", value)
	}
}

func TestRegistry_Mutate_RereadsInsideTheTransaction(t *testing.T) {
	// A write committed between the caller's decision to mutate and the
	// mutation's transaction must be visible to fn.
	r, m := newTestRegistry(t, generic.KindConsent)
	ctx := context.Background()
	if err := r.Create(ctx, "pat-1", "c1", []byte(`{"v":1}`), nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.PutRecord(ctx, generic.KindConsent, "c1", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}

	err := r.Mutate(ctx, "extend", "c1", func(value []byte) ([]byte, error) {
		if string(value) != `{"v":2}` {
			t.Errorf("fn saw %q, want the latest committed value", value)
		}
		return value, nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
}

// =============================================================================
// ADMIN BOOTSTRAP
// =============================================================================

func TestRegistry_AdminBootstrap_PersistedAdminWins(t *testing.T) {
	// GIVEN: a backend that already holds a transferred admin
	// WHEN: a registry is constructed with a different initial admin
	// THEN: the persisted admin wins

	ctx := context.Background()
	m := store.NewMemory()
	if err := m.SaveAdmin(ctx, generic.KindPatient, "carol"); err != nil {
		t.Fatalf("SaveAdmin: %v", err)
	}

	r, err := generic.NewRegistry(ctx, generic.KindPatient, m, generic.FixedClock(1), "alice")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if r.Admin() != "carol" {
		t.Errorf("Admin() = %q, want persisted carol", r.Admin())
	}
}

func TestRegistry_TransferAdmin_Persists(t *testing.T) {
	ctx := context.Background()
	r, m := newTestRegistry(t, generic.KindPatient)

	if err := r.TransferAdmin(ctx, "bob", "admin"); err != nil {
		t.Fatalf("TransferAdmin: %v", err)
	}
	saved, found, _ := m.LoadAdmin(ctx, generic.KindPatient)
	if !found || saved != "bob" {
		t.Errorf("persisted admin = (%q, %v), want (bob, true)", saved, found)
	}
}

// failingAdminStore persists normally until fail is set.
type failingAdminStore struct {
	*store.Memory
	fail bool
}

func (f *failingAdminStore) SaveAdmin(ctx context.Context, kind generic.Kind, admin generic.Identity) error {
	if f.fail {
		return errors.New("save admin: disk full")
	}
	return f.Memory.SaveAdmin(ctx, kind, admin)
}

func TestRegistry_TransferAdmin_KeepsOldAdminWhenPersistFails(t *testing.T) {
	// The in-memory controller must not swap before the store accepts the
	// new admin, or a restart would silently undo the transfer.
	ctx := context.Background()
	m := &failingAdminStore{Memory: store.NewMemory()}
	r, err := generic.NewRegistry(ctx, generic.KindPatient, m, generic.FixedClock(1), "admin")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	m.fail = true
	if err := r.TransferAdmin(ctx, "bob", "admin"); err == nil {
		t.Fatal("TransferAdmin should surface the persist failure")
	}
	if r.Admin() != "admin" {
		t.Errorf("Admin() = %q, want the old admin after a failed persist", r.Admin())
	}
	saved, _, _ := m.Memory.LoadAdmin(ctx, generic.KindPatient)
	if saved != "admin" {
		t.Errorf("persisted admin = %q, want admin", saved)
	}
}

// =============================================================================
// CAPABILITY DEGRADATION
// =============================================================================

// txOnly hides the optional capabilities of the memory store.
type txOnly struct {
	generic.TxRecordStore
}

func TestRegistry_List_WithoutListableStore(t *testing.T) {
	ctx := context.Background()
	r, err := generic.NewRegistry(ctx, generic.KindPatient,
		txOnly{store.NewMemory()}, generic.FixedClock(1), "admin")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	_, err = r.List(ctx)
	if !errors.Is(err, generic.ErrStoreRequired) {
		t.Fatalf("List = %v, want ErrStoreRequired", err)
	}
}
