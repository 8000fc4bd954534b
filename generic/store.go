/*
store.go - Persistence interfaces for records, index entries, and admin state

PURPOSE:
  Defines the interface between the record stores and the backing key-value
  ledger. Durability of the ledger itself is the host's concern; the engine
  only requires keyed reads, keyed writes, and an atomic commit scope.

KEY INTERFACES:
  RecordStore:   Keyed record bytes + secondary-index existence entries
  TxRecordStore: Atomic multi-write scope (record insert + index insert)
  AdminStore:    Optional persistence of each store's admin identity
  ListableStore: Optional enumeration, for API listing surfaces only

NO-DELETE CONTRACT:
  There is no Delete anywhere. Records are logically deleted via soft flags
  inside their serialized value; index entries are written exactly once and
  never removed, even after the parent record is revoked or deactivated.

ATOMICITY:
  Creates write a record and its index entry in one WithTx scope: either both
  commit or neither does. No operation ever spans more than one Kind.

IMPLEMENTATIONS:
  - generic/store:  In-memory, for tests and dev
  - store/sqlite:   Production SQLite
  - store/leveldb:  LevelDB key-value backend

SEE ALSO:
  - generic/store/memory.go
  - store/sqlite/sqlite.go
  - store/leveldb/leveldb.go
*/
package generic

import "context"

// =============================================================================
// RECORD STORE - Keyed records plus secondary index
// =============================================================================

// RecordStore is the multi-tenant key-value surface shared by the four record
// stores. Values are opaque bytes; each domain package owns its own encoding.
type RecordStore interface {
	// PutRecord writes the value for (kind, id), inserting or replacing.
	// Uniqueness at creation is the caller's responsibility via GetRecord.
	PutRecord(ctx context.Context, kind Kind, id RecordID, value []byte) error

	// GetRecord returns the value for (kind, id) and whether it exists.
	GetRecord(ctx context.Context, kind Kind, id RecordID) ([]byte, bool, error)

	// PutIndex inserts the existence marker for (kind, subject, id).
	// Idempotent; markers are never removed.
	PutIndex(ctx context.Context, kind Kind, subject SubjectID, id RecordID) error

	// HasIndex reports whether the (kind, subject, id) marker exists.
	HasIndex(ctx context.Context, kind Kind, subject SubjectID, id RecordID) (bool, error)
}

// TxRecordStore extends RecordStore with an atomic commit scope.
type TxRecordStore interface {
	RecordStore

	// WithTx executes fn against a transactional view. If fn returns an
	// error, no writes are applied; otherwise all are applied together.
	WithTx(ctx context.Context, fn func(RecordStore) error) error
}

// =============================================================================
// OPTIONAL CAPABILITIES
// =============================================================================

// AdminStore persists the admin identity per Kind. Backends that implement it
// let registries survive restarts with admin transfers intact.
type AdminStore interface {
	// LoadAdmin returns the saved admin for kind, if any.
	LoadAdmin(ctx context.Context, kind Kind) (Identity, bool, error)

	// SaveAdmin records the admin for kind, replacing any previous value.
	SaveAdmin(ctx context.Context, kind Kind, admin Identity) error
}

// ListableStore enumerates stored records of one kind. Only the API listing
// surface uses it; core operations are keyed lookups and never scan.
type ListableStore interface {
	// ListRecords returns all (id, value) pairs of the kind, ordered by id.
	ListRecords(ctx context.Context, kind Kind) ([]RecordEntry, error)
}

// RecordEntry is one stored record as returned by ListRecords.
type RecordEntry struct {
	ID    RecordID
	Value []byte
}
