/*
Package leveldb provides a LevelDB-backed implementation of the storage interfaces.

PURPOSE:
  A pure key-value rendition of the record store, closest in shape to the
  host ledger the engine was designed against. Useful where an embedded KV
  store is preferred over SQL.

KEY SCHEME:
  r/<kind>/<id>                      -> record value (JSON)
  i/<kind>/<subject>/<record>        -> existence marker ("1")
  a/<kind>                           -> admin identity

ATOMICITY:
  WithTx buffers writes in an overlay; reads inside the scope see the overlay
  first, then the database. On success the overlay is flushed as a single
  LevelDB write batch, which LevelDB applies atomically. On error nothing is
  written.

SEE ALSO:
  - generic/store.go: Interface definitions
  - store/sqlite: SQL alternative backend
*/
package leveldb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/caremesh/record-engine/generic"
)

// Store implements the storage interfaces using LevelDB.
type Store struct {
	db *leveldb.DB
	mu sync.Mutex // serializes WithTx scopes
}

// Compile-time interface checks.
var (
	_ generic.TxRecordStore = (*Store)(nil)
	_ generic.AdminStore    = (*Store)(nil)
	_ generic.ListableStore = (*Store)(nil)
)

// New opens (or creates) a LevelDB database at path.
func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// KEY HELPERS
// =============================================================================

// keyEscaper makes host-supplied key components safe to join with "/".
// Without it, subject "a/b" + id "c" would collide with subject "a" +
// id "b/c"; the sqlite and memory backends keep the components separate, so
// they must not disagree with this one on HasIndex.
var keyEscaper = strings.NewReplacer("%", "%25", "/", "%2F")

func recordKey(kind generic.Kind, id generic.RecordID) []byte {
	return []byte("r/" + string(kind) + "/" + string(id))
}

func indexKey(kind generic.Kind, subject generic.SubjectID, id generic.RecordID) []byte {
	return []byte("i/" + string(kind) + "/" + keyEscaper.Replace(string(subject)) + "/" + keyEscaper.Replace(string(id)))
}

func adminKey(kind generic.Kind) []byte {
	return []byte("a/" + string(kind))
}

// =============================================================================
// RECORD STORE
// =============================================================================

func (s *Store) PutRecord(_ context.Context, kind generic.Kind, id generic.RecordID, value []byte) error {
	return s.db.Put(recordKey(kind, id), value, nil)
}

func (s *Store) GetRecord(_ context.Context, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	value, err := s.db.Get(recordKey(kind, id), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) PutIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	return s.db.Put(indexKey(kind, subject, id), []byte("1"), nil)
}

func (s *Store) HasIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	ok, err := s.db.Has(indexKey(kind, subject, id), nil)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// =============================================================================
// TRANSACTIONS - Overlay buffered writes, flush as one batch
// =============================================================================

// WithTx executes fn against a buffered view. All writes land in a single
// LevelDB batch on success; on error nothing reaches the database.
func (s *Store) WithTx(ctx context.Context, fn func(generic.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := &txView{parent: s, pending: make(map[string][]byte)}
	if err := fn(view); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	for k, v := range view.pending {
		batch.Put([]byte(k), v)
	}
	return s.db.Write(batch, nil)
}

type txView struct {
	parent  *Store
	pending map[string][]byte
}

func (v *txView) PutRecord(_ context.Context, kind generic.Kind, id generic.RecordID, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	v.pending[string(recordKey(kind, id))] = cp
	return nil
}

func (v *txView) GetRecord(ctx context.Context, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	if value, ok := v.pending[string(recordKey(kind, id))]; ok {
		return value, true, nil
	}
	return v.parent.GetRecord(ctx, kind, id)
}

func (v *txView) PutIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	v.pending[string(indexKey(kind, subject, id))] = []byte("1")
	return nil
}

func (v *txView) HasIndex(ctx context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	if _, ok := v.pending[string(indexKey(kind, subject, id))]; ok {
		return true, nil
	}
	return v.parent.HasIndex(ctx, kind, subject, id)
}

// =============================================================================
// ADMIN PERSISTENCE
// =============================================================================

func (s *Store) LoadAdmin(_ context.Context, kind generic.Kind) (generic.Identity, bool, error) {
	value, err := s.db.Get(adminKey(kind), nil)
	if err == leveldb.ErrNotFound {
		return generic.Nobody, false, nil
	}
	if err != nil {
		return generic.Nobody, false, err
	}
	return generic.Identity(value), true, nil
}

func (s *Store) SaveAdmin(_ context.Context, kind generic.Kind, admin generic.Identity) error {
	return s.db.Put(adminKey(kind), []byte(admin), nil)
}

// =============================================================================
// LISTING
// =============================================================================

func (s *Store) ListRecords(_ context.Context, kind generic.Kind) ([]generic.RecordEntry, error) {
	prefix := "r/" + string(kind) + "/"
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var entries []generic.RecordEntry
	for iter.Next() {
		id := strings.TrimPrefix(string(iter.Key()), prefix)
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		entries = append(entries, generic.RecordEntry{
			ID:    generic.RecordID(id),
			Value: value,
		})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}
