// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/caremesh/record-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[recordKey][]byte
	index   map[indexKey]bool
	admins  map[generic.Kind]generic.Identity
}

type recordKey struct {
	Kind generic.Kind
	ID   generic.RecordID
}

type indexKey struct {
	Kind    generic.Kind
	Subject generic.SubjectID
	ID      generic.RecordID
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[recordKey][]byte),
		index:   make(map[indexKey]bool),
		admins:  make(map[generic.Kind]generic.Identity),
	}
}

func (m *Memory) PutRecord(_ context.Context, kind generic.Kind, id generic.RecordID, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putRecordLocked(kind, id, value)
	return nil
}

func (m *Memory) putRecordLocked(kind generic.Kind, id generic.RecordID, value []byte) {
	// Copy so callers can't alias stored bytes
	cp := make([]byte, len(value))
	copy(cp, value)
	m.records[recordKey{Kind: kind, ID: id}] = cp
}

func (m *Memory) GetRecord(_ context.Context, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[recordKey{Kind: kind, ID: id}]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *Memory) PutIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index[indexKey{Kind: kind, Subject: subject, ID: id}] = true
	return nil
}

func (m *Memory) HasIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index[indexKey{Kind: kind, Subject: subject, ID: id}], nil
}

// =============================================================================
// ADMIN PERSISTENCE
// =============================================================================

func (m *Memory) LoadAdmin(_ context.Context, kind generic.Kind) (generic.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admin, ok := m.admins[kind]
	return admin, ok, nil
}

func (m *Memory) SaveAdmin(_ context.Context, kind generic.Kind, admin generic.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[kind] = admin
	return nil
}

// =============================================================================
// LISTING
// =============================================================================

func (m *Memory) ListRecords(_ context.Context, kind generic.Kind) ([]generic.RecordEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []generic.RecordEntry
	for k, v := range m.records {
		if k.Kind != kind {
			continue
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		entries = append(entries, generic.RecordEntry{ID: k.ID, Value: cp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against the store under the write lock. On error the
// pre-transaction state is restored, so partial commits are impossible.
func (m *Memory) WithTx(ctx context.Context, fn func(generic.RecordStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &memoryTxView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	recCopy := make(map[recordKey][]byte, len(m.records))
	for k, v := range m.records {
		recCopy[k] = v
	}
	idxCopy := make(map[indexKey]bool, len(m.index))
	for k, v := range m.index {
		idxCopy[k] = v
	}
	return memorySnapshot{records: recCopy, index: idxCopy}
}

func (m *Memory) restore(s memorySnapshot) {
	m.records = s.records
	m.index = s.index
}

type memorySnapshot struct {
	records map[recordKey][]byte
	index   map[indexKey]bool
}

// memoryTxView writes through to the parent without re-locking; the parent
// holds the write lock for the duration of WithTx.
type memoryTxView struct {
	parent *Memory
}

func (tv *memoryTxView) PutRecord(_ context.Context, kind generic.Kind, id generic.RecordID, value []byte) error {
	tv.parent.putRecordLocked(kind, id, value)
	return nil
}

func (tv *memoryTxView) GetRecord(_ context.Context, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	v, ok := tv.parent.records[recordKey{Kind: kind, ID: id}]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (tv *memoryTxView) PutIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	tv.parent.index[indexKey{Kind: kind, Subject: subject, ID: id}] = true
	return nil
}

func (tv *memoryTxView) HasIndex(_ context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	return tv.parent.index[indexKey{Kind: kind, Subject: subject, ID: id}], nil
}
