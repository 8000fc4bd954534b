/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the record-store persistence interfaces using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  generic.RecordStore:   Keyed record values + secondary index entries
  generic.TxRecordStore: Atomic record + index commit
  generic.AdminStore:    Persisted admin identity per store kind
  generic.ListableStore: Record enumeration for the API listing surface

NO-DELETE ENFORCEMENT:
  There are no DELETE statements in this package. Records are logically
  deleted via soft flags inside their serialized value, and index entries are
  insert-only (INSERT OR IGNORE).

KEY TABLES:
  records:       (kind, id) -> JSON value
  subject_index: (kind, subject_id, record_id) existence markers
  admins:        (kind) -> admin identity

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  st, err := sqlite.New("./data/records.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - store/leveldb: Key-value alternative backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caremesh/record-engine/generic"
)

// Store implements the storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes WithTx scopes
}

// Compile-time interface checks.
var (
	_ generic.TxRecordStore = (*Store)(nil)
	_ generic.AdminStore    = (*Store)(nil)
	_ generic.ListableStore = (*Store)(nil)
)

// New creates a new SQLite store at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Primary tables: one row per record, JSON value
	CREATE TABLE IF NOT EXISTS records (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	-- Secondary index: insert-only existence markers
	CREATE TABLE IF NOT EXISTS subject_index (
		kind TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		record_id TEXT NOT NULL,
		PRIMARY KEY (kind, subject_id, record_id)
	);

	-- Admin identity per store kind
	CREATE TABLE IF NOT EXISTS admins (
		kind TEXT PRIMARY KEY,
		admin TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE
// =============================================================================

// execer is satisfied by both *sql.DB and *sql.Tx so the same statements
// serve direct calls and WithTx scopes.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func putRecord(ctx context.Context, e execer, kind generic.Kind, id generic.RecordID, value []byte) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO records (kind, id, value) VALUES (?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET value = excluded.value`,
		string(kind), string(id), string(value))
	return err
}

func getRecord(ctx context.Context, e execer, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	var value string
	err := e.QueryRowContext(ctx,
		`SELECT value FROM records WHERE kind = ? AND id = ?`,
		string(kind), string(id)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func putIndex(ctx context.Context, e execer, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	_, err := e.ExecContext(ctx,
		`INSERT OR IGNORE INTO subject_index (kind, subject_id, record_id) VALUES (?, ?, ?)`,
		string(kind), string(subject), string(id))
	return err
}

func hasIndex(ctx context.Context, e execer, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	var one int
	err := e.QueryRowContext(ctx,
		`SELECT 1 FROM subject_index WHERE kind = ? AND subject_id = ? AND record_id = ?`,
		string(kind), string(subject), string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) PutRecord(ctx context.Context, kind generic.Kind, id generic.RecordID, value []byte) error {
	return putRecord(ctx, s.db, kind, id, value)
}

func (s *Store) GetRecord(ctx context.Context, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	return getRecord(ctx, s.db, kind, id)
}

func (s *Store) PutIndex(ctx context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	return putIndex(ctx, s.db, kind, subject, id)
}

func (s *Store) HasIndex(ctx context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	return hasIndex(ctx, s.db, kind, subject, id)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. If fn returns an error
// the transaction is rolled back; otherwise it is committed.
func (s *Store) WithTx(ctx context.Context, fn func(generic.RecordStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	view := &txView{tx: tx}
	if err := fn(view); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type txView struct {
	tx *sql.Tx
}

func (v *txView) PutRecord(ctx context.Context, kind generic.Kind, id generic.RecordID, value []byte) error {
	return putRecord(ctx, v.tx, kind, id, value)
}

func (v *txView) GetRecord(ctx context.Context, kind generic.Kind, id generic.RecordID) ([]byte, bool, error) {
	return getRecord(ctx, v.tx, kind, id)
}

func (v *txView) PutIndex(ctx context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) error {
	return putIndex(ctx, v.tx, kind, subject, id)
}

func (v *txView) HasIndex(ctx context.Context, kind generic.Kind, subject generic.SubjectID, id generic.RecordID) (bool, error) {
	return hasIndex(ctx, v.tx, kind, subject, id)
}

// =============================================================================
// ADMIN PERSISTENCE
// =============================================================================

func (s *Store) LoadAdmin(ctx context.Context, kind generic.Kind) (generic.Identity, bool, error) {
	var admin string
	err := s.db.QueryRowContext(ctx,
		`SELECT admin FROM admins WHERE kind = ?`, string(kind)).Scan(&admin)
	if err == sql.ErrNoRows {
		return generic.Nobody, false, nil
	}
	if err != nil {
		return generic.Nobody, false, err
	}
	return generic.Identity(admin), true, nil
}

func (s *Store) SaveAdmin(ctx context.Context, kind generic.Kind, admin generic.Identity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (kind, admin) VALUES (?, ?)
		 ON CONFLICT(kind) DO UPDATE SET admin = excluded.admin`,
		string(kind), string(admin))
	return err
}

// =============================================================================
// LISTING
// =============================================================================

func (s *Store) ListRecords(ctx context.Context, kind generic.Kind) ([]generic.RecordEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, value FROM records WHERE kind = ? ORDER BY id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []generic.RecordEntry
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		entries = append(entries, generic.RecordEntry{
			ID:    generic.RecordID(id),
			Value: []byte(value),
		})
	}
	return entries, rows.Err()
}
