// Package storage provides SQLite-backed persistence of fetched CSV payloads,
// giving the loader a warm-start and offline fallback per store.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SnapshotStore wraps a SQLite database holding raw store exports.
type SnapshotStore struct {
	db           *sql.DB
	keepPerStore int
}

// Snapshot is one raw CSV payload as fetched from a store resource.
type Snapshot struct {
	ID        string
	Store     string
	Payload   []byte
	FetchedAt time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/slotscope/snapshots.db.
func New(keepPerStore int, dbPath string) (*SnapshotStore, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "slotscope", "snapshots.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &SnapshotStore{db: db, keepPerStore: keepPerStore}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func (s *SnapshotStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id         TEXT PRIMARY KEY,
			store      TEXT NOT NULL,
			payload    BLOB NOT NULL,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_store_fetched
			ON snapshots(store, fetched_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot records a fetched payload for a store and prunes history
// beyond the per-store cap.
func (s *SnapshotStore) SaveSnapshot(store string, payload []byte, fetchedAt time.Time) error {
	if store == "" {
		return fmt.Errorf("snapshot store name must not be empty")
	}
	if len(payload) == 0 {
		return fmt.Errorf("snapshot payload must not be empty")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO snapshots (id, store, payload, fetched_at)
		VALUES (?,?,?,?)`,
		uuid.New().String(), store, payload, fetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if s.keepPerStore > 0 {
		if _, err = tx.Exec(`
			DELETE FROM snapshots WHERE store = ? AND id NOT IN (
				SELECT id FROM snapshots WHERE store = ?
				ORDER BY fetched_at DESC LIMIT ?
			)`, store, store, s.keepPerStore); err != nil {
			return fmt.Errorf("failed to enforce snapshot cap: %w", err)
		}
	}

	return tx.Commit()
}

// Prune deletes all but the newest keep snapshots for a store.
func (s *SnapshotStore) Prune(store string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.db.Exec(`
		DELETE FROM snapshots WHERE store = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE store = ?
			ORDER BY fetched_at DESC LIMIT ?
		)`, store, store, keep)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for a store, or nil when the
// store has none.
func (s *SnapshotStore) LatestSnapshot(store string) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, store, payload, fetched_at FROM snapshots
		WHERE store = ? ORDER BY fetched_at DESC LIMIT 1`, store)

	var snap Snapshot
	var fetchedAtNano int64
	err := row.Scan(&snap.ID, &snap.Store, &snap.Payload, &fetchedAtNano)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.FetchedAt = time.Unix(0, fetchedAtNano)
	return &snap, nil
}

// CountSnapshots returns how many snapshots a store currently has.
func (s *SnapshotStore) CountSnapshots(store string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE store = ?`, store).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}
