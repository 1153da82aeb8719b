package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ruteri/proof-compliance-registry/interfaces"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteBackend stores proofs in a single SQLite database file.
// The primary key is the proof's storage key (blake2b-128(proof) || proof).
type SQLiteBackend struct {
	*sqlBackend
}

// NewSQLiteBackend opens or creates the database at path.
func NewSQLiteBackend(path string, log *slog.Logger) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS proofs (
			id         BLOB PRIMARY KEY,
			proof      BLOB,
			owner      BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	backend := &SQLiteBackend{&sqlBackend{
		db:          db,
		log:         log,
		name:        fmt.Sprintf("sqlite-%s", filepath.Base(path)),
		locationURI: fmt.Sprintf("sqlite://%s", path),
		keyFor:      func(p interfaces.Proof) []byte { return p.StorageKey() },
	}}
	backend.insert = backend.insertUnique
	return backend, nil
}

func (b *SQLiteBackend) insertUnique(ctx context.Context, id []byte, proof interfaces.Proof, record interfaces.ProofRecord) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO proofs (id, proof, owner, created_at) VALUES (?, ?, ?, ?)`,
		id, blob(proof), record.Owner.Bytes(), int64(record.CreatedAt))
	if err != nil {
		if isSQLiteDuplicateKey(err) {
			return interfaces.ErrRecordExists
		}
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

func isSQLiteDuplicateKey(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
