package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// MySQLConfig describes the MySQL connection pool.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLBackend stores proofs in a MySQL table keyed by SHA-256 of the proof, since
// InnoDB primary keys are length-limited.
type MySQLBackend struct {
	*sqlBackend
}

// NewMySQLBackend connects, sizes the pool and creates the schema if missing.
func NewMySQLBackend(ctx context.Context, cfg MySQLConfig, log *slog.Logger) (*MySQLBackend, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("MySQL DSN must not be empty")
	}

	parsed, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: cannot reach MySQL: %v", interfaces.ErrBackendUnavailable, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS proofs (
		id         BINARY(32) PRIMARY KEY,
		proof      LONGBLOB NOT NULL,
		owner      BINARY(20) NOT NULL,
		created_at BIGINT UNSIGNED NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create proofs table: %w", err)
	}

	return newMySQLBackend(db, parsed, log), nil
}

// newMySQLBackend wraps an open pool whose schema is already in place.
func newMySQLBackend(db *sql.DB, cfg *mysql.Config, log *slog.Logger) *MySQLBackend {
	backend := &MySQLBackend{&sqlBackend{
		db:          db,
		log:         log,
		name:        fmt.Sprintf("mysql-%s", cfg.DBName),
		locationURI: fmt.Sprintf("mysql://%s/%s", cfg.Addr, cfg.DBName),
		keyFor: func(p interfaces.Proof) []byte {
			id := sha256.Sum256(p)
			return id[:]
		},
	}}
	backend.insert = backend.insertUnique
	return backend
}

func (b *MySQLBackend) insertUnique(ctx context.Context, id []byte, proof interfaces.Proof, record interfaces.ProofRecord) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO proofs (id, proof, owner, created_at) VALUES (?, ?, ?, ?)`,
		id, blob(proof), record.Owner.Bytes(), uint64(record.CreatedAt))
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return interfaces.ErrRecordExists
		}
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}
