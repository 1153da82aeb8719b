package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// sqlBackend holds the query paths shared by the SQLite and MySQL stores. Both use the
// same table layout:
//
//	proofs(id PRIMARY KEY, proof, owner, created_at)
//
// where id is derived from the proof by the dialect (see keyFor).
type sqlBackend struct {
	db          *sql.DB
	log         *slog.Logger
	name        string
	locationURI string

	// keyFor derives the primary key for a proof.
	keyFor func(interfaces.Proof) []byte
	// insert performs insert-if-absent and reports ErrRecordExists on conflict.
	insert func(ctx context.Context, id []byte, proof interfaces.Proof, record interfaces.ProofRecord) error
}

func (b *sqlBackend) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	start := time.Now()

	var (
		storedProof []byte
		owner       []byte
		createdAt   uint64
	)
	row := b.db.QueryRowContext(ctx, `SELECT proof, owner, created_at FROM proofs WHERE id = ?`, b.keyFor(proof))
	err := row.Scan(&storedProof, &owner, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ProofRecord{}, interfaces.ErrRecordNotFound
	}
	if err != nil {
		b.log.Error("Failed to query record",
			slog.String("backend", b.name),
			slog.String("proof", proof.String()),
			"err", err)
		return interfaces.ProofRecord{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if !proof.Equal(storedProof) {
		return interfaces.ProofRecord{}, fmt.Errorf("stored record belongs to proof %s, not %s", interfaces.Proof(storedProof), proof)
	}

	account, err := interfaces.NewAccountIDFromBytes(owner)
	if err != nil {
		return interfaces.ProofRecord{}, fmt.Errorf("corrupt owner column: %w", err)
	}

	b.log.Debug("Fetched record",
		slog.String("backend", b.name),
		slog.String("proof", proof.String()),
		slog.Duration("duration", time.Since(start)))

	return interfaces.ProofRecord{Owner: account, CreatedAt: interfaces.BlockNumber(createdAt)}, nil
}

func (b *sqlBackend) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	return b.insert(ctx, b.keyFor(proof), proof, record)
}

func (b *sqlBackend) Delete(ctx context.Context, proof interfaces.Proof) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM proofs WHERE id = ?`, b.keyFor(proof))
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return interfaces.ErrRecordNotFound
	}
	return nil
}

func (b *sqlBackend) Available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := b.db.PingContext(pingCtx); err != nil {
		b.log.Warn("SQL backend unavailable", slog.String("backend", b.name), "err", err)
		return false
	}
	return true
}

func (b *sqlBackend) Name() string {
	return b.name
}

func (b *sqlBackend) LocationURI() string {
	return b.locationURI
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

// blob returns a non-nil slice so drivers bind empty proofs as empty blobs, not NULL.
func blob(proof interfaces.Proof) []byte {
	if proof == nil {
		return []byte{}
	}
	return proof
}
