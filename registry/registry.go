// Package registry implements the proof-compliance registry: a keyed store recording
// which account first attested to a proof and at which block.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// Registry owns the proof mapping and exposes its two state transitions, Create and
// Revoke. Every check happens before the single mutation, so a failed call leaves the
// store and the event log untouched.
type Registry struct {
	// mu serializes check-then-act for callers that bypass the host executor.
	mu    sync.Mutex
	store interfaces.ProofStore
	log   *slog.Logger
}

// NewRegistry creates a registry on top of store. The store is expected to be empty at
// genesis and is never mutated by anything but this registry.
func NewRegistry(store interfaces.ProofStore, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		store: store,
		log:   log,
	}
}

// Lookup returns the record of a registered proof, or ErrNoSuchProof.
func (r *Registry) Lookup(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	record, err := r.store.Get(ctx, proof)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return interfaces.ProofRecord{}, ErrNoSuchProof
	}
	if err != nil {
		return interfaces.ProofRecord{}, fmt.Errorf("lookup in %s: %w", r.store.Name(), err)
	}
	return record, nil
}

// Create registers proof for the calling account at the current block and emits
// ComplianceCreated. Fails with ErrProofAlreadyRegistered if the proof has an owner.
func (r *Registry) Create(ctx context.Context, exec interfaces.ExecutionContext, proof interfaces.Proof) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller := exec.Caller()

	_, err := r.Lookup(ctx, proof)
	switch {
	case err == nil:
		return ErrProofAlreadyRegistered
	case !errors.Is(err, ErrNoSuchProof):
		return err
	}

	record := interfaces.ProofRecord{
		Owner:     caller,
		CreatedAt: exec.BlockNumber(),
	}

	if err := r.store.Insert(ctx, proof, record); err != nil {
		// Another writer on a shared backend won the race.
		if errors.Is(err, interfaces.ErrRecordExists) {
			return ErrProofAlreadyRegistered
		}
		return fmt.Errorf("insert into %s: %w", r.store.Name(), err)
	}

	exec.Emit(interfaces.ComplianceCreated{Who: caller, Proof: bytes.Clone(proof)})

	r.log.Debug("Proof registered",
		slog.String("proof", proof.String()),
		slog.String("owner", caller.String()),
		slog.Uint64("block", uint64(record.CreatedAt)))

	return nil
}

// Revoke removes proof if the calling account owns it and emits ComplianceRevoked.
// Fails with ErrNoSuchProof if absent and ErrNotOwner if owned by someone else.
func (r *Registry) Revoke(ctx context.Context, exec interfaces.ExecutionContext, proof interfaces.Proof) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	caller := exec.Caller()

	record, err := r.Lookup(ctx, proof)
	if err != nil {
		return err
	}

	if !record.Owner.Equal(caller) {
		return ErrNotOwner
	}

	if err := r.store.Delete(ctx, proof); err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			return ErrNoSuchProof
		}
		return fmt.Errorf("delete from %s: %w", r.store.Name(), err)
	}

	exec.Emit(interfaces.ComplianceRevoked{Who: caller, Proof: bytes.Clone(proof)})

	r.log.Debug("Proof revoked",
		slog.String("proof", proof.String()),
		slog.String("owner", caller.String()))

	return nil
}
