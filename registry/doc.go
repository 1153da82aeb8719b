// Package registry implements the proof-compliance registry.
//
// The registry records, for every registered proof (an opaque byte string such as a
// content hash), the account that first attested to it and the block at which the
// attestation happened. It supports exactly two state transitions:
//
//	Create(proof)  Absent -> Present(caller)      else ErrProofAlreadyRegistered
//	Revoke(proof)  Present(caller) -> Absent      else ErrNoSuchProof / ErrNotOwner
//
// There is no update: changing an attestation means Revoke followed by a new Create,
// which assigns a new owner and a new block number.
//
// # Host collaborators
//
// The registry does not authenticate callers or number blocks itself. Each call receives
// an interfaces.ExecutionContext that supplies the verified caller, the block number and
// a place to emit events. The chain package provides the production host: a serialized
// executor that buffers events per call and publishes them only when the call succeeds.
//
// # Storage
//
// The mapping lives in an injected interfaces.ProofStore. Stores must implement
// insert-if-absent so that two registry processes sharing one backend cannot both create
// the same proof.
//
// # Usage Example
//
//	store := storage.NewMemoryStore(logger)
//	reg := registry.NewRegistry(store, logger)
//
//	exec := chain.NewCallContext(alice, 10)
//	if err := reg.Create(ctx, exec, interfaces.Proof("abc123")); err != nil {
//	    return err
//	}
//	record, err := reg.Lookup(ctx, interfaces.Proof("abc123"))
package registry
