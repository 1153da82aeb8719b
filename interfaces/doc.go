// Package interfaces defines the types shared by the registry, its storage backends and the
// host that executes calls.
//
// # Types
//
// AccountID identifies a caller (an Ethereum address recovered from a request signature).
// Proof is an opaque byte string, BlockNumber the position of a call in the execution order.
//
// # Storage
//
// ProofStore persists the proof to ProofRecord mapping. Backends are chosen by StoreLocation,
// a URI such as sqlite:///var/lib/proofs.db or s3://bucket/prefix.
//
// # Host
//
// ExecutionContext exposes the verified caller and block number of the call being applied and
// collects emitted events. EventSink delivers events outside the process and BlockSource
// assigns block numbers.
package interfaces
