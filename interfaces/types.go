// Package interfaces defines the core interfaces and types for the proof registry.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/blake2b"
)

// AccountID identifies a verified caller. Accounts are Ethereum-style 20-byte addresses
// recovered from request signatures.
type AccountID [20]byte

// NewAccountIDFromBytes creates an account id from a 20-byte slice.
func NewAccountIDFromBytes(addr []byte) (AccountID, error) {
	if len(addr) != 20 {
		return AccountID{}, errors.New("invalid account length: must be 20 bytes")
	}

	var res AccountID
	copy(res[:], addr)
	return res, nil
}

// NewAccountIDFromHex parses a 40-char hex string, with or without 0x prefix.
func NewAccountIDFromHex(addr string) (AccountID, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return AccountID{}, errors.New("invalid account length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return AccountID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAccountIDFromBytes(addrBytes)
}

// AccountIDFromAddress converts a go-ethereum address.
func AccountIDFromAddress(addr common.Address) AccountID {
	return AccountID(addr)
}

// Address returns the go-ethereum representation of the account.
func (a AccountID) Address() common.Address {
	return common.Address(a)
}

// String returns the 0x-prefixed hex representation of the account.
func (a AccountID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns the raw 20-byte account.
func (a AccountID) Bytes() []byte {
	return a[:]
}

// Equal compares two accounts for identity.
func (a AccountID) Equal(other AccountID) bool {
	return a == other
}

// MarshalText encodes the account as 0x-hex.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a 0x-hex account.
func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := NewAccountIDFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// BlockNumber is the host-assigned position of a call in the global execution order.
type BlockNumber uint64

// Proof is an opaque attestation identifier, e.g. a content hash. Two proofs are the
// same key iff their bytes are equal.
type Proof []byte

// ParseProof decodes a hex proof, with or without 0x prefix.
func ParseProof(s string) (Proof, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean)%2 != 0 {
		return nil, errors.New("invalid proof: odd hex length")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid proof hex: %w", err)
	}
	return Proof(raw), nil
}

// String returns the 0x-prefixed hex representation of the proof.
func (p Proof) String() string {
	return "0x" + hex.EncodeToString(p)
}

// Equal compares two proofs byte-wise.
func (p Proof) Equal(other Proof) bool {
	return bytes.Equal(p, other)
}

// MarshalText encodes the proof as 0x-hex.
func (p Proof) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a 0x-hex proof.
func (p *Proof) UnmarshalText(text []byte) error {
	parsed, err := ParseProof(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// StorageKey derives the backend key for a proof: blake2b-128(proof) || proof.
// The hash prefix spreads keys evenly across prefix-partitioned backends while the
// suffix keeps the mapping reversible.
func (p Proof) StorageKey() []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// Only fails for size > 64 or oversized keys.
		panic(err)
	}
	h.Write(p)
	return append(h.Sum(nil), p...)
}

// ProofFromStorageKey recovers the proof from a key produced by StorageKey.
func ProofFromStorageKey(key []byte) (Proof, error) {
	if len(key) < 16 {
		return nil, errors.New("storage key too short")
	}
	proof := Proof(bytes.Clone(key[16:]))
	if !bytes.Equal(proof.StorageKey(), key) {
		return nil, errors.New("storage key hash mismatch")
	}
	return proof, nil
}

// ProofRecord is the value stored for a registered proof. It is never mutated in place.
type ProofRecord struct {
	Owner     AccountID   `json:"owner"`
	CreatedAt BlockNumber `json:"created_at"`
}
