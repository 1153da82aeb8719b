package registry

import (
	"errors"
)

// Domain errors. All three are precondition violations detected before any mutation;
// none is retried by the registry.
var (
	// ErrProofAlreadyRegistered: the proof already has an owner.
	ErrProofAlreadyRegistered = errors.New("proof already registered")

	// ErrNoSuchProof: the proof is not registered, so it cannot be revoked.
	ErrNoSuchProof = errors.New("no such proof")

	// ErrNotOwner: the proof is registered by another account.
	ErrNotOwner = errors.New("caller is not the proof owner")
)

// Stable error codes, used on the wire.
const (
	CodeProofAlreadyRegistered = "ProofAlreadyRegistered"
	CodeNoSuchProof            = "NoSuchProof"
	CodeNotOwner               = "NotOwner"
)

var codes = map[string]error{
	CodeProofAlreadyRegistered: ErrProofAlreadyRegistered,
	CodeNoSuchProof:            ErrNoSuchProof,
	CodeNotOwner:               ErrNotOwner,
}

// ErrorCode returns the wire code for a domain error, or "" for any other error.
func ErrorCode(err error) string {
	for code, domainErr := range codes {
		if errors.Is(err, domainErr) {
			return code
		}
	}
	return ""
}

// ErrorFromCode maps a wire code back to its domain error.
func ErrorFromCode(code string) (error, bool) {
	err, ok := codes[code]
	return err, ok
}

// IsDomainError reports whether err is one of the registry's precondition errors.
func IsDomainError(err error) bool {
	return ErrorCode(err) != ""
}
