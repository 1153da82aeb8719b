package api

import (
	"context"
	"time"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

const (
	// SignatureHeader carries "<address>:<signature>" over the request body, as produced
	// by github.com/flashbots/go-utils/signature. The recovered address is the caller.
	SignatureHeader = "X-Proof-Signature"

	// MaxBodySize is the maximum allowed request body size (1MB).
	MaxBodySize = 1024 * 1024

	// MaxRequestTTL bounds how far in the future a signed call may expire. Nonces are
	// remembered until their call expires.
	MaxRequestTTL = 5 * time.Minute

	// DefaultRequestTTL is the lifetime clients give to the calls they sign.
	DefaultRequestTTL = time.Minute

	// MaxNonceLength limits the nonce of a signed call.
	MaxNonceLength = 128
)

// Call names carried in signed bodies. A body signed for one call is rejected by the other route.
const (
	CallCreate = "create"
	CallRevoke = "revoke"
)

// Routes served by the registry.
const (
	CreatePath = "/api/v1/proofs/create"
	RevokePath = "/api/v1/proofs/revoke"
	LookupPath = "/api/v1/proofs/{proof}"
)

// Error codes for non-domain failures. Domain codes are defined by the registry package.
const (
	CodeUnauthorized       = "Unauthorized"
	CodeBadRequest         = "BadRequest"
	CodeBackendUnavailable = "BackendUnavailable"
	CodeInternal           = "Internal"
)

// CallRequest is the signed body of create and revoke calls. The signature covers every
// field, binding the call name, nonce and expiry to the caller's key.
type CallRequest struct {
	Call  string            `json:"call"`
	Proof *interfaces.Proof `json:"proof"`
	// Nonce is unique per caller among calls that have not expired.
	Nonce string `json:"nonce"`
	// Expires is a unix timestamp in seconds.
	Expires int64 `json:"expires"`
}

// CallResponse is returned by a successful create or revoke.
type CallResponse struct {
	BlockNumber interfaces.BlockNumber  `json:"block_number"`
	Index       uint64                  `json:"index"`
	Event       *interfaces.EventRecord `json:"event,omitempty"`
}

// ProofResponse is returned by a lookup of a registered proof.
type ProofResponse struct {
	Proof     interfaces.Proof       `json:"proof"`
	Owner     interfaces.AccountID   `json:"owner"`
	CreatedAt interfaces.BlockNumber `json:"created_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegistryProvider is implemented by clients of the registry API.
type RegistryProvider interface {
	Create(ctx context.Context, proof interfaces.Proof) (*CallResponse, error)
	Revoke(ctx context.Context, proof interfaces.Proof) (*CallResponse, error)
	Lookup(ctx context.Context, proof interfaces.Proof) (*ProofResponse, error)
}
