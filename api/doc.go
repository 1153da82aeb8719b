/*
Package api defines the HTTP contract of the proof-compliance registry: routes, request
and response bodies, error codes, and the server configuration.

# Authentication

State-changing calls are authenticated by an Ethereum-style signature over the raw
request body, carried in the X-Proof-Signature header as "<address>:<signature>". The
server recovers the signing address and uses it as the caller of the registry call.
Requests without a valid signature are rejected with 401 before reaching the registry.

# Endpoints

	POST /api/v1/proofs/create   {"proof":"0x..."}  -> 200 CallResponse
	POST /api/v1/proofs/revoke   {"proof":"0x..."}  -> 200 CallResponse
	GET  /api/v1/proofs/{proof}                     -> 200 ProofResponse

# Errors

Failures return an ErrorResponse with a stable code:

	409 ProofAlreadyRegistered
	404 NoSuchProof
	403 NotOwner
	401 Unauthorized
	400 BadRequest
	503 BackendUnavailable

The clients subpackage maps these codes back to the registry's sentinel errors.
*/
package api
