/*
Package httpserver serves the proof-compliance registry over HTTP.

Create and revoke requests must be signed: the RequireSignature middleware recovers the
signer of the request body from the X-Proof-Signature header and passes it to the handler
as the authenticated caller. Calls are then submitted to the chain executor, which applies
them one at a time and assigns block numbers.

API Endpoints:

	POST /api/v1/proofs/create   register a proof for the caller
	POST /api/v1/proofs/revoke   revoke a proof owned by the caller
	GET  /api/v1/proofs/{proof}  look up a proof (0x-hex)

Operational endpoints:

	GET /livez     liveness
	GET /readyz    readiness, fails while draining or when the store is unavailable
	GET /drain     mark not ready
	GET /undrain   mark ready
	/debug/*       pprof, when enabled

Metrics are served on a separate listener by the metrics package.
*/
package httpserver
