package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/proof-compliance-registry/api"
	"github.com/ruteri/proof-compliance-registry/chain"
	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/ruteri/proof-compliance-registry/registry"
)

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	StatusCode int
	Code       string
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// CallExecutor applies registry calls in order and serves lookups.
type CallExecutor interface {
	Submit(ctx context.Context, call chain.Call) (*chain.Receipt, error)
	Lookup(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error)
}

// Handler processes HTTP requests for the proof registry.
type Handler struct {
	exec   CallExecutor
	store  interfaces.ProofStore
	log    *slog.Logger
	replay *replayGuard
	now    func() time.Time
}

// NewHandler creates a request handler. store is only consulted for readiness.
func NewHandler(exec CallExecutor, store interfaces.ProofStore, log *slog.Logger) *Handler {
	return &Handler{
		exec:   exec,
		store:  store,
		log:    log,
		replay: newReplayGuard(),
		now:    time.Now,
	}
}

// HandleCreate registers the proof in the body for the authenticated caller.
//
// URL format: POST /api/v1/proofs/create
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.handleCall(w, r, chain.CallCreate, api.CallCreate)
}

// HandleRevoke revokes the proof in the body if the authenticated caller owns it.
//
// URL format: POST /api/v1/proofs/revoke
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	h.handleCall(w, r, chain.CallRevoke, api.CallRevoke)
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request, kind chain.CallKind, callName string) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Code: api.CodeUnauthorized, Err: errors.New("unauthenticated request")})
		return
	}

	proof, reqErr := h.decodeCall(r, caller, callName)
	if reqErr != nil {
		h.writeError(w, reqErr)
		return
	}

	receipt, err := h.exec.Submit(r.Context(), chain.Call{Kind: kind, Caller: caller, Proof: proof})
	if err != nil {
		reqErr := classifyError(err)
		if reqErr.StatusCode >= http.StatusInternalServerError {
			h.log.Error("Registry call failed",
				slog.String("call", kind.String()),
				slog.String("caller", caller.String()),
				"err", err)
		}
		h.writeError(w, reqErr)
		return
	}

	resp := api.CallResponse{
		BlockNumber: receipt.BlockNumber,
		Index:       receipt.Index,
	}
	if len(receipt.Events) > 0 {
		resp.Event = &receipt.Events[0]
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// decodeCall parses the signed body strictly and checks that it was signed for this route,
// has not expired and has not been used before.
func (h *Handler) decodeCall(r *http.Request, caller interfaces.AccountID, callName string) (interfaces.Proof, *RequestError) {
	badRequest := func(err error) *RequestError {
		return &RequestError{StatusCode: http.StatusBadRequest, Code: api.CodeBadRequest, Err: err}
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req api.CallRequest
	if err := dec.Decode(&req); err != nil {
		return nil, badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	if dec.More() {
		return nil, badRequest(errors.New("invalid request body: trailing data"))
	}

	if req.Call != callName {
		return nil, badRequest(fmt.Errorf("body is signed for call %q, not %q", req.Call, callName))
	}
	if req.Proof == nil {
		return nil, badRequest(errors.New("missing proof"))
	}
	if req.Nonce == "" || len(req.Nonce) > api.MaxNonceLength {
		return nil, badRequest(fmt.Errorf("nonce must be 1 to %d characters", api.MaxNonceLength))
	}

	now := h.now()
	expires := time.Unix(req.Expires, 0)
	if !expires.After(now) {
		return nil, &RequestError{StatusCode: http.StatusUnauthorized, Code: api.CodeUnauthorized, Err: errors.New("signed call has expired")}
	}
	if expires.After(now.Add(api.MaxRequestTTL)) {
		return nil, badRequest(fmt.Errorf("expiry is more than %s ahead", api.MaxRequestTTL))
	}

	if !h.replay.claim(caller, req.Nonce, expires, now) {
		h.log.Warn("Rejected replayed call",
			slog.String("call", callName),
			slog.String("caller", caller.String()),
			slog.String("nonce", req.Nonce))
		return nil, &RequestError{StatusCode: http.StatusUnauthorized, Code: api.CodeUnauthorized, Err: errors.New("nonce already used")}
	}

	return *req.Proof, nil
}

// HandleLookup returns the record of a registered proof.
//
// URL format: GET /api/v1/proofs/{proof} with the proof 0x-hex encoded
func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	proof, err := interfaces.ParseProof(chi.URLParam(r, "proof"))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Code: api.CodeBadRequest, Err: err})
		return
	}

	record, err := h.exec.Lookup(r.Context(), proof)
	if err != nil {
		reqErr := classifyError(err)
		if reqErr.StatusCode >= http.StatusInternalServerError {
			h.log.Error("Lookup failed", slog.String("proof", proof.String()), "err", err)
		}
		h.writeError(w, reqErr)
		return
	}

	h.writeJSON(w, http.StatusOK, api.ProofResponse{
		Proof:     proof,
		Owner:     record.Owner,
		CreatedAt: record.CreatedAt,
	})
}

// Ready reports whether the backing store can serve requests.
func (h *Handler) Ready(ctx context.Context) bool {
	if h.store == nil {
		return true
	}
	return h.store.Available(ctx)
}

// classifyError maps registry, storage and executor errors to HTTP responses.
func classifyError(err error) *RequestError {
	switch {
	case errors.Is(err, registry.ErrProofAlreadyRegistered):
		return &RequestError{StatusCode: http.StatusConflict, Code: registry.CodeProofAlreadyRegistered, Err: err}
	case errors.Is(err, registry.ErrNoSuchProof):
		return &RequestError{StatusCode: http.StatusNotFound, Code: registry.CodeNoSuchProof, Err: err}
	case errors.Is(err, registry.ErrNotOwner):
		return &RequestError{StatusCode: http.StatusForbidden, Code: registry.CodeNotOwner, Err: err}
	case errors.Is(err, interfaces.ErrBackendUnavailable),
		errors.Is(err, chain.ErrExecutorStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &RequestError{StatusCode: http.StatusServiceUnavailable, Code: api.CodeBackendUnavailable, Err: err}
	default:
		return &RequestError{StatusCode: http.StatusInternalServerError, Code: api.CodeInternal, Err: err}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, reqErr *RequestError) {
	h.writeJSON(w, reqErr.StatusCode, api.ErrorResponse{
		Code:    reqErr.Code,
		Message: reqErr.Err.Error(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
