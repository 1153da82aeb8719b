package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flashbots/go-utils/signature"
	"github.com/google/uuid"
	"github.com/ruteri/proof-compliance-registry/api"
	"github.com/ruteri/proof-compliance-registry/chain"
	"github.com/ruteri/proof-compliance-registry/events"
	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/ruteri/proof-compliance-registry/registry"
	"github.com/ruteri/proof-compliance-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router   http.Handler
	recorder *events.Recorder
}

// newTestEnv wires store -> registry -> executor -> handler with the clock pinned to block 10.
func newTestEnv(t *testing.T, store interfaces.ProofStore) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	genesis := time.Unix(1_700_000_000, 0)
	blocks := chain.NewLocalBlockSource(genesis, 6*time.Second).WithClock(func() time.Time {
		return genesis.Add(60 * time.Second)
	})

	rec := events.NewRecorder()
	exec := chain.NewExecutor(registry.NewRegistry(store, logger), blocks, rec, chain.ExecutorOpts{Log: logger})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		exec.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv, err := New(&api.HTTPServerConfig{Log: logger}, NewHandler(exec, store, logger), nil)
	require.NoError(t, err)

	return &testEnv{router: srv.Handler(), recorder: rec}
}

func newSigner(t *testing.T) *signature.Signer {
	t.Helper()
	signer, err := signature.NewRandomSigner()
	require.NoError(t, err)
	return signer
}

func signedRequest(t *testing.T, signer *signature.Signer, path string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if signer != nil {
		sig, err := signer.Create(body)
		require.NoError(t, err)
		req.Header.Set(api.SignatureHeader, sig)
	}
	return req
}

// callBody builds a body signed for callName with a fresh nonce and a one minute expiry.
func callBody(t *testing.T, callName string, proof interfaces.Proof) []byte {
	t.Helper()
	body, err := json.Marshal(api.CallRequest{
		Call:    callName,
		Proof:   &proof,
		Nonce:   uuid.NewString(),
		Expires: time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)
	return body
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandler_Scenario(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(slog.New(slog.NewTextHandler(io.Discard, nil))))
	alice := newSigner(t)
	bob := newSigner(t)
	proof := interfaces.Proof("abc123")
	lookupPath := fmt.Sprintf("/api/v1/proofs/%s", proof)

	// Alice registers.
	w := env.do(signedRequest(t, alice, api.CreatePath, callBody(t, api.CallCreate, proof)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created api.CallResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, interfaces.BlockNumber(10), created.BlockNumber)
	require.NotNil(t, created.Event)
	assert.Equal(t, interfaces.EventComplianceCreated, created.Event.Name)
	assert.Equal(t, interfaces.AccountIDFromAddress(alice.Address()), created.Event.Who)

	// Lookup shows Alice at block 10.
	w = env.do(httptest.NewRequest(http.MethodGet, lookupPath, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var record api.ProofResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
	assert.Equal(t, interfaces.AccountIDFromAddress(alice.Address()), record.Owner)
	assert.Equal(t, interfaces.BlockNumber(10), record.CreatedAt)
	assert.Equal(t, proof, record.Proof)

	// Bob cannot claim or revoke it.
	w = env.do(signedRequest(t, bob, api.CreatePath, callBody(t, api.CallCreate, proof)))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, registry.CodeProofAlreadyRegistered, decodeError(t, w).Code)

	w = env.do(signedRequest(t, bob, api.RevokePath, callBody(t, api.CallRevoke, proof)))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, registry.CodeNotOwner, decodeError(t, w).Code)

	// Alice revokes.
	w = env.do(signedRequest(t, alice, api.RevokePath, callBody(t, api.CallRevoke, proof)))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, lookupPath, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, registry.CodeNoSuchProof, decodeError(t, w).Code)

	w = env.do(signedRequest(t, alice, api.RevokePath, callBody(t, api.CallRevoke, proof)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Exactly one event per successful call.
	published := env.recorder.Events()
	require.Len(t, published, 2)
	assert.Equal(t, interfaces.EventComplianceCreated, published[0].Name)
	assert.Equal(t, interfaces.EventComplianceRevoked, published[1].Name)
}

func TestHandler_Authentication(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(slog.New(slog.NewTextHandler(io.Discard, nil))))
	alice := newSigner(t)
	proof := interfaces.Proof("secured")

	t.Run("missing signature", func(t *testing.T) {
		w := env.do(signedRequest(t, nil, api.CreatePath, callBody(t, api.CallCreate, proof)))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, api.CodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("signature over a different body", func(t *testing.T) {
		req := signedRequest(t, alice, api.CreatePath, callBody(t, api.CallCreate, interfaces.Proof("other")))
		req.Body = io.NopCloser(bytes.NewReader(callBody(t, api.CallCreate, proof)))
		w := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed signature", func(t *testing.T) {
		req := signedRequest(t, nil, api.CreatePath, callBody(t, api.CallCreate, proof))
		req.Header.Set(api.SignatureHeader, "not-a-signature")
		w := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	// None of the rejected requests reached the registry.
	w := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/proofs/%s", proof), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, env.recorder.Events())
}

func TestHandler_BadRequests(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(slog.New(slog.NewTextHandler(io.Discard, nil))))
	alice := newSigner(t)

	expires := time.Now().Add(time.Minute).Unix()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid hex", body: fmt.Sprintf(`{"call":"create","proof":"0xzz","nonce":"n1","expires":%d}`, expires)},
		{name: "not json", body: `not json`},
		{name: "empty object", body: `{}`},
		{name: "missing proof", body: fmt.Sprintf(`{"call":"create","nonce":"n2","expires":%d}`, expires)},
		{name: "null proof", body: fmt.Sprintf(`{"call":"create","proof":null,"nonce":"n3","expires":%d}`, expires)},
		{name: "misspelled proof", body: fmt.Sprintf(`{"call":"create","prooof":"0xabc123","nonce":"n4","expires":%d}`, expires)},
		{name: "missing nonce", body: fmt.Sprintf(`{"call":"create","proof":"0xabc123","expires":%d}`, expires)},
		{name: "missing call", body: fmt.Sprintf(`{"proof":"0xabc123","nonce":"n5","expires":%d}`, expires)},
		{name: "expiry too far ahead", body: fmt.Sprintf(`{"call":"create","proof":"0xabc123","nonce":"n6","expires":%d}`, time.Now().Add(time.Hour).Unix())},
		{name: "trailing data", body: fmt.Sprintf(`{"call":"create","proof":"0xabc123","nonce":"n7","expires":%d} {}`, expires)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(signedRequest(t, alice, api.CreatePath, []byte(tt.body)))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, api.CodeBadRequest, decodeError(t, w).Code)
		})
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/proofs/0xabc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nothing was registered, not even the empty proof.
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/proofs/0x", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, env.recorder.Events())
}

func TestHandler_EmptyProofMustBeExplicit(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(slog.New(slog.NewTextHandler(io.Discard, nil))))
	alice := newSigner(t)

	w := env.do(signedRequest(t, alice, api.CreatePath, callBody(t, api.CallCreate, interfaces.Proof{})))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/proofs/0x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_SignedCallsCannotBeReused(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(slog.New(slog.NewTextHandler(io.Discard, nil))))
	alice := newSigner(t)
	proof := interfaces.Proof("abc123")
	lookupPath := fmt.Sprintf("/api/v1/proofs/%s", proof)

	createBody := callBody(t, api.CallCreate, proof)
	createSig, err := alice.Create(createBody)
	require.NoError(t, err)

	resend := func(path string, body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set(api.SignatureHeader, sig)
		return env.do(req)
	}

	w := resend(api.CreatePath, createBody, createSig)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("create body sent to revoke", func(t *testing.T) {
		w := resend(api.RevokePath, createBody, createSig)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, api.CodeBadRequest, decodeError(t, w).Code)

		w = env.do(httptest.NewRequest(http.MethodGet, lookupPath, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	revokeBody := callBody(t, api.CallRevoke, proof)
	revokeSig, err := alice.Create(revokeBody)
	require.NoError(t, err)
	w = resend(api.RevokePath, revokeBody, revokeSig)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("create resent after revoke", func(t *testing.T) {
		w := resend(api.CreatePath, createBody, createSig)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, api.CodeUnauthorized, decodeError(t, w).Code)

		w = env.do(httptest.NewRequest(http.MethodGet, lookupPath, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("revoke resent after another create", func(t *testing.T) {
		w := env.do(signedRequest(t, alice, api.CreatePath, callBody(t, api.CallCreate, proof)))
		require.Equal(t, http.StatusOK, w.Code)

		w = resend(api.RevokePath, revokeBody, revokeSig)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(httptest.NewRequest(http.MethodGet, lookupPath, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("expired call", func(t *testing.T) {
		body, err := json.Marshal(api.CallRequest{
			Call:    api.CallRevoke,
			Proof:   &proof,
			Nonce:   uuid.NewString(),
			Expires: time.Now().Add(-time.Second).Unix(),
		})
		require.NoError(t, err)

		w := env.do(signedRequest(t, alice, api.RevokePath, body))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	// create, revoke, create
	assert.Len(t, env.recorder.Events(), 3)
}

func TestReplayGuard(t *testing.T) {
	guard := newReplayGuard()
	alice := interfaces.AccountID{0xa1}
	bob := interfaces.AccountID{0xb0}
	now := time.Unix(1_700_000_000, 0)

	assert.True(t, guard.claim(alice, "n", now.Add(time.Minute), now))
	assert.False(t, guard.claim(alice, "n", now.Add(time.Minute), now))
	// Nonces are per account.
	assert.True(t, guard.claim(bob, "n", now.Add(time.Minute), now))

	// Expired nonces are swept.
	later := now.Add(2 * time.Minute)
	assert.True(t, guard.claim(alice, "other", later.Add(time.Minute), later))
	assert.Equal(t, 1, guard.size())
}

func TestHandler_StoreUnavailable(t *testing.T) {
	store := registry.NewMockProofStore("down")
	outage := fmt.Errorf("%w: connection refused", interfaces.ErrBackendUnavailable)
	store.On("Get", mock.Anything, mock.Anything).Return(interfaces.ProofRecord{}, outage)
	store.On("Available", mock.Anything).Return(false)

	env := newTestEnv(t, store)
	alice := newSigner(t)

	w := env.do(signedRequest(t, alice, api.CreatePath, callBody(t, api.CallCreate, interfaces.Proof("p"))))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, api.CodeBackendUnavailable, decodeError(t, w).Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/proofs/0x70", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, env.recorder.Events())
}

func TestServer_DrainUndrain(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore(slog.New(slog.NewTextHandler(io.Discard, nil))))

	w := env.do(httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/drain", nil))
	assert.JSONEq(t, `{"status":"draining"}`, w.Body.String())
	w = env.do(httptest.NewRequest(http.MethodGet, "/drain", nil))
	assert.JSONEq(t, `{"status":"already draining"}`, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/undrain", nil))
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{registry.ErrProofAlreadyRegistered, http.StatusConflict},
		{registry.ErrNoSuchProof, http.StatusNotFound},
		{registry.ErrNotOwner, http.StatusForbidden},
		{fmt.Errorf("get: %w", interfaces.ErrBackendUnavailable), http.StatusServiceUnavailable},
		{chain.ErrExecutorStopped, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, classifyError(tt.err).StatusCode, tt.err.Error())
	}
}
