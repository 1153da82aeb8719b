package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault serves the subset of a KV v2 mount at /v1/secret used by VaultBackend,
// including cas=0 writes.
type fakeVault struct {
	mu      sync.Mutex
	secrets map[string]map[string]interface{}

	// failWith, when set, is returned for every request with a non-CAS error.
	failWith int
	sealed   bool
}

func newFakeVault() *fakeVault {
	return &fakeVault{secrets: map[string]map[string]interface{}{}}
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/v1/sys/health" {
		writeVaultJSON(w, http.StatusOK, map[string]interface{}{"initialized": true, "sealed": f.sealed, "standby": false})
		return
	}
	if f.failWith != 0 {
		writeVaultJSON(w, f.failWith, map[string]interface{}{"errors": []string{"permission denied"}})
		return
	}
	if r.Header.Get("X-Vault-Token") != "test-token" {
		writeVaultJSON(w, http.StatusForbidden, map[string]interface{}{"errors": []string{"missing client token"}})
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/v1/secret/data/"):
		name := strings.TrimPrefix(r.URL.Path, "/v1/secret/data/")
		switch r.Method {
		case http.MethodGet:
			data, ok := f.secrets[name]
			if !ok {
				writeVaultJSON(w, http.StatusNotFound, map[string]interface{}{"errors": []string{}})
				return
			}
			writeVaultJSON(w, http.StatusOK, map[string]interface{}{
				"data": map[string]interface{}{"data": data, "metadata": map[string]interface{}{"version": 1}},
			})
		case http.MethodPut, http.MethodPost:
			var body struct {
				Options map[string]interface{} `json:"options"`
				Data    map[string]interface{} `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeVaultJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": []string{err.Error()}})
				return
			}
			if _, exists := f.secrets[name]; exists && body.Options["cas"] != nil {
				writeVaultJSON(w, http.StatusBadRequest, map[string]interface{}{
					"errors": []string{"check-and-set parameter did not match the current version"},
				})
				return
			}
			f.secrets[name] = body.Data
			writeVaultJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"version": 1}})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/v1/secret/metadata/") && r.Method == http.MethodDelete:
		delete(f.secrets, strings.TrimPrefix(r.URL.Path, "/v1/secret/metadata/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		writeVaultJSON(w, http.StatusNotFound, map[string]interface{}{"errors": []string{}})
	}
}

func writeVaultJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func newTestVaultBackend(t *testing.T, fake *fakeVault) *VaultBackend {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewVaultBackend(VaultConfig{
		Address:   srv.URL,
		MountPath: "secret",
		DataPath:  "proofs",
		Token:     "test-token",
	}, testLogger())
	require.NoError(t, err)
	return store
}

func TestVaultBackend(t *testing.T) {
	runStoreContract(t, func(t *testing.T) interfaces.ProofStore {
		return newTestVaultBackend(t, newFakeVault())
	})
}

func TestVaultBackend_SecretLayout(t *testing.T) {
	fake := newFakeVault()
	store := newTestVaultBackend(t, fake)
	proof := interfaces.Proof("layout")

	require.NoError(t, store.Insert(context.Background(), proof, interfaces.ProofRecord{Owner: interfaces.AccountID{0xa1}, CreatedAt: 3}))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Contains(t, fake.secrets, "proofs/"+objectName(proof))
	assert.Contains(t, fake.secrets["proofs/"+objectName(proof)], "record")
}

func TestVaultBackend_Unavailable(t *testing.T) {
	ctx := context.Background()
	fake := newFakeVault()
	store := newTestVaultBackend(t, fake)
	proof := interfaces.Proof("p")
	require.NoError(t, store.Insert(ctx, proof, interfaces.ProofRecord{Owner: interfaces.AccountID{0xa1}, CreatedAt: 1}))

	fake.mu.Lock()
	fake.failWith = http.StatusForbidden
	fake.sealed = true
	fake.mu.Unlock()

	_, err := store.Get(ctx, proof)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	assert.ErrorIs(t, store.Insert(ctx, interfaces.Proof("q"), interfaces.ProofRecord{}), interfaces.ErrBackendUnavailable)
	assert.ErrorIs(t, store.Delete(ctx, proof), interfaces.ErrBackendUnavailable)
	assert.False(t, store.Available(ctx))
}

func TestIsCASMismatch(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"cas mismatch", &api.ResponseError{StatusCode: http.StatusBadRequest, Errors: []string{"check-and-set parameter did not match the current version"}}, true},
		{"other bad request", &api.ResponseError{StatusCode: http.StatusBadRequest, Errors: []string{"invalid path"}}, false},
		{"forbidden", &api.ResponseError{StatusCode: http.StatusForbidden, Errors: []string{"check-and-set"}}, false},
		{"not a response error", assert.AnError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCASMismatch(tt.err))
		})
	}
}
