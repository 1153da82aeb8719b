package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flashbots/go-utils/signature"
	"github.com/google/uuid"
	"github.com/ruteri/proof-compliance-registry/api"
	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/ruteri/proof-compliance-registry/registry"
	"github.com/stretchr/testify/mock"
)

// ErrUnauthorized is returned when the server rejects the request signature.
var ErrUnauthorized = errors.New("request signature rejected")

// HTTPError is a non-2xx response that does not map to a registry error.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry returned %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
}

var _ api.RegistryProvider = (*RegistryClient)(nil)

// RegistryClient calls the registry API, signing state-changing requests with the
// caller's key. The signer's address is the account that owns created proofs.
type RegistryClient struct {
	baseURL    string
	signer     *signature.Signer
	httpClient *http.Client
	requestTTL time.Duration
}

// NewRegistryClient creates a client for the server at baseURL (e.g. "http://localhost:8080").
// signer may be nil for read-only use.
func NewRegistryClient(baseURL string, signer *signature.Signer, timeout ...time.Duration) *RegistryClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &RegistryClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: clientTimeout},
		requestTTL: api.DefaultRequestTTL,
	}
}

// Account returns the account the client acts as.
func (c *RegistryClient) Account() interfaces.AccountID {
	if c.signer == nil {
		return interfaces.AccountID{}
	}
	return interfaces.AccountIDFromAddress(c.signer.Address())
}

// Create registers proof for the client's account.
func (c *RegistryClient) Create(ctx context.Context, proof interfaces.Proof) (*api.CallResponse, error) {
	return c.call(ctx, api.CreatePath, api.CallCreate, proof)
}

// Revoke revokes proof if the client's account owns it.
func (c *RegistryClient) Revoke(ctx context.Context, proof interfaces.Proof) (*api.CallResponse, error) {
	return c.call(ctx, api.RevokePath, api.CallRevoke, proof)
}

// Lookup fetches the record of proof. Returns registry.ErrNoSuchProof if it is not registered.
func (c *RegistryClient) Lookup(ctx context.Context, proof interfaces.Proof) (*api.ProofResponse, error) {
	url := c.baseURL + strings.Replace(api.LookupPath, "{proof}", proof.String(), 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var result api.ProofResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call signs a body naming the call, with a fresh nonce, so the signature cannot be replayed
// on the other route or after it expires.
func (c *RegistryClient) call(ctx context.Context, path, callName string, proof interfaces.Proof) (*api.CallResponse, error) {
	if c.signer == nil {
		return nil, errors.New("client has no signing key")
	}

	body, err := json.Marshal(api.CallRequest{
		Call:    callName,
		Proof:   &proof,
		Nonce:   uuid.NewString(),
		Expires: time.Now().Add(c.requestTTL).Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	sig, err := c.signer.Create(body)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, sig)

	var result api.CallResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *RegistryClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeError turns an error response back into a registry sentinel where possible.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodySize))

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if domainErr, ok := registry.ErrorFromCode(errResp.Code); ok {
		return domainErr
	}
	if errResp.Code == api.CodeUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, errResp.Message)
	}
	if errResp.Code == api.CodeBackendUnavailable {
		return fmt.Errorf("%w: %s", interfaces.ErrBackendUnavailable, errResp.Message)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Message}
}

// MockRegistryProvider implements api.RegistryProvider for testing.
type MockRegistryProvider struct {
	mock.Mock
}

func (m *MockRegistryProvider) Create(ctx context.Context, proof interfaces.Proof) (*api.CallResponse, error) {
	args := m.Called(ctx, proof)
	resp, _ := args.Get(0).(*api.CallResponse)
	return resp, args.Error(1)
}

func (m *MockRegistryProvider) Revoke(ctx context.Context, proof interfaces.Proof) (*api.CallResponse, error) {
	args := m.Called(ctx, proof)
	resp, _ := args.Get(0).(*api.CallResponse)
	return resp, args.Error(1)
}

func (m *MockRegistryProvider) Lookup(ctx context.Context, proof interfaces.Proof) (*api.ProofResponse, error) {
	args := m.Called(ctx, proof)
	resp, _ := args.Get(0).(*api.ProofResponse)
	return resp, args.Error(1)
}
