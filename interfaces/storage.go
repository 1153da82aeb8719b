package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrRecordNotFound is returned when a proof has no record in the backend.
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists is returned by Insert when the key is already present.
	ErrRecordExists = errors.New("record already exists")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// ProofStore is the persistent proof -> record mapping owned by the registry.
// Lookups are by exact key only.
type ProofStore interface {
	// Get returns the record for proof, or ErrRecordNotFound.
	Get(ctx context.Context, proof Proof) (ProofRecord, error)

	// Insert stores a record if and only if the proof is absent.
	// Returns ErrRecordExists otherwise, leaving the stored record untouched.
	Insert(ctx context.Context, proof Proof, record ProofRecord) error

	// Delete removes the record for proof, or returns ErrRecordNotFound.
	Delete(ctx context.Context, proof Proof) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string

	// Close releases connections and file handles.
	Close() error
}

// StoreLocation represents URI for a proof store backend.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	User   *url.Userinfo
}

// NewStoreLocation creates a new store location from a URI string with validation.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "memory", "file", "sqlite", "mysql", "redis", "s3", "vault":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}
