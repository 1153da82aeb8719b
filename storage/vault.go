package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// VaultConfig describes a KV v2 mount used as a proof store.
type VaultConfig struct {
	Address   string // e.g. https://vault.example.com:8200
	MountPath string // KV v2 mount, e.g. "secret"
	DataPath  string // path within the mount, e.g. "proofs"
	Token     string // falls back to VAULT_TOKEN

	// Optional TLS client authentication.
	CACert     string
	ClientCert string
	ClientKey  string
}

// VaultBackend implements a proof store on a HashiCorp Vault KV v2 mount.
// Inserts use check-and-set with version 0, so Vault itself rejects duplicates.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a Vault client for the given mount.
func NewVaultBackend(cfg VaultConfig, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.Timeout = 30 * time.Second

	if cfg.CACert != "" || cfg.ClientCert != "" {
		err := config.ConfigureTLS(&api.TLSConfig{
			CACert:     cfg.CACert,
			ClientCert: cfg.ClientCert,
			ClientKey:  cfg.ClientKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mountPath := strings.Trim(cfg.MountPath, "/")
	if mountPath == "" {
		mountPath = "secret"
	}
	dataPath := strings.Trim(cfg.DataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(cfg.Address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Get reads the latest version of the record secret.
func (b *VaultBackend) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	start := time.Now()
	path := b.secretPath("data", proof)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return interfaces.ProofRecord{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return interfaces.ProofRecord{}, interfaces.ErrRecordNotFound
	}

	// KV v2 wraps the payload; a deleted version reads back with nil data.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		return interfaces.ProofRecord{}, interfaces.ErrRecordNotFound
	}

	content, ok := data["record"].(string)
	if !ok {
		b.log.Error("Invalid record format in Vault data",
			slog.String("path", path))
		return interfaces.ProofRecord{}, errors.New("record key not found in Vault data")
	}

	b.log.Debug("Fetched record from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return decodeRecord(proof, []byte(content))
}

// Insert writes the record with cas=0, which only succeeds if the secret has no versions.
func (b *VaultBackend) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	path := b.secretPath("data", proof)

	encoded, err := encodeRecord(proof, record)
	if err != nil {
		return err
	}

	_, err = b.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"options": map[string]interface{}{
			"cas": 0,
		},
		"data": map[string]interface{}{
			"record": string(encoded),
		},
	})
	if err != nil {
		if isCASMismatch(err) {
			return interfaces.ErrRecordExists
		}
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored record in Vault", slog.String("path", path))
	return nil
}

// Delete removes the metadata and all versions of the record, so a later Insert with
// cas=0 can succeed again.
func (b *VaultBackend) Delete(ctx context.Context, proof interfaces.Proof) error {
	if _, err := b.Get(ctx, proof); err != nil {
		return err
	}

	path := b.secretPath("metadata", proof)
	if _, err := b.client.Logical().DeleteWithContext(ctx, path); err != nil {
		b.log.Error("Failed to delete from Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	return nil
}

// Available checks if the Vault server is reachable and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	health, err := b.client.Sys().HealthWithContext(ctx)
	if err != nil {
		b.log.Warn("Vault backend unavailable", "err", err)
		return false
	}
	return health.Initialized && !health.Sealed
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) Close() error {
	return nil
}

// secretPath builds a KV v2 path; kind is "data" or "metadata".
func (b *VaultBackend) secretPath(kind string, proof interfaces.Proof) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/%s/%s", b.mountPath, kind, objectName(proof))
	}
	return fmt.Sprintf("%s/%s/%s/%s", b.mountPath, kind, b.dataPath, objectName(proof))
}

func isCASMismatch(err error) bool {
	var respErr *api.ResponseError
	if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusBadRequest {
		return false
	}
	for _, msg := range respErr.Errors {
		if strings.Contains(msg, "check-and-set") {
			return true
		}
	}
	return false
}
