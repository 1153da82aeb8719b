package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// FileBackend implements a proof store using the local file system.
// Each record is one JSON file named after the SHA-256 of its proof, sharded by the
// first byte of the name.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file proof store rooted at baseDir.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	proofsDir := filepath.Join(baseDir, "proofs")
	if err := os.MkdirAll(proofsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create proofs directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Get reads the record for proof. Returns ErrRecordNotFound if the file doesn't exist.
func (b *FileBackend) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	filePath := b.getFilePath(proof)

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return interfaces.ProofRecord{}, interfaces.ErrRecordNotFound
	}
	if err != nil {
		return interfaces.ProofRecord{}, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return decodeRecord(proof, data)
}

// Insert writes the record to a temporary file and hard-links it into place. The link
// fails if the target exists, which makes the insert atomic for concurrent writers.
func (b *FileBackend) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	data, err := encodeRecord(proof, record)
	if err != nil {
		return err
	}

	filePath := b.getFilePath(proof)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Link(tmp.Name(), filePath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return interfaces.ErrRecordExists
		}
		return fmt.Errorf("failed to link record file: %w", err)
	}

	b.log.Debug("Stored record in file",
		slog.String("path", filePath),
		slog.String("proof", proof.String()))

	return nil
}

// Delete removes the record file. Returns ErrRecordNotFound if it doesn't exist.
func (b *FileBackend) Delete(ctx context.Context, proof interfaces.Proof) error {
	filePath := b.getFilePath(proof)

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return interfaces.ErrRecordNotFound
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}

	b.log.Debug("Removed record file", slog.String("path", filePath))
	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) Close() error {
	return nil
}

// getFilePath generates a file path for a proof.
func (b *FileBackend) getFilePath(proof interfaces.Proof) string {
	name := objectName(proof)
	return filepath.Join(b.baseDir, "proofs", name[:2], name+".json")
}
