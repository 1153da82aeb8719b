package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// MirroredStore wraps an authoritative primary store with best-effort mirrors.
//
// Insert and Delete decide on the primary only; the result is then replayed to the
// mirrors, whose failures are logged and ignored. Get reads the primary and falls back
// to mirrors in order only when the primary is unreachable (a not-found answer from the
// primary is final).
type MirroredStore struct {
	primary interfaces.ProofStore
	mirrors []interfaces.ProofStore
	log     *slog.Logger
}

// NewMirroredStore creates a mirrored store. The first store is the primary.
func NewMirroredStore(stores []interfaces.ProofStore, logger *slog.Logger) (*MirroredStore, error) {
	if len(stores) == 0 {
		return nil, errors.New("mirrored store needs at least one backend")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MirroredStore{
		primary: stores[0],
		mirrors: stores[1:],
		log:     logger,
	}, nil
}

func (m *MirroredStore) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	start := time.Now()

	record, err := m.primary.Get(ctx, proof)
	if err == nil || errors.Is(err, interfaces.ErrRecordNotFound) {
		return record, err
	}

	errs := []error{fmt.Errorf("%s: %w", m.primary.Name(), err)}
	m.log.Warn("Primary store failed, reading from mirrors",
		slog.String("backend_name", m.primary.Name()),
		"err", err)

	for _, mirror := range m.mirrors {
		record, err := mirror.Get(ctx, proof)
		if err == nil || errors.Is(err, interfaces.ErrRecordNotFound) {
			m.log.Info("Served read from mirror",
				slog.String("backend_name", mirror.Name()),
				slog.Duration("duration", time.Since(start)))
			return record, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", mirror.Name(), err))
	}

	m.log.Error("All stores failed to read record",
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return interfaces.ProofRecord{}, fmt.Errorf("%w: all stores failed: %v", interfaces.ErrBackendUnavailable, errors.Join(errs...))
}

func (m *MirroredStore) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	if err := m.primary.Insert(ctx, proof, record); err != nil {
		return err
	}

	for _, mirror := range m.mirrors {
		err := mirror.Insert(ctx, proof, record)
		if err != nil && !errors.Is(err, interfaces.ErrRecordExists) {
			m.log.Warn("Failed to mirror insert",
				slog.String("backend_name", mirror.Name()),
				slog.String("proof", proof.String()),
				"err", err)
		}
	}
	return nil
}

func (m *MirroredStore) Delete(ctx context.Context, proof interfaces.Proof) error {
	if err := m.primary.Delete(ctx, proof); err != nil {
		return err
	}

	for _, mirror := range m.mirrors {
		err := mirror.Delete(ctx, proof)
		if err != nil && !errors.Is(err, interfaces.ErrRecordNotFound) {
			m.log.Warn("Failed to mirror delete",
				slog.String("backend_name", mirror.Name()),
				slog.String("proof", proof.String()),
				"err", err)
		}
	}
	return nil
}

// Available reports whether the primary can serve writes.
func (m *MirroredStore) Available(ctx context.Context) bool {
	return m.primary.Available(ctx)
}

func (m *MirroredStore) Name() string {
	return "mirrored"
}

func (m *MirroredStore) LocationURI() string {
	locations := []string{m.primary.LocationURI()}
	for _, mirror := range m.mirrors {
		locations = append(locations, mirror.LocationURI())
	}
	return "mirrored:[" + strings.Join(locations, ",") + "]"
}

// Close closes every underlying store and returns the joined errors.
func (m *MirroredStore) Close() error {
	errs := []error{m.primary.Close()}
	for _, mirror := range m.mirrors {
		errs = append(errs, mirror.Close())
	}
	return errors.Join(errs...)
}
