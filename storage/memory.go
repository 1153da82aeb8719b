package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// MemoryStore keeps the proof mapping in process memory. It starts empty (genesis) and
// is lost on restart; used for tests and single-process deployments without durability.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]interfaces.ProofRecord
	log     *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(log *slog.Logger) *MemoryStore {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryStore{
		records: make(map[string]interfaces.ProofRecord),
		log:     log,
	}
}

func (s *MemoryStore) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[string(proof)]
	if !ok {
		return interfaces.ProofRecord{}, interfaces.ErrRecordNotFound
	}
	return record, nil
}

func (s *MemoryStore) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[string(proof)]; ok {
		return interfaces.ErrRecordExists
	}
	s.records[string(proof)] = record
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, proof interfaces.Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[string(proof)]; !ok {
		return interfaces.ErrRecordNotFound
	}
	delete(s.records, string(proof))
	return nil
}

func (s *MemoryStore) Available(ctx context.Context) bool {
	return true
}

func (s *MemoryStore) Name() string {
	return "memory"
}

func (s *MemoryStore) LocationURI() string {
	return "memory://"
}

func (s *MemoryStore) Close() error {
	return nil
}
