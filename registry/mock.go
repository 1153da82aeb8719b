package registry

import (
	"context"

	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockProofStore mocks the ProofStore interface
type MockProofStore struct {
	mock.Mock
	name string
}

// NewMockProofStore creates a named mock store
func NewMockProofStore(name string) *MockProofStore {
	return &MockProofStore{name: name}
}

// Get mocks the Get method
func (m *MockProofStore) Get(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	args := m.Called(ctx, proof)
	return args.Get(0).(interfaces.ProofRecord), args.Error(1)
}

// Insert mocks the Insert method
func (m *MockProofStore) Insert(ctx context.Context, proof interfaces.Proof, record interfaces.ProofRecord) error {
	args := m.Called(ctx, proof, record)
	return args.Error(0)
}

// Delete mocks the Delete method
func (m *MockProofStore) Delete(ctx context.Context, proof interfaces.Proof) error {
	args := m.Called(ctx, proof)
	return args.Error(0)
}

// Available mocks the Available method
func (m *MockProofStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockProofStore) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *MockProofStore) LocationURI() string {
	return "mock://" + m.Name()
}

func (m *MockProofStore) Close() error {
	return nil
}

// MockEventSink mocks the EventSink interface
type MockEventSink struct {
	mock.Mock
	name string
}

// NewMockEventSink creates a named mock sink
func NewMockEventSink(name string) *MockEventSink {
	return &MockEventSink{name: name}
}

// Publish mocks the Publish method
func (m *MockEventSink) Publish(ctx context.Context, record interfaces.EventRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockEventSink) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

// Close mocks the Close method
func (m *MockEventSink) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockBlockSource mocks the BlockSource interface
type MockBlockSource struct {
	mock.Mock
}

// Next mocks the Next method
func (m *MockBlockSource) Next(ctx context.Context, current interfaces.BlockNumber) (interfaces.BlockNumber, error) {
	args := m.Called(ctx, current)
	return args.Get(0).(interfaces.BlockNumber), args.Error(1)
}

func (m *MockBlockSource) Name() string {
	return "mock"
}
