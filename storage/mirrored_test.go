package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/ruteri/proof-compliance-registry/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMirroredStore_Get(t *testing.T) {
	ctx := context.Background()
	proof := interfaces.Proof("p")
	record := interfaces.ProofRecord{Owner: interfaces.AccountID{0xa1}, CreatedAt: 3}
	outage := fmt.Errorf("%w: timeout", interfaces.ErrBackendUnavailable)

	tests := []struct {
		name        string
		primaryErr  error
		mirrorSetup func(m *registry.MockProofStore)
		expected    interfaces.ProofRecord
		expectedErr error
	}{
		{
			name:       "primary hit",
			primaryErr: nil,
			expected:   record,
		},
		{
			name:        "primary not found is final",
			primaryErr:  interfaces.ErrRecordNotFound,
			expectedErr: interfaces.ErrRecordNotFound,
		},
		{
			name:       "primary down falls back to mirror",
			primaryErr: outage,
			mirrorSetup: func(m *registry.MockProofStore) {
				m.On("Get", mock.Anything, proof).Return(record, nil)
			},
			expected: record,
		},
		{
			name:       "all down",
			primaryErr: outage,
			mirrorSetup: func(m *registry.MockProofStore) {
				m.On("Get", mock.Anything, proof).Return(interfaces.ProofRecord{}, errors.New("connection refused"))
			},
			expectedErr: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := registry.NewMockProofStore("primary")
			mirror := registry.NewMockProofStore("mirror")

			if tt.primaryErr == nil {
				primary.On("Get", mock.Anything, proof).Return(record, nil)
			} else {
				primary.On("Get", mock.Anything, proof).Return(interfaces.ProofRecord{}, tt.primaryErr)
			}
			if tt.mirrorSetup != nil {
				tt.mirrorSetup(mirror)
			}

			store, err := NewMirroredStore([]interfaces.ProofStore{primary, mirror}, testLogger())
			require.NoError(t, err)

			got, err := store.Get(ctx, proof)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			}

			if tt.mirrorSetup == nil {
				mirror.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
			}
			primary.AssertExpectations(t)
			mirror.AssertExpectations(t)
		})
	}
}

func TestMirroredStore_InsertPrimaryDecides(t *testing.T) {
	ctx := context.Background()
	proof := interfaces.Proof("p")
	record := interfaces.ProofRecord{Owner: interfaces.AccountID{0xa1}, CreatedAt: 3}

	t.Run("primary conflict skips mirrors", func(t *testing.T) {
		primary := registry.NewMockProofStore("primary")
		mirror := registry.NewMockProofStore("mirror")
		primary.On("Insert", mock.Anything, proof, record).Return(interfaces.ErrRecordExists)

		store, err := NewMirroredStore([]interfaces.ProofStore{primary, mirror}, testLogger())
		require.NoError(t, err)

		assert.ErrorIs(t, store.Insert(ctx, proof, record), interfaces.ErrRecordExists)
		mirror.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("mirror failure is ignored", func(t *testing.T) {
		primary := registry.NewMockProofStore("primary")
		mirror := registry.NewMockProofStore("mirror")
		primary.On("Insert", mock.Anything, proof, record).Return(nil)
		mirror.On("Insert", mock.Anything, proof, record).Return(errors.New("disk full"))

		store, err := NewMirroredStore([]interfaces.ProofStore{primary, mirror}, testLogger())
		require.NoError(t, err)

		assert.NoError(t, store.Insert(ctx, proof, record))
		mirror.AssertExpectations(t)
	})

	t.Run("delete replays to mirrors", func(t *testing.T) {
		primary := registry.NewMockProofStore("primary")
		mirror := registry.NewMockProofStore("mirror")
		primary.On("Delete", mock.Anything, proof).Return(nil)
		mirror.On("Delete", mock.Anything, proof).Return(interfaces.ErrRecordNotFound)

		store, err := NewMirroredStore([]interfaces.ProofStore{primary, mirror}, testLogger())
		require.NoError(t, err)

		assert.NoError(t, store.Delete(ctx, proof))
		mirror.AssertExpectations(t)
	})
}

func TestMirroredStore_WithRealStores(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(testLogger())
	mirror, err := NewFileBackend(t.TempDir(), testLogger())
	require.NoError(t, err)

	store, err := NewMirroredStore([]interfaces.ProofStore{primary, mirror}, testLogger())
	require.NoError(t, err)

	record := interfaces.ProofRecord{Owner: interfaces.AccountID{0xa1}, CreatedAt: 9}
	require.NoError(t, store.Insert(ctx, interfaces.Proof("x"), record))

	got, err := mirror.Get(ctx, interfaces.Proof("x"))
	require.NoError(t, err)
	assert.Equal(t, record, got)

	require.NoError(t, store.Delete(ctx, interfaces.Proof("x")))
	_, err = mirror.Get(ctx, interfaces.Proof("x"))
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	assert.Contains(t, store.LocationURI(), "memory://")
	assert.NoError(t, store.Close())
}

func TestNewMirroredStore_Empty(t *testing.T) {
	_, err := NewMirroredStore(nil, testLogger())
	assert.Error(t, err)
}
