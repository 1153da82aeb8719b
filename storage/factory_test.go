package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFactory_StoreFor(t *testing.T) {
	ctx := context.Background()
	factory := NewStoreFactory(testLogger())
	dir := t.TempDir()

	tests := []struct {
		name         string
		uri          string
		expectedType interface{}
		expectErr    bool
	}{
		{name: "memory", uri: "memory://", expectedType: &MemoryStore{}},
		{name: "file", uri: "file://" + dir, expectedType: &FileBackend{}},
		{name: "sqlite", uri: "sqlite://" + filepath.Join(dir, "proofs.db"), expectedType: &SQLiteBackend{}},
		{name: "s3", uri: "s3://bucket/prefix?region=eu-west-1", expectedType: &S3Backend{}},
		{name: "vault", uri: "vault://token@vault.local:8200/secret/proofs?insecure=true", expectedType: &VaultBackend{}},
		{name: "file without path", uri: "file://", expectErr: true},
		{name: "mysql without database", uri: "mysql://user:pass@db:3306", expectErr: true},
		{name: "redis without host", uri: "redis:///0", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := interfaces.NewStoreLocation(tt.uri)
			require.NoError(t, err)

			store, err := factory.StoreFor(ctx, location)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			assert.IsType(t, tt.expectedType, store)
		})
	}
}

func TestStoreFactory_VaultPaths(t *testing.T) {
	factory := NewStoreFactory(testLogger())
	location, err := interfaces.NewStoreLocation("vault://s.abc@vault.local:8200/kv/registry/proofs")
	require.NoError(t, err)

	store, err := factory.StoreFor(context.Background(), location)
	require.NoError(t, err)

	vault := store.(*VaultBackend)
	assert.Equal(t, "kv", vault.mountPath)
	assert.Equal(t, "registry/proofs", vault.dataPath)
	assert.Equal(t, "s.abc", vault.client.Token())
	assert.Equal(t, "kv/data/registry/proofs/"+objectName(interfaces.Proof("x")), vault.secretPath("data", interfaces.Proof("x")))
}

func TestStoreFactory_CreateMirroredStore(t *testing.T) {
	ctx := context.Background()
	factory := NewStoreFactory(testLogger())
	dir := t.TempDir()

	t.Run("single location is returned as is", func(t *testing.T) {
		store, err := factory.CreateMirroredStore(ctx, []string{"memory://"})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("broken mirror is skipped", func(t *testing.T) {
		store, err := factory.CreateMirroredStore(ctx, []string{"memory://", "file://", "file://" + dir})
		require.NoError(t, err)

		mirrored, ok := store.(*MirroredStore)
		require.True(t, ok)
		assert.Len(t, mirrored.mirrors, 1)
	})

	t.Run("broken primary fails", func(t *testing.T) {
		_, err := factory.CreateMirroredStore(ctx, []string{"ftp://nowhere", "memory://"})
		assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
	})

	t.Run("no locations", func(t *testing.T) {
		_, err := factory.CreateMirroredStore(ctx, nil)
		assert.Error(t, err)
	})
}
