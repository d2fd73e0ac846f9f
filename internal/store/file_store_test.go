package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/hostident/internal/identity"
)

func TestNewFileStore(t *testing.T) {
	t.Run("creates directory with correct permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "hostident")

		s, err := NewFileStore(FileStoreConfig{Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "identity.yaml"), s.Location())

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
	})

	t.Run("uses default directory when dir is empty", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		s, err := NewFileStore(FileStoreConfig{})
		require.NoError(t, err)
		assert.Contains(t, s.Location(), filepath.Join(".config", "hostident"))
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load before persist", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)

		_, err = s.Load(ctx)
		require.ErrorIs(t, err, ErrIdentityNotFound)
	})

	t.Run("persist and load", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)

		require.NoError(t, s.Persist(ctx, testIdentity("HOST-1")))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, testIdentity("HOST-1"), got)
	})

	t.Run("file is private and well formed", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)
		s.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

		require.NoError(t, s.Persist(ctx, testIdentity("")))

		info, err := os.Stat(s.Location())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		data, err := os.ReadFile(s.Location())
		require.NoError(t, err)

		assert.NotContains(t, string(data), "host_id")

		var doc identityDocument
		require.NoError(t, yaml.Unmarshal(data, &doc))
		assert.Equal(t, 1, doc.Version)
		assert.Equal(t, "cm9vdC1rZXk=", doc.RootPrivateKey)
		assert.Equal(t, "aG9zdC1jZXJ0", doc.HostCert)
		assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), doc.CreatedAt)

		leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.Location()), "identity-*.yaml"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("stale temp files do not widen permissions", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore(FileStoreConfig{Dir: dir})
		require.NoError(t, err)

		stale := filepath.Join(dir, "identity.yaml.tmp")
		require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))
		require.NoError(t, os.Chmod(stale, 0644))

		require.NoError(t, s.Persist(ctx, testIdentity("HOST-1")))

		info, err := os.Stat(s.Location())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, testIdentity("HOST-1"), got)
	})

	t.Run("refuses to overwrite by default", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)

		require.NoError(t, s.Persist(ctx, testIdentity("HOST-1")))
		require.ErrorIs(t, s.Persist(ctx, testIdentity("HOST-2")), ErrIdentityExists)

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "HOST-1", got.HostID)
	})

	t.Run("overwrite replaces identity", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore(FileStoreConfig{Dir: dir, Overwrite: true})
		require.NoError(t, err)

		require.NoError(t, s.Persist(ctx, testIdentity("HOST-1")))
		require.NoError(t, s.Persist(ctx, testIdentity("HOST-2")))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "HOST-2", got.HostID)
	})

	t.Run("incomplete identity is not written", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)

		err = s.Persist(ctx, identity.New("", "a", "b", "", "d"))
		require.ErrorIs(t, err, identity.ErrIncomplete)

		_, err = os.Stat(s.Location())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("unsupported version", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.Location(), []byte("version: 7\n"), 0600))

		_, err = s.Load(ctx)
		require.ErrorContains(t, err, "unsupported identity file version 7")
	})

	t.Run("corrupt file", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.Location(), []byte("version: [\n"), 0600))

		_, err = s.Load(ctx)
		require.ErrorContains(t, err, "failed to parse identity")
	})

	t.Run("delete", func(t *testing.T) {
		s, err := NewFileStore(FileStoreConfig{Dir: t.TempDir()})
		require.NoError(t, err)

		require.ErrorIs(t, s.Delete(ctx), ErrIdentityNotFound)
		require.NoError(t, s.Persist(ctx, testIdentity("")))
		require.NoError(t, s.Delete(ctx))

		_, err = s.Load(ctx)
		require.ErrorIs(t, err, ErrIdentityNotFound)
	})
}
