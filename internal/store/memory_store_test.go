package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/hostident/internal/identity"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load before persist", func(t *testing.T) {
		_, err := NewMemoryStore(false).Load(ctx)
		require.ErrorIs(t, err, ErrIdentityNotFound)
	})

	t.Run("stores a copy", func(t *testing.T) {
		s := NewMemoryStore(false)
		id := testIdentity("HOST-1")

		require.NoError(t, s.Persist(ctx, id))
		id.Wipe()

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, testIdentity("HOST-1"), got)
		require.Equal(t, 1, s.Writes())
	})

	t.Run("load returns a copy", func(t *testing.T) {
		s := NewMemoryStore(false)
		require.NoError(t, s.Persist(ctx, testIdentity("")))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		got.Wipe()

		again, err := s.Load(ctx)
		require.NoError(t, err)
		require.NoError(t, again.Complete())
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		s := NewMemoryStore(false)
		require.NoError(t, s.Persist(ctx, testIdentity("")))
		require.ErrorIs(t, s.Persist(ctx, testIdentity("")), ErrIdentityExists)
		require.Equal(t, 1, s.Writes())
	})

	t.Run("overwrite", func(t *testing.T) {
		s := NewMemoryStore(true)
		require.NoError(t, s.Persist(ctx, testIdentity("A")))
		require.NoError(t, s.Persist(ctx, testIdentity("B")))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "B", got.HostID)
		require.Equal(t, 2, s.Writes())
	})

	t.Run("incomplete identity", func(t *testing.T) {
		s := NewMemoryStore(false)
		require.ErrorIs(t, s.Persist(ctx, identity.New("", "", "", "", "")), identity.ErrIncomplete)
		require.Zero(t, s.Writes())
	})

	t.Run("delete", func(t *testing.T) {
		s := NewMemoryStore(false)
		require.ErrorIs(t, s.Delete(ctx), ErrIdentityNotFound)

		require.NoError(t, s.Persist(ctx, testIdentity("")))
		require.NoError(t, s.Delete(ctx))

		_, err := s.Load(ctx)
		require.ErrorIs(t, err, ErrIdentityNotFound)

		// a deleted identity no longer blocks a new one
		require.NoError(t, s.Persist(ctx, testIdentity("B")))
	})
}
