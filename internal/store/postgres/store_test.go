package postgres

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/hostident/internal/identity"
	"github.com/wolfeidau/hostident/internal/provision"
	"github.com/wolfeidau/hostident/internal/store"
)

var (
	_ store.Store         = (*Store)(nil)
	_ provision.Persister = (*Store)(nil)
)

func TestLoadMigrations(t *testing.T) {
	t.Run("embedded migrations", func(t *testing.T) {
		migrations, err := loadMigrations(migrationsFS)
		require.NoError(t, err)
		require.NotEmpty(t, migrations)
		require.Equal(t, 1, migrations[0].version)
		require.Contains(t, migrations[0].content, "host_identities")
	})

	t.Run("ordered by version and skips bad names", func(t *testing.T) {
		fsys := fstest.MapFS{
			"migrations/10_later.sql":  {Data: []byte("SELECT 10")},
			"migrations/2_second.sql":  {Data: []byte("SELECT 2")},
			"migrations/1_first.sql":   {Data: []byte("SELECT 1")},
			"migrations/noversion.sql": {Data: []byte("SELECT 0")},
			"migrations/x_bad.sql":     {Data: []byte("SELECT 0")},
			"migrations/README.md":     {Data: []byte("docs")},
		}

		migrations, err := loadMigrations(fsys)
		require.NoError(t, err)
		require.Len(t, migrations, 3)
		require.Equal(t, []int{1, 2, 10}, []int{migrations[0].version, migrations[1].version, migrations[2].version})
	})
}

func TestMapPostgresError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		require.NoError(t, mapPostgresError(nil))
	})

	t.Run("no rows", func(t *testing.T) {
		require.ErrorIs(t, mapPostgresError(pgx.ErrNoRows), store.ErrIdentityNotFound)
	})

	t.Run("primary key violation", func(t *testing.T) {
		err := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "host_identities_pkey"}
		require.ErrorIs(t, mapPostgresError(err), store.ErrIdentityExists)
	})

	t.Run("check violation keeps the cause", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "host_identities_blobs_not_empty"}
		err := mapPostgresError(pgErr)
		require.ErrorIs(t, err, pgErr)
		require.Contains(t, err.Error(), "host_identities_blobs_not_empty")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("boom")
		require.Equal(t, cause, mapPostgresError(cause))
	})
}

func TestPoolConfig(t *testing.T) {
	t.Run("requires connection string", func(t *testing.T) {
		cfg := &PoolConfig{}
		cfg.ApplyDefaults()
		require.Error(t, cfg.Validate())
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := &PoolConfig{ConnString: "postgres://localhost/test"}
		cfg.ApplyDefaults()
		require.NoError(t, cfg.Validate())
		require.Equal(t, int32(2), cfg.MaxConns)
		require.Equal(t, 10*time.Second, cfg.ConnectTimeout)
		require.Equal(t, "hostident", cfg.ApplicationName)
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		cfg := &PoolConfig{ConnString: "postgres://localhost/test", MaxConns: 5, ConnectTimeout: time.Second, ApplicationName: "provisioner"}
		cfg.ApplyDefaults()
		require.Equal(t, int32(5), cfg.MaxConns)
		require.Equal(t, time.Second, cfg.ConnectTimeout)
		require.Equal(t, "provisioner", cfg.ApplicationName)
	})

	t.Run("negative values", func(t *testing.T) {
		cfg := &PoolConfig{ConnString: "postgres://localhost/test", MaxConns: -1}
		require.ErrorContains(t, cfg.Validate(), "max conns")

		cfg = &PoolConfig{ConnString: "postgres://localhost/test", MaxConns: 1, ConnectTimeout: -time.Second}
		require.ErrorContains(t, cfg.Validate(), "connect timeout")
	})

	t.Run("invalid connection string", func(t *testing.T) {
		_, err := NewPool(context.Background(), &PoolConfig{ConnString: "postgres://%zz"})
		require.ErrorContains(t, err, "failed to parse connection string")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewPool(context.Background(), nil)
		require.Error(t, err)
	})
}

func TestStorePersistValidates(t *testing.T) {
	s := &Store{cfg: StoreConfig{Name: "default"}}

	err := s.Persist(context.Background(), identity.New("", "", "hk", "rc", "hc"))
	require.ErrorIs(t, err, identity.ErrIncomplete)
	require.Equal(t, "postgres:host_identities/default", s.Location())
}

func TestNullable(t *testing.T) {
	require.Nil(t, nullable(""))
	require.Equal(t, "HOST", *nullable("HOST"))
}
