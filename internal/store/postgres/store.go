package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/hostident/internal/identity"
)

const (
	insertIdentitySQL = `
		INSERT INTO host_identities (name, host_id, root_key, host_key, root_cert, host_cert)
		VALUES ($1, $2, $3, $4, $5, $6)`

	upsertIdentitySQL = insertIdentitySQL + `
		ON CONFLICT (name) DO UPDATE SET
			host_id    = EXCLUDED.host_id,
			root_key   = EXCLUDED.root_key,
			host_key   = EXCLUDED.host_key,
			root_cert  = EXCLUDED.root_cert,
			host_cert  = EXCLUDED.host_cert,
			updated_at = now()`

	selectIdentitySQL = `
		SELECT host_id, root_key, host_key, root_cert, host_cert
		FROM host_identities
		WHERE name = $1`

	deleteIdentitySQL = `DELETE FROM host_identities WHERE name = $1`
)

// StoreConfig holds identity-specific configuration for the PostgreSQL store.
// Pool configuration is handled separately via PoolConfig.
type StoreConfig struct {
	// Name is the row key. Default: "default"
	Name string

	// Overwrite replaces an existing identity instead of returning store.ErrIdentityExists.
	Overwrite bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
}

// Store keeps the identity in the host_identities table.
type Store struct {
	pool *pgxpool.Pool
	cfg  StoreConfig
	// owned pools are closed by Close
	owned bool
}

// NewStore wraps an existing pool and applies pending migrations.
func NewStore(ctx context.Context, pool *pgxpool.Pool, cfg StoreConfig) (*Store, error) {
	cfg.ApplyDefaults()

	if err := runMigrations(ctx, pool); err != nil {
		return nil, err
	}

	return &Store{pool: pool, cfg: cfg}, nil
}

// Open creates a pool from poolCfg and returns a store that closes it on Close.
func Open(ctx context.Context, poolCfg *PoolConfig, cfg StoreConfig) (*Store, error) {
	pool, err := NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	s, err := NewStore(ctx, pool, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true

	return s, nil
}

// Close releases the pool if the store created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}

// Location returns the identity row name.
func (s *Store) Location() string {
	return "postgres:host_identities/" + s.cfg.Name
}

// Persist writes the identity row inside a transaction.
func (s *Store) Persist(ctx context.Context, id *identity.Identity) error {
	if err := id.Complete(); err != nil {
		return err
	}

	query := insertIdentitySQL
	if s.cfg.Overwrite {
		query = upsertIdentitySQL
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			s.cfg.Name,
			nullable(id.HostID),
			id.RootKey.String(),
			id.HostKey.String(),
			id.RootCert.String(),
			id.HostCert.String(),
		)
		return err
	})
	if err != nil {
		return mapPostgresError(err)
	}

	log.Info().Str("name", s.cfg.Name).Msg("identity saved to postgres")

	return nil
}

// Load reads the identity row.
func (s *Store) Load(ctx context.Context) (*identity.Identity, error) {
	var (
		hostID                               *string
		rootKey, hostKey, rootCert, hostCert string
	)

	err := s.pool.QueryRow(ctx, selectIdentitySQL, s.cfg.Name).
		Scan(&hostID, &rootKey, &hostKey, &rootCert, &hostCert)
	if err != nil {
		return nil, mapPostgresError(err)
	}

	var id string
	if hostID != nil {
		id = *hostID
	}

	return identity.New(id, rootKey, hostKey, rootCert, hostCert), nil
}

// Delete removes the identity row.
func (s *Store) Delete(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, deleteIdentitySQL, s.cfg.Name)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", s.cfg.Name, mapPostgresError(pgx.ErrNoRows))
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
