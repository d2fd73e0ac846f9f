package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/hostident/internal/identity"
)

const (
	identityFileName    = "identity.yaml"
	identityFileVersion = 1
)

// identityDocument is the on-disk layout of the identity file.
type identityDocument struct {
	Version        int       `yaml:"version"`
	HostID         string    `yaml:"host_id,omitempty"`
	RootPrivateKey string    `yaml:"root_private_key"`
	HostPrivateKey string    `yaml:"host_private_key"`
	RootCert       string    `yaml:"root_certificate"`
	HostCert       string    `yaml:"host_certificate"`
	CreatedAt      time.Time `yaml:"created_at"`
}

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Dir holds identity.yaml. Defaults to ~/.config/hostident
	Dir string

	// Overwrite replaces an existing identity instead of returning ErrIdentityExists.
	Overwrite bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *FileStoreConfig) ApplyDefaults() error {
	if c.Dir != "" {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	c.Dir = filepath.Join(home, ".config", "hostident")
	return nil
}

// FileStore keeps the identity in a YAML file readable only by the owner.
type FileStore struct {
	mu        sync.Mutex
	dir       string
	overwrite bool
	now       func() time.Time
}

// NewFileStore creates the store directory with 0700 permissions.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}

	log.Debug().Str("dir", cfg.Dir).Msg("file identity store initialized")

	return &FileStore{
		dir:       cfg.Dir,
		overwrite: cfg.Overwrite,
		now:       time.Now,
	}, nil
}

// Location returns the path of the identity file.
func (s *FileStore) Location() string {
	return s.path()
}

// Persist writes the identity file atomically.
func (s *FileStore) Persist(ctx context.Context, id *identity.Identity) error {
	if err := id.Complete(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.overwrite {
		if _, err := os.Stat(s.path()); err == nil {
			return ErrIdentityExists
		}
	}

	doc := &identityDocument{
		Version:        identityFileVersion,
		HostID:         id.HostID,
		RootPrivateKey: id.RootKey.String(),
		HostPrivateKey: id.HostKey.String(),
		RootCert:       id.RootCert.String(),
		HostCert:       id.HostCert.String(),
		CreatedAt:      s.now().UTC(),
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	defer clear(data)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	log.Info().
		Str("path", s.path()).
		Bool("host_id", id.HasHostID()).
		Msg("identity saved")

	return nil
}

// Load reads the identity file.
func (s *FileStore) Load(ctx context.Context) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}
	defer clear(data)

	var doc identityDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse identity: %w", err)
	}

	if doc.Version != identityFileVersion {
		return nil, fmt.Errorf("unsupported identity file version %d", doc.Version)
	}

	return identity.New(doc.HostID, doc.RootPrivateKey, doc.HostPrivateKey, doc.RootCert, doc.HostCert), nil
}

// Delete removes the identity file.
func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("failed to remove identity: %w", err)
	}

	log.Info().Str("path", s.path()).Msg("identity deleted")
	return nil
}

// writeAtomic writes data to a fresh owner-only temp file and renames it over the identity file.
func (s *FileStore) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "identity-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp identity file: %w", err)
	}
	tempPath := tmp.Name()

	err = tmp.Chmod(0600)
	if err == nil {
		_, err = tmp.Write(data)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write identity: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.path()); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, identityFileName)
}
