package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/hostident/internal/identity"
)

// Sentinel errors for common error conditions
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrThrottled        = errors.New("AWS request throttled")
)

// Loader reads back a persisted identity.
type Loader interface {
	// Load returns ErrIdentityNotFound when nothing has been provisioned.
	Load(ctx context.Context) (*identity.Identity, error)
}

// Store persists, loads and removes a single host identity.
type Store interface {
	Loader

	// Persist writes all five values or none of them. It returns ErrIdentityExists
	// when an identity is already stored and overwriting is disabled.
	Persist(ctx context.Context, id *identity.Identity) error

	// Delete removes the stored identity.
	Delete(ctx context.Context) error

	// Location describes where the identity lives, for display.
	Location() string
}
