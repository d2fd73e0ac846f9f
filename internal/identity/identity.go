// Package identity holds the provisioned host identity in its stored (base64 PEM) form and
// turns it back into usable keys, certificates and TLS configuration.
package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete is returned when one of the four encoded blobs is missing
	ErrIncomplete = errors.New("identity is incomplete")
	// ErrHostIDMismatch is returned when the stored host id differs from the one in the host certificate
	ErrHostIDMismatch = errors.New("host id does not match host certificate")
)

// Blob is base64 encoded PEM text. Blobs holding private keys must be wiped once consumed.
type Blob []byte

// String returns the blob as stored text.
func (b Blob) String() string {
	return string(b)
}

// Wipe overwrites the blob contents with zeros.
func (b Blob) Wipe() {
	clear(b)
}

// Identity is the output of one provisioning run: an optional host identifier plus the
// root CA and host key pairs and certificates.
type Identity struct {
	// HostID is empty when unset.
	HostID string

	RootKey  Blob
	HostKey  Blob
	RootCert Blob
	HostCert Blob
}

// New builds an identity from stored text values.
func New(hostID, rootKey, hostKey, rootCert, hostCert string) *Identity {
	return &Identity{
		HostID:   hostID,
		RootKey:  Blob(rootKey),
		HostKey:  Blob(hostKey),
		RootCert: Blob(rootCert),
		HostCert: Blob(hostCert),
	}
}

// HasHostID reports whether a host identifier is set.
func (id *Identity) HasHostID() bool {
	return id != nil && id.HostID != ""
}

// Complete checks that all four blobs are present.
func (id *Identity) Complete() error {
	if id == nil {
		return fmt.Errorf("%w: nil identity", ErrIncomplete)
	}

	for _, f := range []struct {
		name string
		blob Blob
	}{
		{"root key", id.RootKey},
		{"host key", id.HostKey},
		{"root certificate", id.RootCert},
		{"host certificate", id.HostCert},
	} {
		if len(f.blob) == 0 {
			return fmt.Errorf("%w: missing %s", ErrIncomplete, f.name)
		}
	}

	return nil
}

// Clone returns a deep copy so the receiver can be wiped independently.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	return &Identity{
		HostID:   id.HostID,
		RootKey:  cloneBlob(id.RootKey),
		HostKey:  cloneBlob(id.HostKey),
		RootCert: cloneBlob(id.RootCert),
		HostCert: cloneBlob(id.HostCert),
	}
}

// Wipe scrubs every blob. The identity is unusable afterwards.
func (id *Identity) Wipe() {
	if id == nil {
		return
	}
	id.RootKey.Wipe()
	id.HostKey.Wipe()
	id.RootCert.Wipe()
	id.HostCert.Wipe()
	id.RootKey, id.HostKey, id.RootCert, id.HostCert = nil, nil, nil, nil
}

func cloneBlob(b Blob) Blob {
	if b == nil {
		return nil
	}
	return append(Blob(nil), b...)
}
