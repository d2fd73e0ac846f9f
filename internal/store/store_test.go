package store

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/hostident/internal/identity"
	"github.com/wolfeidau/hostident/internal/pki"
	"github.com/wolfeidau/hostident/internal/provision"
)

var (
	_ provision.Persister = (*FileStore)(nil)
	_ provision.Persister = (*MemoryStore)(nil)
	_ provision.Persister = (*SSMStore)(nil)
	_ provision.Persister = (*DynamoDBStore)(nil)

	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SSMStore)(nil)
	_ Store = (*DynamoDBStore)(nil)
)

func testIdentity(hostID string) *identity.Identity {
	return identity.New(hostID, "cm9vdC1rZXk=", "aG9zdC1rZXk=", "cm9vdC1jZXJ0", "aG9zdC1jZXJ0")
}

var (
	certOnce sync.Once
	testCert *x509.Certificate
	certErr  error
)

// selfSignedCert returns a cached self-signed CA certificate carrying a host id extension.
func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()

	certOnce.Do(func() {
		var key *pki.KeyPair
		if key, certErr = pki.GenerateKeyPair(nil, pki.DefaultKeyBits); certErr != nil {
			return
		}
		defer key.Destroy()

		ext, err := pki.HostIDExtension("HOST-1")
		if err != nil {
			certErr = err
			return
		}

		b := &pki.Builder{
			Now:     func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
			Serials: pki.NewSequentialSerials(0x0f),
		}
		tmpl, err := b.Build(key.Public(), pki.CertificateRequest{
			Subject:         pkix.Name{CommonName: "HOST-1"},
			IsCA:            true,
			ExtraExtensions: []pkix.Extension{ext},
		})
		if err != nil {
			certErr = err
			return
		}

		signed, err := pki.Sign(tmpl, tmpl, key)
		if err != nil {
			certErr = err
			return
		}
		testCert = signed.X509()
	})
	require.NoError(t, certErr)

	return testCert
}
