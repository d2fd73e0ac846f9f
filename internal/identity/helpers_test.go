package identity

import (
	"crypto/x509/pkix"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/hostident/internal/codec"
	"github.com/wolfeidau/hostident/internal/pki"
)

var fixedNow = time.Date(2024, time.March, 9, 10, 11, 12, 0, time.UTC)

var (
	keyPEMOnce             sync.Once
	rootKeyPEM, hostKeyPEM []byte
	keyPEMErr              error
)

// testKeyPEMs returns two cached PKCS#8 keys.
func testKeyPEMs(t *testing.T) (rootKey, hostKey []byte) {
	t.Helper()

	keyPEMOnce.Do(func() {
		gen := func() []byte {
			if keyPEMErr != nil {
				return nil
			}
			var kp *pki.KeyPair
			if kp, keyPEMErr = pki.GenerateKeyPair(nil, pki.DefaultKeyBits); keyPEMErr != nil {
				return nil
			}
			var out []byte
			out, keyPEMErr = pki.ExportPrivateKey(kp)
			return out
		}
		rootKeyPEM = gen()
		hostKeyPEM = gen()
	})
	require.NoError(t, keyPEMErr)

	return rootKeyPEM, hostKeyPEM
}

// testIdentity builds an encoded identity whose host certificate carries certHostID.
func testIdentity(t *testing.T, storedHostID, certHostID string) *Identity {
	t.Helper()

	rootPEM, hostPEM := testKeyPEMs(t)
	rootKey, err := pki.ParsePrivateKey(rootPEM)
	require.NoError(t, err)
	hostKey, err := pki.ParsePrivateKey(hostPEM)
	require.NoError(t, err)

	b := &pki.Builder{
		Now:      func() time.Time { return fixedNow },
		Validity: pki.DefaultValidity,
		Serials:  pki.NewSequentialSerials(0),
	}

	rootTemplate, err := b.Build(rootKey.Public(), pki.CertificateRequest{
		Subject:    pkix.Name{CommonName: "Test Root CA"},
		IsCA:       true,
		MaxPathLen: 1,
	})
	require.NoError(t, err)
	root, err := pki.Sign(rootTemplate, rootTemplate, rootKey)
	require.NoError(t, err)

	req := pki.CertificateRequest{Subject: pkix.Name{CommonName: "test-host"}}
	if certHostID != "" {
		ext, err := pki.HostIDExtension(certHostID)
		require.NoError(t, err)
		req.ExtraExtensions = []pkix.Extension{ext}
	}
	hostTemplate, err := b.Build(hostKey.Public(), req)
	require.NoError(t, err)
	host, err := pki.Sign(hostTemplate, root, rootKey)
	require.NoError(t, err)

	rootCertPEM, err := pki.ExportCertificate(root)
	require.NoError(t, err)
	hostCertPEM, err := pki.ExportCertificate(host)
	require.NoError(t, err)

	return New(
		storedHostID,
		codec.Encode(rootPEM),
		codec.Encode(hostPEM),
		codec.Encode(rootCertPEM),
		codec.Encode(hostCertPEM),
	)
}
