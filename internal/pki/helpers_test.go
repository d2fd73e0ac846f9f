package pki

import (
	"crypto/x509/pkix"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 9, 10, 11, 12, 0, time.UTC)

var (
	sharedKeysOnce sync.Once
	sharedKeys     [2]*KeyPair
	sharedKeysErr  error
)

// testKeys returns two cached 2048-bit key pairs. Tests must not Destroy them.
func testKeys(t *testing.T) (rootKey, hostKey *KeyPair) {
	t.Helper()

	sharedKeysOnce.Do(func() {
		for i := range sharedKeys {
			sharedKeys[i], sharedKeysErr = GenerateKeyPair(nil, DefaultKeyBits)
			if sharedKeysErr != nil {
				return
			}
		}
	})
	require.NoError(t, sharedKeysErr)

	return sharedKeys[0], sharedKeys[1]
}

func testBuilder() *Builder {
	return &Builder{
		Now:      func() time.Time { return fixedNow },
		Validity: DefaultValidity,
		Serials:  NewSequentialSerials(0),
	}
}

// testChain builds and signs a root CA and a host certificate.
func testChain(t *testing.T) (root, host *Certificate) {
	t.Helper()

	rootKey, hostKey := testKeys(t)
	b := testBuilder()

	rootUnsigned, err := b.Build(rootKey.Public(), CertificateRequest{
		Subject:    pkix.Name{CommonName: "Test Root CA"},
		IsCA:       true,
		MaxPathLen: 1,
	})
	require.NoError(t, err)

	root, err = Sign(rootUnsigned, rootUnsigned, rootKey)
	require.NoError(t, err)

	hostUnsigned, err := b.Build(hostKey.Public(), CertificateRequest{
		Subject: pkix.Name{CommonName: "test-host"},
	})
	require.NoError(t, err)

	host, err = Sign(hostUnsigned, root, rootKey)
	require.NoError(t, err)

	return root, host
}
