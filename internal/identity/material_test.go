package identity

import (
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/hostident/internal/codec"
	"github.com/wolfeidau/hostident/internal/pki"
)

func TestDecode(t *testing.T) {
	t.Run("decodes every blob", func(t *testing.T) {
		id := testIdentity(t, "", "")

		m, err := id.Decode()
		require.NoError(t, err)
		defer m.Destroy()

		assert.True(t, m.RootCert.IsCA())
		assert.False(t, m.HostCert.IsCA())
		assert.Equal(t, pki.DefaultKeyBits, m.RootKey.Bits())
		assert.Equal(t, pki.DefaultKeyBits, m.HostKey.Bits())
		assert.Equal(t, m.RootCert.X509().Subject.String(), m.HostCert.X509().Issuer.String())
	})

	t.Run("incomplete identity", func(t *testing.T) {
		id := testIdentity(t, "", "")
		id.HostCert = nil

		_, err := id.Decode()
		require.ErrorIs(t, err, ErrIncomplete)
	})

	t.Run("invalid base64", func(t *testing.T) {
		id := testIdentity(t, "", "")
		id.RootCert = Blob("not base64!")

		_, err := id.Decode()
		require.ErrorIs(t, err, codec.ErrInvalidEncoding)
		assert.Contains(t, err.Error(), "root certificate")
	})

	t.Run("key blob holding a certificate", func(t *testing.T) {
		id := testIdentity(t, "", "")
		id.HostKey = id.HostCert

		_, err := id.Decode()
		require.ErrorIs(t, err, pki.ErrEncoding)
		assert.Contains(t, err.Error(), "host key")
	})

	t.Run("destroy scrubs keys", func(t *testing.T) {
		m, err := testIdentity(t, "", "").Decode()
		require.NoError(t, err)

		m.Destroy()
		assert.True(t, m.RootKey.Destroyed())
		assert.True(t, m.HostKey.Destroyed())
		m.Destroy()
	})
}

func TestVerify(t *testing.T) {
	at := fixedNow.Add(time.Hour)

	t.Run("valid identity", func(t *testing.T) {
		m, err := testIdentity(t, "", "").Decode()
		require.NoError(t, err)
		defer m.Destroy()

		require.NoError(t, m.Verify(at))
	})

	t.Run("host id matches certificate", func(t *testing.T) {
		m, err := testIdentity(t, "HOST-1", "HOST-1").Decode()
		require.NoError(t, err)
		defer m.Destroy()

		require.NoError(t, m.Verify(at))
	})

	t.Run("host id differs from certificate", func(t *testing.T) {
		m, err := testIdentity(t, "HOST-2", "HOST-1").Decode()
		require.NoError(t, err)
		defer m.Destroy()

		require.ErrorIs(t, m.Verify(at), ErrHostIDMismatch)
	})

	t.Run("stored host id without extension", func(t *testing.T) {
		m, err := testIdentity(t, "HOST-1", "").Decode()
		require.NoError(t, err)
		defer m.Destroy()

		require.ErrorIs(t, m.Verify(at), ErrHostIDMismatch)
	})

	t.Run("swapped keys", func(t *testing.T) {
		id := testIdentity(t, "", "")
		id.RootKey, id.HostKey = id.HostKey, id.RootKey

		m, err := id.Decode()
		require.NoError(t, err)
		defer m.Destroy()

		require.ErrorIs(t, m.Verify(at), pki.ErrSigning)
	})

	t.Run("expired", func(t *testing.T) {
		m, err := testIdentity(t, "", "").Decode()
		require.NoError(t, err)
		defer m.Destroy()

		require.ErrorIs(t, m.Verify(fixedNow.Add(pki.DefaultValidity+time.Second)), pki.ErrSigning)
	})
}

func TestTLSConfig(t *testing.T) {
	m, err := testIdentity(t, "", "").Decode()
	require.NoError(t, err)
	defer m.Destroy()

	cfg, err := m.TLSConfig()
	require.NoError(t, err)

	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.NotNil(t, cfg.ClientCAs)
	assert.NotNil(t, cfg.RootCAs)
	assert.Equal(t, m.HostCert.Raw(), cfg.Certificates[0].Certificate[0])
}
