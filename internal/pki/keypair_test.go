package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyPair(t *testing.T) {
	t.Run("generates 2048-bit RSA key", func(t *testing.T) {
		key, err := GenerateKeyPair(nil, DefaultKeyBits)
		require.NoError(t, err)
		assert.Equal(t, 2048, key.Bits())

		_, ok := key.Public().(*rsa.PublicKey)
		assert.True(t, ok)
	})

	t.Run("rejects unsupported modulus size", func(t *testing.T) {
		for _, bits := range []int{0, 512, 1024, 2047, 8192} {
			_, err := GenerateKeyPair(nil, bits)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrKeyGeneration)
		}
	})

	t.Run("fails when random source is unavailable", func(t *testing.T) {
		_, err := GenerateKeyPair(iotest.ErrReader(errors.New("entropy pool closed")), DefaultKeyBits)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrKeyGeneration)
	})

	t.Run("exported PEM re-parses to same bit length for all supported sizes", func(t *testing.T) {
		for _, bits := range []int{2048, 3072, 4096} {
			if bits > DefaultKeyBits && testing.Short() {
				continue
			}

			key, err := GenerateKeyPair(nil, bits)
			require.NoError(t, err)

			keyPEM, err := ExportPrivateKey(key)
			require.NoError(t, err)
			require.NotEmpty(t, keyPEM)

			parsed, err := ParsePrivateKey(keyPEM)
			require.NoError(t, err)
			assert.Equal(t, bits, parsed.Bits())
		}
	})
}

func TestKeyPair_Destroy(t *testing.T) {
	t.Run("scrubs private material", func(t *testing.T) {
		key, err := GenerateKeyPair(nil, DefaultKeyBits)
		require.NoError(t, err)

		raw := key.key
		key.Destroy()

		assert.True(t, key.Destroyed())
		assert.Equal(t, 0, key.Bits())
		assert.Nil(t, key.Public())
		assert.Zero(t, raw.D.Sign())
		for _, p := range raw.Primes {
			assert.Zero(t, p.Sign())
		}
	})

	t.Run("scrubbed key no longer signs", func(t *testing.T) {
		key, err := GenerateKeyPair(nil, DefaultKeyBits)
		require.NoError(t, err)

		raw := key.key
		key.Destroy()

		digest := sha256.Sum256([]byte("payload"))
		sig, err := raw.Sign(rand.Reader, digest[:], crypto.SHA256)
		require.Error(t, err)
		assert.Empty(t, sig)
	})

	t.Run("destroyed key cannot be exported", func(t *testing.T) {
		key, err := GenerateKeyPair(nil, DefaultKeyBits)
		require.NoError(t, err)
		key.Destroy()

		_, err = ExportPrivateKey(key)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEncoding)
		assert.ErrorIs(t, err, ErrKeyDestroyed)
	})

	t.Run("destroy is idempotent", func(t *testing.T) {
		key, err := GenerateKeyPair(nil, DefaultKeyBits)
		require.NoError(t, err)

		key.Destroy()
		assert.NotPanics(t, key.Destroy)

		var nilKey *KeyPair
		assert.NotPanics(t, nilKey.Destroy)
	})
}

func TestNewKeyPair(t *testing.T) {
	t.Run("rejects nil key", func(t *testing.T) {
		_, err := NewKeyPair(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEncoding)
	})
}
