package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"math/big"
)

// DefaultKeyBits is the RSA modulus size used for both the root and host keys.
const DefaultKeyBits = 2048

var supportedKeyBits = map[int]bool{
	2048: true,
	3072: true,
	4096: true,
}

// KeyPair holds an RSA private key (and therefore its public half).
//
// The key is owned by whoever generated it; builders and signers only borrow it.
// Call Destroy once the key has been exported to scrub the private material.
type KeyPair struct {
	key *rsa.PrivateKey
}

// GenerateKeyPair creates a new RSA key pair of the given modulus size.
// A nil random reader means crypto/rand.
func GenerateKeyPair(random io.Reader, bits int) (*KeyPair, error) {
	if !supportedKeyBits[bits] {
		return nil, fmt.Errorf("%w: unsupported RSA modulus size %d", ErrKeyGeneration, bits)
	}

	if random == nil {
		random = rand.Reader
	}

	key, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	return &KeyPair{key: key}, nil
}

// NewKeyPair wraps an existing RSA private key, e.g. one parsed back from PEM.
func NewKeyPair(key *rsa.PrivateKey) (*KeyPair, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil RSA key", ErrEncoding)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid RSA key: %v", ErrEncoding, err)
	}
	return &KeyPair{key: key}, nil
}

// Bits returns the modulus size, or 0 once destroyed.
func (k *KeyPair) Bits() int {
	if k.Destroyed() {
		return 0
	}
	return k.key.N.BitLen()
}

// Public returns the public half of the key pair.
func (k *KeyPair) Public() crypto.PublicKey {
	if k.Destroyed() {
		return nil
	}
	return &k.key.PublicKey
}

// Destroyed reports whether Destroy has been called.
func (k *KeyPair) Destroyed() bool {
	return k == nil || k.key == nil
}

// Destroy zeroes the private exponent, primes and CRT values, releases the
// precomputed signing state and drops the key. It is safe to call more than once.
func (k *KeyPair) Destroy() {
	if k.Destroyed() {
		return
	}

	zeroInt(k.key.D)
	for _, p := range k.key.Primes {
		zeroInt(p)
	}
	zeroInt(k.key.Precomputed.Dp)
	zeroInt(k.key.Precomputed.Dq)
	zeroInt(k.key.Precomputed.Qinv)
	// the runtime keeps its own copy of the key here
	k.key.Precomputed = rsa.PrecomputedValues{}

	k.key = nil
}

// signer exposes the private key for signing, or fails if the key was scrubbed.
func (k *KeyPair) signer() (crypto.Signer, error) {
	if k.Destroyed() {
		return nil, ErrKeyDestroyed
	}
	return k.key, nil
}

// privateKey is used by the PEM exporter.
func (k *KeyPair) privateKey() (*rsa.PrivateKey, error) {
	if k.Destroyed() {
		return nil, ErrKeyDestroyed
	}
	return k.key, nil
}

func zeroInt(i *big.Int) {
	if i == nil {
		return
	}
	clear(i.Bits())
	i.SetInt64(0)
}
