package pki

import "errors"

var (
	// ErrKeyGeneration indicates the key pair could not be generated (bad size, entropy failure)
	ErrKeyGeneration = errors.New("key generation failed")
	// ErrSigning indicates a certificate could not be signed by the given issuer
	ErrSigning = errors.New("certificate signing failed")
	// ErrEncoding indicates a key or certificate could not be exported or parsed
	ErrEncoding = errors.New("encoding failed")
	// ErrKeyDestroyed is returned when a scrubbed key pair is used again
	ErrKeyDestroyed = errors.New("key pair has been destroyed")
)
