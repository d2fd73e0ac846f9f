package pki

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"go.uber.org/atomic"
)

// SerialSource hands out certificate serial numbers. Every serial returned by a
// source must be unique for the issuing authority using it.
type SerialSource interface {
	NextSerial() (*big.Int, error)
}

// serialLimit bounds random serials to 128 bits.
var serialLimit = new(big.Int).Lsh(big.NewInt(1), 128)

// RandomSerials draws positive 128-bit serial numbers from a random reader.
type RandomSerials struct {
	// Reader defaults to crypto/rand when nil.
	Reader io.Reader
}

// NextSerial implements SerialSource.
func (r RandomSerials) NextSerial() (*big.Int, error) {
	reader := r.Reader
	if reader == nil {
		reader = rand.Reader
	}

	for range maxSerialAttempts {
		serial, err := rand.Int(reader, serialLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to generate serial number: %w", err)
		}
		// RFC 5280 requires a positive serial
		if serial.Sign() > 0 {
			return serial, nil
		}
	}

	return nil, fmt.Errorf("failed to generate a non-zero serial number after %d attempts", maxSerialAttempts)
}

const maxSerialAttempts = 8

// SequentialSerials is a monotonic serial source starting at 1.
// It is safe for concurrent use.
type SequentialSerials struct {
	last atomic.Uint64
}

// NewSequentialSerials creates a source whose first serial is start+1.
func NewSequentialSerials(start uint64) *SequentialSerials {
	s := &SequentialSerials{}
	s.last.Store(start)
	return s
}

// NextSerial implements SerialSource.
func (s *SequentialSerials) NextSerial() (*big.Int, error) {
	return new(big.Int).SetUint64(s.last.Inc()), nil
}
