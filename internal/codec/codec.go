// Package codec converts binary and PEM material into the ASCII form stored by the
// persistence backends.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidEncoding is returned when a stored value is not valid padded base64.
var ErrInvalidEncoding = errors.New("invalid base64 encoding")

// Encode returns the padded RFC 4648 base64 form of data. Empty input yields "".
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return data, nil
}

// EncodeBytes is Encode returning a byte slice, so that encoded key material can be scrubbed.
func EncodeBytes(data []byte) []byte {
	buf := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(buf, data)
	return buf
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(src []byte) ([]byte, error) {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(src)))
	n, err := base64.StdEncoding.Decode(buf, src)
	if err != nil {
		clear(buf)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return buf[:n], nil
}
