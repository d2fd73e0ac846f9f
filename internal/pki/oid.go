package pki

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
)

// Custom OID arc: 1.3.6.1.4.1.99999.2.x (temporary private arc)
// For production, register a Private Enterprise Number (PEN) with IANA
var (
	// OIDHostIdentArc is the base OID for all hostident extensions
	OIDHostIdentArc = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 99999, 2}

	// OIDHostID carries the host identifier the certificate was provisioned for
	// Value: UTF8String
	OIDHostID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 99999, 2, 1}
)

// ErrExtensionNotFound is returned when a required extension is missing
var ErrExtensionNotFound = errors.New("extension not found")

// HostIDExtension encodes hostID as a non-critical certificate extension.
func HostIDExtension(hostID string) (pkix.Extension, error) {
	value, err := asn1.MarshalWithParams(hostID, "utf8")
	if err != nil {
		return pkix.Extension{}, fmt.Errorf("failed to marshal host ID: %w", err)
	}

	return pkix.Extension{
		Id:       OIDHostID,
		Critical: false,
		Value:    value,
	}, nil
}

// ExtractHostID extracts the host identifier from the custom OID extension
func ExtractHostID(cert *x509.Certificate) (string, error) {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(OIDHostID) {
			var hostID string
			if _, err := asn1.UnmarshalWithParams(ext.Value, &hostID, "utf8"); err != nil {
				return "", fmt.Errorf("failed to unmarshal host ID: %w", err)
			}
			return hostID, nil
		}
	}
	return "", ErrExtensionNotFound
}
