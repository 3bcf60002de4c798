// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/cloudflare/cfssl/crypto/pkcs7"
)

var (
	// ErrInvalidPEMBlock indicates that the provided data does not contain a valid PEM block.
	ErrInvalidPEMBlock = errors.New("x509certs: invalid PEM block")

	// ErrInvalidBlockType indicates that the PEM block type is not the expected certificate type.
	ErrInvalidBlockType = errors.New("x509certs: invalid block type")

	// ErrParseCertificate indicates a failure to parse the certificate from the provided data.
	ErrParseCertificate = errors.New("x509certs: failed to parse certificate")

	// ErrParsePKCS7 indicates a failure to parse PKCS7 formatted data.
	ErrParsePKCS7 = errors.New("x509certs: failed to parse PKCS7 data")

	// ErrNoCertificatesInPKCS indicates that no certificates were found in the PKCS7 data.
	ErrNoCertificatesInPKCS = errors.New("x509certs: no certificates found in PKCS7 data")

	// ErrEmptyInput is returned when there is nothing to decode.
	ErrEmptyInput = errors.New("x509certs: empty input")
)

// Codec decodes and encodes [X.509] certificates in PEM, DER and PKCS#7 form.
//
// Certificates fetched from AIA locations and repository feeds arrive in any
// of these encodings, so every decode path falls back through them in order.
//
// [X.509]: https://en.wikipedia.org/wiki/X.509
type Codec struct {
	blockType string
}

// NewCodec returns a Codec for "CERTIFICATE" PEM blocks.
func NewCodec() *Codec {
	return &Codec{blockType: "CERTIFICATE"}
}

// IsPEM reports whether data starts with a PEM block.
func (c *Codec) IsPEM(data []byte) bool {
	block, _ := pem.Decode(data)
	return block != nil
}

// Decode decodes the first certificate found in data.
func (c *Codec) Decode(data []byte) (*x509.Certificate, error) {
	certs, err := c.DecodeBundle(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// DecodeBundle decodes every certificate in data.
//
// Accepted inputs are concatenated PEM blocks, concatenated DER certificates
// and PKCS#7 SignedData bundles (".p7c" as served by many AIA endpoints).
func (c *Codec) DecodeBundle(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	if c.IsPEM(data) {
		return c.decodePEM(data)
	}

	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return certs, nil
	}

	p, err := pkcs7.ParsePKCS7(data)
	if err != nil {
		return nil, ErrParsePKCS7
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, ErrNoCertificatesInPKCS
	}
	return p.Content.SignedData.Certificates, nil
}

func (c *Codec) decodePEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != c.blockType {
			return nil, ErrInvalidBlockType
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, ErrParseCertificate
		}

		certs = append(certs, cert)
		data = rest
	}

	if len(certs) == 0 {
		return nil, ErrInvalidPEMBlock
	}
	return certs, nil
}

// DecodeDERChain parses a chain handed over as individual DER blobs.
func (c *Codec) DecodeDERChain(chain [][]byte) ([]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, ErrEmptyInput
	}
	certs := make([]*x509.Certificate, 0, len(chain))
	for _, der := range chain {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, ErrParseCertificate
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// EncodePEM encodes a certificate to PEM format.
func (c *Codec) EncodePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: c.blockType, Bytes: cert.Raw})
}

// EncodeMultiplePEM encodes multiple certificates to concatenated PEM.
func (c *Codec) EncodeMultiplePEM(certs []*x509.Certificate) []byte {
	var data []byte
	for _, cert := range certs {
		data = append(data, c.EncodePEM(cert)...)
	}
	return data
}

// RawChain returns the DER encoding of each certificate.
func RawChain(certs []*x509.Certificate) [][]byte {
	out := make([][]byte, 0, len(certs))
	for _, cert := range certs {
		out = append(out, cert.Raw)
	}
	return out
}
