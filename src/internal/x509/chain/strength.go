// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/dsa"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"strings"
)

// KeyAlgorithm groups public key types by how their size is judged.
type KeyAlgorithm uint8

const (
	KeyUnknown KeyAlgorithm = iota
	// KeyFactoring covers RSA and DSA, sized by modulus.
	KeyFactoring
	// KeyElliptic covers ECDSA and Ed25519, sized by field.
	KeyElliptic
)

// KeyStrength returns the algorithm family, a display name and the key size
// in bits of the certificate's public key.
func KeyStrength(c *x509.Certificate) (KeyAlgorithm, string, int) {
	switch k := c.PublicKey.(type) {
	case *rsa.PublicKey:
		return KeyFactoring, "RSA", k.N.BitLen()
	case *dsa.PublicKey:
		return KeyFactoring, "DSA", k.P.BitLen()
	case *ecdsa.PublicKey:
		return KeyElliptic, "ECDSA", k.Curve.Params().BitSize
	case ed25519.PublicKey:
		return KeyElliptic, "Ed25519", 256
	}
	return KeyUnknown, "unknown", 0
}

// SignatureWeakness classifies the hash behind a certificate signature.
type SignatureWeakness uint8

const (
	SignatureStrong SignatureWeakness = iota
	// SignatureWeak is SHA-1.
	SignatureWeak
	// SignatureBroken is MD2 or MD5.
	SignatureBroken
)

// SignatureStrength classifies c's signature algorithm.
func SignatureStrength(c *x509.Certificate) SignatureWeakness {
	switch c.SignatureAlgorithm {
	case x509.MD2WithRSA, x509.MD5WithRSA:
		return SignatureBroken
	case x509.SHA1WithRSA, x509.DSAWithSHA1, x509.ECDSAWithSHA1:
		return SignatureWeak
	}
	return SignatureStrong
}

// ServerNames returns the DNS and IP subject alternative names of c, lower
// cased. The common name is used only when no alternative names exist.
func ServerNames(c *x509.Certificate) []string {
	names := make([]string, 0, len(c.DNSNames)+len(c.IPAddresses))
	for _, n := range c.DNSNames {
		names = append(names, strings.ToLower(n))
	}
	for _, ip := range c.IPAddresses {
		names = append(names, ip.String())
	}
	if len(names) == 0 && c.Subject.CommonName != "" {
		names = append(names, strings.ToLower(c.Subject.CommonName))
	}
	return names
}

// AuthenticationOnly reports whether c restricts its key to uses that cannot
// protect a key exchange (for example non-repudiation only).
func AuthenticationOnly(c *x509.Certificate) bool {
	if c.KeyUsage == 0 {
		return false
	}
	const exchange = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageKeyAgreement
	return c.KeyUsage&exchange == 0
}
