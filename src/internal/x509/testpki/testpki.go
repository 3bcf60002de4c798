// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package testpki builds throwaway certificate hierarchies, CRLs and OCSP
// responses for tests. Nothing here is meant for production use.
package testpki

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"
)

var serial atomic.Int64

// Authority is a generated certificate together with its private key.
// Key is nil for certificates built around a bare public key.
type Authority struct {
	Cert *x509.Certificate
	Key  crypto.Signer
}

type options struct {
	notBefore time.Time
	notAfter  time.Time
	aia       []string
	ocsp      []string
	crl       []string
	weakBits  int
	sigAlg    x509.SignatureAlgorithm
	keyUsage  x509.KeyUsage
	extUsage  []x509.ExtKeyUsage
	noCA      bool
}

// Option tweaks a generated certificate.
type Option func(*options)

// WithValidity sets the validity window.
func WithValidity(notBefore, notAfter time.Time) Option {
	return func(o *options) { o.notBefore, o.notAfter = notBefore, notAfter }
}

// WithAIA embeds CA issuer URLs.
func WithAIA(urls ...string) Option { return func(o *options) { o.aia = urls } }

// WithOCSP embeds OCSP responder URLs.
func WithOCSP(urls ...string) Option { return func(o *options) { o.ocsp = urls } }

// WithCRL embeds CRL distribution points.
func WithCRL(urls ...string) Option { return func(o *options) { o.crl = urls } }

// WithWeakRSA gives the certificate an RSA public key of the given size.
// The key is random and has no private half.
func WithWeakRSA(bits int) Option { return func(o *options) { o.weakBits = bits } }

// WithSignatureAlgorithm forces the signature algorithm used by the issuer.
func WithSignatureAlgorithm(alg x509.SignatureAlgorithm) Option {
	return func(o *options) { o.sigAlg = alg }
}

// WithKeyUsage overrides the key usage bits.
func WithKeyUsage(ku x509.KeyUsage, ext ...x509.ExtKeyUsage) Option {
	return func(o *options) { o.keyUsage, o.extUsage = ku, ext }
}

// WithoutCAFlag issues an "intermediate" that lacks the CA basic constraint.
func WithoutCAFlag() Option { return func(o *options) { o.noCA = true } }

func build(opts []Option) options {
	now := time.Now()
	o := options{
		notBefore: now.Add(-time.Hour),
		notAfter:  now.Add(365 * 24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newKey(tb testing.TB) *ecdsa.PrivateKey {
	tb.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("testpki: generate key: %v", err)
	}
	return key
}

func weakRSA(tb testing.TB, bits int) *rsa.PublicKey {
	tb.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(bits-1)))
	if err != nil {
		tb.Fatalf("testpki: weak modulus: %v", err)
	}
	n.SetBit(n, bits-1, 1)
	n.SetBit(n, 0, 1)
	return &rsa.PublicKey{N: n, E: 65537}
}

func issue(tb testing.TB, tmpl *x509.Certificate, parent *Authority, o options) *Authority {
	tb.Helper()

	tmpl.SerialNumber = big.NewInt(serial.Add(1) + 1000)
	tmpl.NotBefore = o.notBefore
	tmpl.NotAfter = o.notAfter
	tmpl.IssuingCertificateURL = o.aia
	tmpl.OCSPServer = o.ocsp
	tmpl.CRLDistributionPoints = o.crl
	if o.sigAlg != x509.UnknownSignatureAlgorithm {
		tmpl.SignatureAlgorithm = o.sigAlg
	}

	var (
		pub crypto.PublicKey
		key crypto.Signer
	)
	if o.weakBits > 0 {
		pub = weakRSA(tb, o.weakBits)
	} else {
		k := newKey(tb)
		pub, key = k.Public(), k
	}

	signerCert, signerKey := tmpl, key
	if parent != nil {
		signerCert, signerKey = parent.Cert, parent.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, signerCert, pub, signerKey)
	if err != nil {
		tb.Fatalf("testpki: create certificate %q: %v", tmpl.Subject.CommonName, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		tb.Fatalf("testpki: parse certificate: %v", err)
	}
	return &Authority{Cert: cert, Key: key}
}

// NewRoot creates a self-signed root CA.
func NewRoot(tb testing.TB, cn string, opts ...Option) *Authority {
	tb.Helper()
	o := build(opts)
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test Trust"}},
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
	return issue(tb, tmpl, nil, o)
}

// NewIntermediate creates a CA certificate signed by a.
func (a *Authority) NewIntermediate(tb testing.TB, cn string, opts ...Option) *Authority {
	tb.Helper()
	o := build(opts)
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test Trust"}},
		IsCA:                  !o.noCA,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
	}
	return issue(tb, tmpl, a, o)
}

// NewLeaf creates a server certificate for the given DNS names signed by a.
// The first name doubles as the common name.
func (a *Authority) NewLeaf(tb testing.TB, names []string, opts ...Option) *Authority {
	tb.Helper()
	o := build(opts)
	cn := ""
	if len(names) > 0 {
		cn = names[0]
	}
	ku := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	ext := []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	if o.keyUsage != 0 {
		ku, ext = o.keyUsage, o.extUsage
	}
	tmpl := &x509.Certificate{
		Subject:               pkix.Name{CommonName: cn},
		DNSNames:              names,
		KeyUsage:              ku,
		ExtKeyUsage:           ext,
		BasicConstraintsValid: true,
	}
	return issue(tb, tmpl, a, o)
}

// CRL returns a DER encoded CRL issued by a listing the given certificates
// as revoked for key compromise.
func (a *Authority) CRL(tb testing.TB, thisUpdate, nextUpdate time.Time, revoked ...*x509.Certificate) []byte {
	tb.Helper()
	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, c := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   c.SerialNumber,
			RevocationTime: thisUpdate.Add(-time.Minute),
			ReasonCode:     ocsp.KeyCompromise,
		})
	}
	der, err := x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:                    big.NewInt(serial.Add(1)),
		ThisUpdate:                thisUpdate,
		NextUpdate:                nextUpdate,
		RevokedCertificateEntries: entries,
	}, a.Cert, a.Key)
	if err != nil {
		tb.Fatalf("testpki: create CRL: %v", err)
	}
	return der
}

// OCSPResponse returns a DER encoded OCSP response for cert signed directly by a.
// status is one of ocsp.Good, ocsp.Revoked or ocsp.Unknown.
func (a *Authority) OCSPResponse(tb testing.TB, cert *x509.Certificate, status int, thisUpdate, nextUpdate time.Time) []byte {
	tb.Helper()
	tmpl := ocsp.Response{
		Status:       status,
		SerialNumber: cert.SerialNumber,
		ThisUpdate:   thisUpdate,
		NextUpdate:   nextUpdate,
	}
	if status == ocsp.Revoked {
		tmpl.RevokedAt = thisUpdate.Add(-time.Minute)
		tmpl.RevocationReason = ocsp.KeyCompromise
	}
	der, err := ocsp.CreateResponse(a.Cert, a.Cert, tmpl, a.Key)
	if err != nil {
		tb.Fatalf("testpki: create OCSP response: %v", err)
	}
	return der
}

// Chain returns the DER encodings of the given authorities in order.
func Chain(certs ...*Authority) [][]byte {
	out := make([][]byte, 0, len(certs))
	for _, c := range certs {
		out = append(out, c.Cert.Raw)
	}
	return out
}
