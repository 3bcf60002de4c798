// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"slices"
	"time"

	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

// maxChainDepth bounds path building so a looping set of cross-signed
// certificates cannot spin forever.
const maxChainDepth = 10

// ErrNoChainLoaded is returned when an operation needs a loaded chain.
var ErrNoChainLoaded = errors.New("x509chain: no certificate chain loaded")

// Purpose is the usage a chain is validated for.
type Purpose uint8

const (
	PurposeServerAuth Purpose = iota
	PurposeClientAuth
	PurposeAny
)

// Expiry is the validity of a certificate at a given instant.
type Expiry uint8

const (
	Valid Expiry = iota
	Expired
	NotYetValid
)

func (e Expiry) String() string {
	switch e {
	case Expired:
		return "expired"
	case NotYetValid:
		return "not_yet_valid"
	}
	return "valid"
}

// Hints carries everything path building may use besides the presented chain.
type Hints struct {
	// Roots are trust anchors. A chain reaching one of them is anchored.
	Roots []*x509.Certificate
	// Intermediates are extra issuer candidates (stored, downloaded, repository).
	Intermediates []*x509.Certificate
	// Revoked lists fingerprints already known to be revoked.
	Revoked []x509certs.Fingerprint
	// AsOf is the validation time. Zero means time.Now.
	AsOf time.Time
}

// Handler is the certificate capability used by the trust engine. It owns a
// presented chain, builds and checks the path to an anchor, and answers
// questions about individual certificates.
//
// A Handler is not safe for concurrent use; call [Handler.Fork] to hand an
// independent copy to another goroutine.
type Handler struct {
	codec      *x509certs.Codec
	certs      []*x509.Certificate
	validation *Validation
}

// NewHandler returns an empty Handler.
func NewHandler() *Handler {
	return &Handler{codec: x509certs.NewCodec()}
}

// LoadChain parses a presented chain, leaf first.
func (h *Handler) LoadChain(chain [][]byte) error {
	certs, err := h.codec.DecodeDERChain(chain)
	if err != nil {
		return err
	}
	h.certs = certs
	h.validation = nil
	return nil
}

// LoadCertificates installs already parsed certificates, leaf first.
func (h *Handler) LoadCertificates(certs []*x509.Certificate) error {
	if len(certs) == 0 {
		return x509certs.ErrEmptyInput
	}
	h.certs = slices.Clone(certs)
	h.validation = nil
	return nil
}

// CertificateCount returns the number of presented certificates.
func (h *Handler) CertificateCount() int { return len(h.certs) }

// Certificate returns the presented certificate at index, or nil.
func (h *Handler) Certificate(index int) *x509.Certificate {
	if index < 0 || index >= len(h.certs) {
		return nil
	}
	return h.certs[index]
}

// Certificates returns the presented chain.
func (h *Handler) Certificates() []*x509.Certificate { return h.certs }

// SubjectName returns the DER subject of the certificate at index.
func (h *Handler) SubjectName(index int) []byte {
	if c := h.Certificate(index); c != nil {
		return c.RawSubject
	}
	return nil
}

// IssuerName returns the DER issuer of the certificate at index.
func (h *Handler) IssuerName(index int) []byte {
	if c := h.Certificate(index); c != nil {
		return c.RawIssuer
	}
	return nil
}

// PublicKeyHash returns SHA-256 over the SubjectPublicKeyInfo at index.
func (h *Handler) PublicKeyHash(index int) []byte {
	c := h.Certificate(index)
	if c == nil {
		return nil
	}
	sum := sha256.Sum256(c.RawSubjectPublicKeyInfo)
	return sum[:]
}

// IsSelfSigned reports whether the certificate at index is self-issued and
// its signature verifies with its own key.
func (h *Handler) IsSelfSigned(index int) bool {
	c := h.Certificate(index)
	return c != nil && IsSelfSigned(c)
}

// IsExpired reports the validity of the certificate at index at asOf.
func (h *Handler) IsExpired(index int, asOf time.Time) Expiry {
	c := h.Certificate(index)
	if c == nil {
		return Expired
	}
	return ExpiryOf(c, asOf)
}

// Fork returns an independent copy of h. Certificates are immutable and
// shared; the slices are not.
func (h *Handler) Fork() *Handler {
	f := &Handler{codec: h.codec, certs: slices.Clone(h.certs)}
	if h.validation != nil {
		v := *h.validation
		v.Chain = slices.Clone(v.Chain)
		v.Status = slices.Clone(v.Status)
		f.validation = &v
	}
	return f
}

// Validation returns the result of the last [Handler.VerifySignatures] call.
func (h *Handler) Validation() *Validation { return h.validation }

// VerifySignatures builds the path from the leaf to an anchor using the
// presented chain and hints, checking every signature on the way. It always
// returns a Validation describing what was found; Validation.OK reports
// whether the chain is anchored and free of fatal findings.
func (h *Handler) VerifySignatures(purpose Purpose, hints Hints) (*Validation, error) {
	if len(h.certs) == 0 {
		return nil, ErrNoChainLoaded
	}
	asOf := hints.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	b := builder{
		presented:     h.certs[1:],
		roots:         hints.Roots,
		intermediates: hints.Intermediates,
	}
	v := b.build(h.certs[0])

	revoked := make(map[x509certs.Fingerprint]struct{}, len(hints.Revoked))
	for _, fp := range hints.Revoked {
		revoked[fp] = struct{}{}
	}

	for i, c := range v.Chain {
		switch ExpiryOf(c, asOf) {
		case Expired:
			v.Status[i] |= StatusExpired
		case NotYetValid:
			v.Status[i] |= StatusNotYetValid
		}
		if _, ok := revoked[x509certs.FingerprintOf(c.Raw)]; ok {
			v.Status[i] |= StatusRevoked
		}
	}
	if !purposeAllowed(v.Chain[0], purpose) {
		v.Status[0] |= StatusWrongPurpose
	}

	h.validation = v
	return v, nil
}

type builder struct {
	presented     []*x509.Certificate
	roots         []*x509.Certificate
	intermediates []*x509.Certificate
}

func (b *builder) anchor(c *x509.Certificate) *x509.Certificate {
	for _, r := range b.roots {
		if bytes.Equal(r.Raw, c.Raw) {
			return r
		}
	}
	for _, r := range b.roots {
		if bytes.Equal(r.RawSubject, c.RawSubject) &&
			bytes.Equal(r.RawSubjectPublicKeyInfo, c.RawSubjectPublicKeyInfo) {
			return r
		}
	}
	return nil
}

func (b *builder) candidates(c *x509.Certificate) []*x509.Certificate {
	var out []*x509.Certificate
	for _, pool := range [][]*x509.Certificate{b.roots, b.presented, b.intermediates} {
		for _, p := range pool {
			if !bytes.Equal(p.RawSubject, c.RawIssuer) {
				continue
			}
			if len(c.AuthorityKeyId) > 0 && len(p.SubjectKeyId) > 0 &&
				!bytes.Equal(c.AuthorityKeyId, p.SubjectKeyId) {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

func (b *builder) build(leaf *x509.Certificate) *Validation {
	v := &Validation{
		Chain:        []*x509.Certificate{leaf},
		Status:       []CertStatus{0},
		UnresolvedAt: -1,
	}

	for depth := 0; depth < maxChainDepth; depth++ {
		cur := v.Chain[len(v.Chain)-1]
		idx := len(v.Chain) - 1

		if root := b.anchor(cur); root != nil {
			v.Chain[idx] = root
			v.Anchored = true
			return v
		}
		if x509certs.IsSelfIssued(cur) && checkSignature(cur, cur) == nil {
			v.SelfSignedTop = true
			return v
		}

		var (
			issuer  *x509.Certificate
			sawName bool
		)
		for _, cand := range b.candidates(cur) {
			if slices.ContainsFunc(v.Chain, cand.Equal) {
				continue
			}
			sawName = true
			if checkSignature(cur, cand) == nil {
				issuer = cand
				break
			}
		}

		if issuer == nil {
			if sawName {
				v.Status[idx] |= StatusBadSignature
			} else {
				v.Status[idx] |= StatusNoIssuer
				v.UnresolvedAt = idx
			}
			return v
		}

		status := CertStatus(0)
		if !validCA(issuer) {
			status |= StatusIncorrectCAFlags
		}
		v.Chain = append(v.Chain, issuer)
		v.Status = append(v.Status, status)
	}

	v.Status[len(v.Status)-1] |= StatusNoIssuer
	v.UnresolvedAt = len(v.Chain) - 1
	return v
}

// checkSignature verifies child's signature with parent's key only. CA
// constraints are judged separately so they can be reported as a warning.
func checkSignature(child, parent *x509.Certificate) error {
	return parent.CheckSignature(child.SignatureAlgorithm, child.RawTBSCertificate, child.Signature)
}

func validCA(c *x509.Certificate) bool {
	if c.Version < 3 {
		return true
	}
	if !c.BasicConstraintsValid || !c.IsCA {
		return false
	}
	return c.KeyUsage == 0 || c.KeyUsage&x509.KeyUsageCertSign != 0
}

func purposeAllowed(leaf *x509.Certificate, purpose Purpose) bool {
	if purpose == PurposeAny || len(leaf.ExtKeyUsage) == 0 {
		return true
	}
	want := x509.ExtKeyUsageServerAuth
	if purpose == PurposeClientAuth {
		want = x509.ExtKeyUsageClientAuth
	}
	for _, u := range leaf.ExtKeyUsage {
		if u == want || u == x509.ExtKeyUsageAny {
			return true
		}
	}
	return false
}

// IsSelfSigned reports whether c is self-issued and verifies with its own key.
func IsSelfSigned(c *x509.Certificate) bool {
	return x509certs.IsSelfIssued(c) && checkSignature(c, c) == nil
}

// ExpiryOf reports the validity of c at asOf.
func ExpiryOf(c *x509.Certificate, asOf time.Time) Expiry {
	switch {
	case asOf.Before(c.NotBefore):
		return NotYetValid
	case asOf.After(c.NotAfter):
		return Expired
	}
	return Valid
}
