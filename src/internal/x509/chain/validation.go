// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto/x509"
	"strings"
)

// CertStatus is the set of findings for one certificate of a validated path.
type CertStatus uint16

const (
	StatusNoIssuer CertStatus = 1 << iota
	StatusBadSignature
	StatusIncorrectCAFlags
	StatusExpired
	StatusNotYetValid
	StatusWrongPurpose
	StatusRevoked
)

var statusNames = []struct {
	flag CertStatus
	name string
}{
	{StatusNoIssuer, "no_issuer"},
	{StatusBadSignature, "bad_signature"},
	{StatusIncorrectCAFlags, "incorrect_ca_flags"},
	{StatusExpired, "expired"},
	{StatusNotYetValid, "not_yet_valid"},
	{StatusWrongPurpose, "wrong_purpose"},
	{StatusRevoked, "revoked"},
}

// Has reports whether every flag in f is set.
func (s CertStatus) Has(f CertStatus) bool { return f != 0 && s&f == f }

func (s CertStatus) String() string {
	if s == 0 {
		return "ok"
	}
	var parts []string
	for _, n := range statusNames {
		if s&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Validation is the outcome of path building.
type Validation struct {
	// Chain is the built path, leaf first. It may stop short of an anchor.
	Chain []*x509.Certificate
	// Status holds the findings for each element of Chain.
	Status []CertStatus

	// Anchored is set when the top of Chain is one of the trusted roots.
	Anchored bool
	// SelfSignedTop is set when the path ends in a self-signed certificate
	// that is not a trusted root.
	SelfSignedTop bool
	// UnresolvedAt is the index of the certificate whose issuer could not be
	// found, or -1.
	UnresolvedAt int
}

// Top returns the last certificate of the built path.
func (v *Validation) Top() *x509.Certificate { return v.Chain[len(v.Chain)-1] }

// Any reports whether any certificate carries one of the flags in f.
func (v *Validation) Any(f CertStatus) bool {
	for _, s := range v.Status {
		if s&f != 0 {
			return true
		}
	}
	return false
}

// Issuer returns the issuer of Chain[index] within the path, or nil.
func (v *Validation) Issuer(index int) *x509.Certificate {
	if index+1 < len(v.Chain) {
		return v.Chain[index+1]
	}
	if index == len(v.Chain)-1 && (v.SelfSignedTop || v.Anchored) && IsSelfSigned(v.Chain[index]) {
		return v.Chain[index]
	}
	return nil
}

// OK reports whether the path is anchored and free of signature, issuer
// and revocation findings. Expiry and purpose are left to the caller.
func (v *Validation) OK() bool {
	return v.Anchored && !v.Any(StatusNoIssuer|StatusBadSignature|StatusRevoked)
}
