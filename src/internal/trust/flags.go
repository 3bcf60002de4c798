// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package trust

import "strings"

// Warning is a set of non-fatal findings about a connection or chain.
type Warning uint32

const (
	WarnAnonymous Warning = 1 << iota
	// WarnUnknownChain marks a chain ending in an untrusted self-signed certificate.
	WarnUnknownChain
	WarnExpired
	WarnNotYetValid
	// WarnCertificate covers repository warn flags, bad CA flags and invalid CRLs.
	WarnCertificate
	// WarnAuthenticationOnly marks a leaf whose key may only sign.
	WarnAuthenticationOnly
	WarnLowEncryption
	WarnCipherDisabled
	WarnNameMismatch
	WarnNoRenegotiationExtension
)

var warningNames = []struct {
	flag Warning
	name string
}{
	{WarnAnonymous, "anonymous"},
	{WarnUnknownChain, "unknown_chain"},
	{WarnExpired, "expired"},
	{WarnNotYetValid, "not_yet_valid"},
	{WarnCertificate, "certificate_warning"},
	{WarnAuthenticationOnly, "authentication_only"},
	{WarnLowEncryption, "low_encryption"},
	{WarnCipherDisabled, "cipher_disabled"},
	{WarnNameMismatch, "name_mismatch"},
	{WarnNoRenegotiationExtension, "no_renegotiation_extension"},
}

// Has reports whether every flag in f is set.
func (w Warning) Has(f Warning) bool { return f != 0 && w&f == f }

// Any reports whether at least one flag in f is set.
func (w Warning) Any(f Warning) bool { return w&f != 0 }

// With returns w with f set.
func (w Warning) With(f Warning) Warning { return w | f }

// Without returns w with f cleared.
func (w Warning) Without(f Warning) Warning { return w &^ f }

// Covers reports whether w contains every flag of other.
func (w Warning) Covers(other Warning) bool { return other&^w == 0 }

// Names lists the set flags in priority order.
func (w Warning) Names() []string {
	var out []string
	for _, n := range warningNames {
		if w&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (w Warning) String() string {
	if w == 0 {
		return "none"
	}
	return strings.Join(w.Names(), "|")
}

// LowSecurityReason explains why a rating is below [RatingFull].
type LowSecurityReason uint8

const (
	ReasonWeakKey LowSecurityReason = 1 << iota
	ReasonWeakMethod
	ReasonUnableToCheckRevocation
	ReasonWeakProtocol
)

var reasonNames = []struct {
	flag LowSecurityReason
	name string
}{
	{ReasonWeakKey, "weak_key"},
	{ReasonWeakMethod, "weak_method"},
	{ReasonUnableToCheckRevocation, "unable_to_check_revocation"},
	{ReasonWeakProtocol, "weak_protocol"},
}

// Has reports whether every flag in f is set.
func (r LowSecurityReason) Has(f LowSecurityReason) bool { return f != 0 && r&f == f }

// With returns r with f set.
func (r LowSecurityReason) With(f LowSecurityReason) LowSecurityReason { return r | f }

// Names lists the set reasons.
func (r LowSecurityReason) Names() []string {
	var out []string
	for _, n := range reasonNames {
		if r&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func (r LowSecurityReason) String() string {
	if r == 0 {
		return "none"
	}
	return strings.Join(r.Names(), "|")
}

// SecurityRating is the coarse strength of a verified connection.
// Lower values are stronger.
type SecurityRating uint8

const (
	RatingFull SecurityRating = iota
	RatingHalf
	RatingLow
)

func (s SecurityRating) String() string {
	switch s {
	case RatingFull:
		return "full"
	case RatingHalf:
		return "half"
	case RatingLow:
		return "low"
	}
	return "unknown"
}

// Cap returns the weaker of s and other.
func (s SecurityRating) Cap(other SecurityRating) SecurityRating {
	if other > s {
		return other
	}
	return s
}
