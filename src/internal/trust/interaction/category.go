// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package interaction

import (
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
)

// Category is a prompt category. Lower values take precedence.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryAnonymous
	CategoryUnknownChain
	CategoryExpired
	CategoryCertificateWarning
	CategoryAuthenticationOnly
	CategoryLowEncryptionCipherDisabled
	CategoryLowEncryption
	CategoryNameMismatch
	CategoryNoRenegotiationExtension
)

var categoryNames = [...]string{
	CategoryNone:                        "none",
	CategoryAnonymous:                   "anonymous",
	CategoryUnknownChain:                "unknown_chain",
	CategoryExpired:                     "expired",
	CategoryCertificateWarning:          "certificate_warning",
	CategoryAuthenticationOnly:          "authentication_only",
	CategoryLowEncryptionCipherDisabled: "low_encryption_cipher_disabled",
	CategoryLowEncryption:               "low_encryption",
	CategoryNameMismatch:                "name_mismatch",
	CategoryNoRenegotiationExtension:    "no_renegotiation_extension",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// priority maps each category to the warnings that raise it, highest first.
var priority = []struct {
	category Category
	match    func(trust.Warning) bool
}{
	{CategoryAnonymous, func(w trust.Warning) bool { return w.Has(trust.WarnAnonymous) }},
	{CategoryUnknownChain, func(w trust.Warning) bool { return w.Has(trust.WarnUnknownChain) }},
	{CategoryExpired, func(w trust.Warning) bool { return w.Any(trust.WarnExpired | trust.WarnNotYetValid) }},
	{CategoryCertificateWarning, func(w trust.Warning) bool { return w.Has(trust.WarnCertificate) }},
	{CategoryAuthenticationOnly, func(w trust.Warning) bool { return w.Has(trust.WarnAuthenticationOnly) }},
	{CategoryLowEncryptionCipherDisabled, func(w trust.Warning) bool { return w.Has(trust.WarnCipherDisabled) }},
	{CategoryLowEncryption, func(w trust.Warning) bool {
		return w.Has(trust.WarnLowEncryption) && !w.Has(trust.WarnCipherDisabled)
	}},
	{CategoryNameMismatch, func(w trust.Warning) bool { return w.Has(trust.WarnNameMismatch) }},
	{CategoryNoRenegotiationExtension, func(w trust.Warning) bool { return w.Has(trust.WarnNoRenegotiationExtension) }},
}

// Categories returns every category raised by w in priority order.
func Categories(w trust.Warning) []Category {
	var out []Category
	for _, p := range priority {
		if p.match(w) {
			out = append(out, p.category)
		}
	}
	return out
}

// Select returns the highest priority category raised by w, or CategoryNone.
func Select(w trust.Warning) Category {
	for _, p := range priority {
		if p.match(w) {
			return p.category
		}
	}
	return CategoryNone
}

// FatalAlert is the alert a category escalates to when nobody can be asked.
func FatalAlert(c Category) trust.AlertCode {
	switch c {
	case CategoryNone:
		return trust.AlertNone
	case CategoryExpired:
		return trust.AlertCertificateExpired
	case CategoryLowEncryption, CategoryLowEncryptionCipherDisabled:
		return trust.AlertInsufficientSecurity
	}
	return trust.AlertAccessDenied
}
