// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/ocsp"
)

const (
	// OCSPClockSkew is the tolerance applied to OCSP validity windows.
	OCSPClockSkew = time.Hour
	// OCSPMaxAge bounds responses that carry no nextUpdate.
	OCSPMaxAge = 100 * 24 * time.Hour
)

var (
	// ErrOCSPResponse indicates a response that could not be parsed or verified.
	ErrOCSPResponse = errors.New("x509chain: invalid OCSP response")

	// ErrOCSPStatus indicates a responder answered with a non-successful status.
	ErrOCSPStatus = errors.New("x509chain: OCSP responder refused request")

	// ErrOCSPStale indicates a response outside its validity window.
	ErrOCSPStale = errors.New("x509chain: OCSP response outside validity window")

	// ErrCRLInvalid indicates a CRL that could not be parsed or verified.
	ErrCRLInvalid = errors.New("x509chain: invalid CRL")

	// ErrCRLStale indicates a CRL whose nextUpdate has passed.
	ErrCRLStale = errors.New("x509chain: CRL is out of date")
)

// RevocationState is the revocation verdict for one certificate.
type RevocationState uint8

const (
	RevocationUnknown RevocationState = iota
	RevocationGood
	RevocationRevoked
)

func (s RevocationState) String() string {
	switch s {
	case RevocationGood:
		return "good"
	case RevocationRevoked:
		return "revoked"
	}
	return "unknown"
}

// RevocationResult describes one CRL or OCSP answer about a certificate.
type RevocationResult struct {
	State      RevocationState
	Source     string
	Reason     string
	RevokedAt  time.Time
	NextUpdate time.Time
}

// CreateOCSPRequest builds a DER OCSP request for cert issued by issuer.
func CreateOCSPRequest(cert, issuer *x509.Certificate) ([]byte, error) {
	req, err := ocsp.CreateRequest(cert, issuer, &ocsp.RequestOptions{Hash: crypto.SHA1})
	if err != nil {
		return nil, fmt.Errorf("x509chain: create OCSP request: %w", err)
	}
	return req, nil
}

// ValidateOCSPResponse parses der, verifies it was issued for cert by issuer
// (or a delegated responder) and checks its validity window at now.
func ValidateOCSPResponse(der []byte, cert, issuer *x509.Certificate, now time.Time) (*RevocationResult, error) {
	resp, err := ocsp.ParseResponseForCert(der, cert, issuer)
	if err != nil {
		var re ocsp.ResponseError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: %s", ErrOCSPStatus, re.Status)
		}
		return nil, fmt.Errorf("%w: %v", ErrOCSPResponse, err)
	}

	if resp.ThisUpdate.After(now.Add(OCSPClockSkew)) {
		return nil, fmt.Errorf("%w: thisUpdate %s is in the future", ErrOCSPStale, resp.ThisUpdate.Format(time.RFC3339))
	}
	if !resp.NextUpdate.IsZero() && resp.NextUpdate.Before(now.Add(-OCSPClockSkew)) {
		return nil, fmt.Errorf("%w: nextUpdate %s has passed", ErrOCSPStale, resp.NextUpdate.Format(time.RFC3339))
	}
	if resp.NextUpdate.IsZero() && now.Sub(resp.ThisUpdate) > OCSPMaxAge {
		return nil, fmt.Errorf("%w: response older than %s", ErrOCSPStale, OCSPMaxAge)
	}

	res := &RevocationResult{Source: "ocsp", NextUpdate: resp.NextUpdate}
	switch resp.Status {
	case ocsp.Good:
		res.State = RevocationGood
	case ocsp.Revoked:
		res.State = RevocationRevoked
		res.RevokedAt = resp.RevokedAt
		res.Reason = RevocationReason(resp.RevocationReason)
	default:
		res.State = RevocationUnknown
	}
	return res, nil
}

// ParseCRL parses a DER CRL and verifies issuer signed it.
// A CRL whose nextUpdate is older than now is rejected.
func ParseCRL(der []byte, issuer *x509.Certificate, now time.Time) (*x509.RevocationList, error) {
	rl, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCRLInvalid, err)
	}
	if issuer != nil {
		if err := rl.CheckSignatureFrom(issuer); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCRLInvalid, err)
		}
	}
	if !rl.NextUpdate.IsZero() && rl.NextUpdate.Before(now) {
		return nil, fmt.Errorf("%w: nextUpdate %s", ErrCRLStale, rl.NextUpdate.Format(time.RFC3339))
	}
	return rl, nil
}

// CRLStatus looks cert up in rl.
func CRLStatus(rl *x509.RevocationList, cert *x509.Certificate) *RevocationResult {
	res := &RevocationResult{State: RevocationGood, Source: "crl", NextUpdate: rl.NextUpdate}
	for _, entry := range rl.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(cert.SerialNumber) == 0 {
			res.State = RevocationRevoked
			res.RevokedAt = entry.RevocationTime
			res.Reason = RevocationReason(entry.ReasonCode)
			return res
		}
	}
	return res
}

// RevocationReason names an RFC 5280 CRLReason code.
func RevocationReason(code int) string {
	switch code {
	case ocsp.KeyCompromise:
		return "key_compromise"
	case ocsp.CACompromise:
		return "ca_compromise"
	case ocsp.AffiliationChanged:
		return "affiliation_changed"
	case ocsp.Superseded:
		return "superseded"
	case ocsp.CessationOfOperation:
		return "cessation_of_operation"
	case ocsp.CertificateHold:
		return "certificate_hold"
	case ocsp.RemoveFromCRL:
		return "remove_from_crl"
	case ocsp.PrivilegeWithdrawn:
		return "privilege_withdrawn"
	case ocsp.AACompromise:
		return "aa_compromise"
	}
	return "unspecified"
}
