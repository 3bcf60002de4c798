// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package truststore

import (
	"crypto/x509"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

// Kind selects a certificate collection.
type Kind uint8

const (
	KindRoot Kind = iota
	KindIntermediate
	KindUntrusted
	KindPersonal
)

// Kinds lists every collection in a stable order.
var Kinds = []Kind{KindRoot, KindIntermediate, KindUntrusted, KindPersonal}

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindIntermediate:
		return "intermediate"
	case KindUntrusted:
		return "untrusted"
	case KindPersonal:
		return "personal"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Status is the lifecycle state of a record since the last flush.
type Status uint8

const (
	StatusNotUpdated Status = iota
	StatusInserted
	StatusUpdated
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusInserted:
		return "inserted"
	case StatusUpdated:
		return "updated"
	case StatusDeleted:
		return "deleted"
	}
	return "not_updated"
}

// Flags are the trust flags carried by a record.
type Flags uint8

const (
	// FlagWarnIfUsed raises a certificate warning whenever the record
	// takes part in a validated chain.
	FlagWarnIfUsed Flags = 1 << iota
	// FlagDenyIfUsed rejects any chain the record takes part in.
	FlagDenyIfUsed
	// FlagPreShipped marks records that came with the installation.
	FlagPreShipped
	// FlagFromRepository marks records installed from the repository feed.
	FlagFromRepository
)

// Has reports whether every flag in f is set.
func (f Flags) Has(flag Flags) bool { return flag != 0 && f&flag == flag }

func (f Flags) String() string {
	var parts []string
	for _, n := range []struct {
		flag Flags
		name string
	}{
		{FlagWarnIfUsed, "warn"},
		{FlagDenyIfUsed, "deny"},
		{FlagPreShipped, "preshipped"},
		{FlagFromRepository, "repository"},
	} {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Record is one certificate held by the store.
type Record struct {
	Fingerprint  x509certs.Fingerprint `json:"fingerprint"`
	RepositoryID x509certs.ID          `json:"repository_id"`
	Kind         Kind                  `json:"kind"`
	Name         string                `json:"name,omitempty"`
	Subject      []byte                `json:"subject"`
	DER          []byte                `json:"der"`
	Flags        Flags                 `json:"flags,omitempty"`

	// PrivateKey and Salt are only set on personal certificates. The key is
	// stored encrypted; the store never looks inside.
	PrivateKey []byte `json:"private_key,omitempty"`
	Salt       []byte `json:"salt,omitempty"`

	Status Status `json:"-"`

	cert *x509.Certificate
}

// NewRecord builds a record of kind from a parsed certificate.
func NewRecord(kind Kind, cert *x509.Certificate) *Record {
	name := cert.Subject.CommonName
	if name == "" {
		name = cert.Subject.String()
	}
	return &Record{
		Fingerprint:  x509certs.FingerprintOf(cert.Raw),
		RepositoryID: x509certs.SubjectID(cert),
		Kind:         kind,
		Name:         name,
		Subject:      cert.RawSubject,
		DER:          cert.Raw,
		cert:         cert,
	}
}

// Certificate parses and caches the record's DER.
func (r *Record) Certificate() (*x509.Certificate, error) {
	if r.cert != nil {
		return r.cert, nil
	}
	c, err := x509.ParseCertificate(r.DER)
	if err != nil {
		return nil, fmt.Errorf("truststore: record %s: %w", r.Fingerprint, err)
	}
	r.cert = c
	return c, nil
}

// Live reports whether the record has not been deleted.
func (r *Record) Live() bool { return r.Status != StatusDeleted }

// Clone returns a copy that shares the immutable DER and parsed certificate.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Acceptance is a remembered decision about one certificate for one server.
type Acceptance struct {
	Fingerprint x509certs.Fingerprint `json:"fingerprint"`
	Host        string                `json:"host"`
	Port        int                   `json:"port"`
	Scope       trust.Scope           `json:"scope"`
	Names       []string              `json:"names,omitempty"`

	Mode     trust.ConfirmMode       `json:"mode"`
	Warnings trust.Warning           `json:"warnings"`
	Rating   trust.SecurityRating    `json:"rating"`
	Reasons  trust.LowSecurityReason `json:"reasons,omitempty"`

	// TrustedUntil bounds the acceptance. Zero means until NotAfter.
	TrustedUntil time.Time `json:"trusted_until,omitzero"`
	// NotAfter is the expiry of the accepted certificate.
	NotAfter  time.Time `json:"not_after"`
	CreatedAt time.Time `json:"created_at"`

	// Chain is the validated chain the decision was made on, leaf first.
	Chain [][]byte `json:"chain,omitempty"`
}

// Expired reports whether the acceptance no longer applies at now.
func (a *Acceptance) Expired(now time.Time) bool {
	until := a.TrustedUntil
	if until.IsZero() {
		until = a.NotAfter
	}
	return !until.IsZero() && now.After(until)
}

// Persistent reports whether the acceptance survives a flush.
func (a *Acceptance) Persistent() bool { return a.Mode == trust.PermanentlyConfirmed }

// Clone returns a deep enough copy for callers to keep.
func (a *Acceptance) Clone() *Acceptance {
	c := *a
	c.Names = slices.Clone(a.Names)
	c.Chain = slices.Clone(a.Chain)
	return &c
}

type acceptanceKey struct {
	fp    x509certs.Fingerprint
	host  string
	port  int
	scope trust.Scope
}

func keyOf(fp x509certs.Fingerprint, host string, port int, scope trust.Scope) acceptanceKey {
	return acceptanceKey{fp: fp, host: normalizeHost(host), port: port, scope: scope}
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
