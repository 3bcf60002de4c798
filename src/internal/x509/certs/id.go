// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// IDVersion is the leading byte of every repository [ID].
const IDVersion byte = 0x01

// ErrInvalidID is returned when a hex encoded identifier has the wrong shape.
var ErrInvalidID = errors.New("x509certs: invalid identifier")

// Fingerprint is the SHA-256 digest of a certificate's DER encoding.
type Fingerprint [sha256.Size]byte

// FingerprintOf returns the fingerprint of der.
func FingerprintOf(der []byte) Fingerprint { return sha256.Sum256(der) }

// String returns the upper case hex form.
func (f Fingerprint) String() string { return strings.ToUpper(hex.EncodeToString(f[:])) }

// IsZero reports whether f is unset.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// ParseFingerprint parses the hex form produced by [Fingerprint.String].
// Colons are ignored so the usual "AB:CD:.." rendering is accepted too.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	raw, err := hex.DecodeString(strings.ReplaceAll(s, ":", ""))
	if err != nil || len(raw) != len(f) {
		return f, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	copy(f[:], raw)
	return f, nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ID identifies a certificate inside repository feeds.
//
// It is the version byte followed by SHA-256 over a DER name and, depending
// on how it was derived, the public key bits or the authority key id. The
// subject form of an ID therefore matches the same logical CA no matter
// which repository entry delivered it.
type ID [1 + sha256.Size]byte

// String returns the upper case hex form used in feed URLs and lists.
func (id ID) String() string { return strings.ToUpper(hex.EncodeToString(id[:])) }

// IsZero reports whether id is unset.
func (id ID) IsZero() bool { return id == ID{} }

// ParseID parses the hex form produced by [ID.String].
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(raw) != len(id) || raw[0] != IDVersion {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	copy(id[:], raw)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// publicKeyBits returns the contents of the subjectPublicKey BIT STRING.
func publicKeyBits(cert *x509.Certificate) []byte {
	var spki subjectPublicKeyInfo
	if _, err := asn1.Unmarshal(cert.RawSubjectPublicKeyInfo, &spki); err != nil {
		return nil
	}
	return spki.PublicKey.Bytes
}

func makeID(name []byte, extra []byte) ID {
	h := sha256.New()
	h.Write(name)
	h.Write(extra)

	var id ID
	id[0] = IDVersion
	copy(id[1:], h.Sum(nil))
	return id
}

// IsSelfIssued reports whether cert names itself as issuer.
func IsSelfIssued(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawSubject, cert.RawIssuer)
}

// SubjectID derives the repository id of cert itself from its subject name
// and public key.
func SubjectID(cert *x509.Certificate) ID {
	return makeID(cert.RawSubject, publicKeyBits(cert))
}

// IssuerID derives the repository id of the certificate that issued cert.
//
// A self-issued certificate contributes its own key. Otherwise the authority
// key id is mixed in when useKeyID is set and the extension is present.
func IssuerID(cert *x509.Certificate, useKeyID bool) ID {
	switch {
	case IsSelfIssued(cert):
		return makeID(cert.RawIssuer, publicKeyBits(cert))
	case useKeyID && len(cert.AuthorityKeyId) > 0:
		return makeID(cert.RawIssuer, cert.AuthorityKeyId)
	default:
		return makeID(cert.RawIssuer, nil)
	}
}

// IssuerIDCandidates returns the ids to try, most specific first, when
// looking for the issuer of cert in a repository. Duplicates are dropped.
func IssuerIDCandidates(cert *x509.Certificate) []ID {
	withKID := IssuerID(cert, true)
	withoutKID := IssuerID(cert, false)
	if withKID == withoutKID {
		return []ID{withKID}
	}
	return []ID{withKID, withoutKID}
}

// AliasIDs returns every id under which cert may be referenced by the
// certificates it issued: the subject id, the name plus subject key id, and
// the bare name form. Repository indexes publish CA entries under all of them.
func AliasIDs(cert *x509.Certificate) []ID {
	ids := []ID{SubjectID(cert)}
	if len(cert.SubjectKeyId) > 0 {
		ids = append(ids, makeID(cert.RawSubject, cert.SubjectKeyId))
	}
	return append(ids, makeID(cert.RawSubject, nil))
}
