// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package repository

import (
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/beevik/etree"
	"github.com/samber/lo"

	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

var (
	// ErrMalformedFeed is returned for XML that does not match the feed format.
	ErrMalformedFeed = errors.New("repository: malformed feed")

	// ErrInvalidVersion is returned for a version string semver cannot parse.
	ErrInvalidVersion = errors.New("repository: invalid version")
)

// Index is the parsed repository index.
type Index struct {
	Roots         []x509certs.ID
	Intermediates []x509certs.ID
	Untrusted     []x509certs.ID
	Delete        []x509certs.ID
	CRLLocations  map[x509certs.ID][]string
	OCSPOverrides map[x509certs.ID]string
}

// Entry is one active certificate from a certificate feed.
type Entry struct {
	ID          x509certs.ID
	Kind        truststore.Kind
	Name        string
	Certificate *x509.Certificate
	Warn        bool
	Deny        bool
}

// Record converts the entry into a store record flagged as coming from the
// repository.
func (e Entry) Record() *truststore.Record {
	r := truststore.NewRecord(e.Kind, e.Certificate)
	if e.Name != "" {
		r.Name = e.Name
	}
	r.Flags = truststore.FlagFromRepository
	if e.Warn {
		r.Flags |= truststore.FlagWarnIfUsed
	}
	if e.Deny {
		r.Flags |= truststore.FlagDenyIfUsed
	}
	return r
}

func readRoot(data []byte, tag string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	root := doc.SelectElement(tag)
	if root == nil {
		return nil, fmt.Errorf("%w: missing <%s>", ErrMalformedFeed, tag)
	}
	return root, nil
}

// ParseIndex parses a repository index. Unparseable ids are skipped.
func ParseIndex(data []byte) (*Index, error) {
	root, err := readRoot(data, "repository")
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Roots:         idList(root.SelectElement("repository-list")),
		Intermediates: idList(root.SelectElement("intermediate-list")),
		Untrusted:     idList(root.SelectElement("untrusted-list")),
		Delete:        idList(root.SelectElement("delete-list")),
		CRLLocations:  make(map[x509certs.ID][]string),
		OCSPOverrides: make(map[x509certs.ID]string),
	}

	if crl := root.SelectElement("crl-location"); crl != nil {
		for _, item := range crl.SelectElements("item") {
			id, err := x509certs.ParseID(item.SelectAttrValue("id", ""))
			if err != nil {
				continue
			}
			urls := lo.FilterMap(item.SelectElements("url"), func(u *etree.Element, _ int) (string, bool) {
				s := strings.TrimSpace(u.Text())
				return s, s != ""
			})
			if len(urls) > 0 {
				idx.CRLLocations[id] = lo.Uniq(urls)
			}
		}
	}

	if ocsp := root.SelectElement("ocsp-override"); ocsp != nil {
		for _, item := range ocsp.SelectElements("item") {
			id, err := x509certs.ParseID(item.SelectAttrValue("id", ""))
			if err != nil {
				continue
			}
			if u := strings.TrimSpace(item.SelectAttrValue("url", "")); u != "" {
				idx.OCSPOverrides[id] = u
			}
		}
	}
	return idx, nil
}

func idList(list *etree.Element) []x509certs.ID {
	if list == nil {
		return nil
	}
	var ids []x509certs.ID
	for _, item := range list.SelectElements("item") {
		if id, err := x509certs.ParseID(item.Text()); err == nil {
			ids = append(ids, id)
		}
	}
	return lo.Uniq(ids)
}

// ParseCertificates parses a certificate feed for kind and returns the
// entries active in version. Entries whose certificate cannot be decoded are
// skipped.
func ParseCertificates(data []byte, kind truststore.Kind, version *semver.Version) ([]Entry, error) {
	root, err := readRoot(data, "certificates")
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, el := range root.SelectElements("certificate") {
		if !Active(el.SelectAttrValue("before", ""), el.SelectAttrValue("after", ""), version) {
			continue
		}
		dataEl := el.SelectElement("certificate-data")
		if dataEl == nil {
			continue
		}
		der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(dataEl.Text()), ""))
		if err != nil {
			continue
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			continue
		}

		e := Entry{
			ID:          x509certs.SubjectID(cert),
			Kind:        kind,
			Certificate: cert,
			Warn:        el.SelectElement("warn") != nil,
			Deny:        el.SelectElement("deny") != nil,
		}
		if name := el.SelectElement("shortname"); name != nil {
			e.Name = strings.TrimSpace(name.Text())
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Active reports whether an entry gated by before and after applies to
// version. Empty bounds and unparseable bounds are ignored; a nil version
// ignores all gating.
func Active(before, after string, version *semver.Version) bool {
	if version == nil {
		return true
	}
	if before != "" {
		if b, err := semver.NewVersion(before); err == nil && !version.LessThan(b) {
			return false
		}
	}
	if after != "" {
		if a, err := semver.NewVersion(after); err == nil && version.LessThan(a) {
			return false
		}
	}
	return true
}

// ParseVersion parses an application version for gating.
func ParseVersion(v string) (*semver.Version, error) {
	sv, err := semver.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, v, err)
	}
	return sv, nil
}
