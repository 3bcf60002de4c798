// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package repository_test

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
)

type feedCert struct {
	cert   *testpki.Authority
	name   string
	before string
	after  string
	warn   bool
	deny   bool
}

func certificateFeed(certs ...feedCert) []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n<certificates>\n")
	for _, c := range certs {
		b.WriteString("  <certificate")
		if c.before != "" {
			fmt.Fprintf(&b, " before=%q", c.before)
		}
		if c.after != "" {
			fmt.Fprintf(&b, " after=%q", c.after)
		}
		b.WriteString(">\n")
		if c.name != "" {
			fmt.Fprintf(&b, "    <shortname>%s</shortname>\n", c.name)
		}
		fmt.Fprintf(&b, "    <certificate-data>%s</certificate-data>\n", base64.StdEncoding.EncodeToString(c.cert.Cert.Raw))
		if c.warn {
			b.WriteString("    <warn/>\n")
		}
		if c.deny {
			b.WriteString("    <deny/>\n")
		}
		b.WriteString("  </certificate>\n")
	}
	b.WriteString("</certificates>\n")
	return []byte(b.String())
}

func items(ids ...x509certs.ID) string {
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "<item>%s</item>", id)
	}
	return b.String()
}

func TestActive(t *testing.T) {
	v := semver.MustParse("1.5.0")

	tests := []struct {
		name          string
		before, after string
		version       *semver.Version
		want          bool
	}{
		{name: "No gating", want: true, version: v},
		{name: "Before later version", before: "2.0.0", version: v, want: true},
		{name: "Before same version", before: "1.5.0", version: v, want: false},
		{name: "Before earlier version", before: "1.0", version: v, want: false},
		{name: "After earlier version", after: "1.0.0", version: v, want: true},
		{name: "After same version", after: "1.5.0", version: v, want: true},
		{name: "After later version", after: "1.6.0", version: v, want: false},
		{name: "Window", after: "1.0.0", before: "2.0.0", version: v, want: true},
		{name: "Garbage bounds are ignored", before: "soon", after: "later", version: v, want: true},
		{name: "No version", before: "0.1.0", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repository.Active(tt.before, tt.after, tt.version))
		})
	}
}

func TestParseCertificates(t *testing.T) {
	old := testpki.NewRoot(t, "Old Root")
	current := testpki.NewRoot(t, "Current Root")
	future := testpki.NewRoot(t, "Future Root")

	data := certificateFeed(
		feedCert{cert: old, before: "1.0.0"},
		feedCert{cert: current, name: "Current", after: "1.0.0", warn: true},
		feedCert{cert: future, after: "9.0.0", deny: true},
	)

	entries, err := repository.ParseCertificates(data, truststore.KindRoot, semver.MustParse("1.2.0"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "Current", e.Name)
	assert.True(t, e.Warn)
	assert.False(t, e.Deny)
	assert.Equal(t, x509certs.SubjectID(current.Cert), e.ID)

	rec := e.Record()
	assert.True(t, rec.Flags.Has(truststore.FlagFromRepository|truststore.FlagWarnIfUsed))
	assert.Equal(t, truststore.KindRoot, rec.Kind)

	all, err := repository.ParseCertificates(data, truststore.KindRoot, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, all[2].Record().Flags.Has(truststore.FlagDenyIfUsed))
}

func TestParseCertificatesSkipsBrokenEntries(t *testing.T) {
	good := testpki.NewRoot(t, "Good Root")
	data := []byte(`<certificates>
  <certificate><certificate-data>!!!not base64</certificate-data></certificate>
  <certificate><certificate-data>` + base64.StdEncoding.EncodeToString([]byte("not der")) + `</certificate-data></certificate>
  <certificate><shortname>no data</shortname></certificate>
  <certificate><certificate-data>
    ` + base64.StdEncoding.EncodeToString(good.Cert.Raw) + `
  </certificate-data></certificate>
</certificates>`)

	entries, err := repository.ParseCertificates(data, truststore.KindIntermediate, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Good Root", entries[0].Certificate.Subject.CommonName)
	assert.Equal(t, truststore.KindIntermediate, entries[0].Kind)
	assert.Empty(t, entries[0].Name)
}

func TestParseIndex(t *testing.T) {
	root := testpki.NewRoot(t, "Index Root")
	inter := root.NewIntermediate(t, "Index Intermediate")
	bad := testpki.NewRoot(t, "Index Untrusted")
	gone := testpki.NewRoot(t, "Index Deleted")

	rootID := x509certs.SubjectID(root.Cert)
	interID := x509certs.SubjectID(inter.Cert)

	data := []byte(`<?xml version="1.0"?>
<repository>
  <repository-list>` + items(rootID, rootID) + `<item>garbage</item></repository-list>
  <intermediate-list>` + items(interID) + `</intermediate-list>
  <untrusted-list>` + items(x509certs.SubjectID(bad.Cert)) + `</untrusted-list>
  <delete-list>` + items(x509certs.SubjectID(gone.Cert)) + `</delete-list>
  <crl-location>
    <item id="` + rootID.String() + `">
      <url>http://crl.example.com/root.crl</url>
      <url>http://mirror.example.com/root.crl</url>
      <url> </url>
    </item>
    <item id="nope"><url>http://ignored</url></item>
  </crl-location>
  <ocsp-override>
    <item id="` + interID.String() + `" url="http://ocsp.example.com"/>
  </ocsp-override>
</repository>`)

	idx, err := repository.ParseIndex(data)
	require.NoError(t, err)

	assert.Equal(t, []x509certs.ID{rootID}, idx.Roots)
	assert.Equal(t, []x509certs.ID{interID}, idx.Intermediates)
	assert.Equal(t, []x509certs.ID{x509certs.SubjectID(bad.Cert)}, idx.Untrusted)
	assert.Equal(t, []x509certs.ID{x509certs.SubjectID(gone.Cert)}, idx.Delete)
	assert.Equal(t, []string{"http://crl.example.com/root.crl", "http://mirror.example.com/root.crl"}, idx.CRLLocations[rootID])
	assert.Len(t, idx.CRLLocations, 1)
	assert.Equal(t, "http://ocsp.example.com", idx.OCSPOverrides[interID])
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "Not XML", data: "<<<"},
		{name: "Wrong root", data: "<something/>"},
		{name: "Empty", data: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repository.ParseIndex([]byte(tt.data))
			assert.ErrorIs(t, err, repository.ErrMalformedFeed)

			_, err = repository.ParseCertificates([]byte(tt.data), truststore.KindRoot, nil)
			assert.ErrorIs(t, err, repository.ErrMalformedFeed)
		})
	}

	_, err := repository.ParseVersion("not-a-version")
	assert.ErrorIs(t, err, repository.ErrInvalidVersion)
}
