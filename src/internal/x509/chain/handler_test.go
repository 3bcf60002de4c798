// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain_test

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
)

type pki struct {
	root  *testpki.Authority
	inter *testpki.Authority
	leaf  *testpki.Authority
}

func newPKI(t *testing.T) pki {
	root := testpki.NewRoot(t, "Handler Root")
	inter := root.NewIntermediate(t, "Handler Intermediate")
	leaf := inter.NewLeaf(t, []string{"www.example.com", "example.com"})
	return pki{root: root, inter: inter, leaf: leaf}
}

func TestHandler_VerifySignatures(t *testing.T) {
	p := newPKI(t)
	other := testpki.NewRoot(t, "Unrelated Root")

	tests := []struct {
		name       string
		chain      [][]byte
		hints      x509chain.Hints
		wantOK     bool
		wantLen    int
		unresolved int
		selfSigned bool
		status     x509chain.CertStatus
	}{
		{
			name:       "Presented chain reaches trusted root",
			chain:      testpki.Chain(p.leaf, p.inter),
			hints:      x509chain.Hints{Roots: []*x509.Certificate{p.root.Cert}},
			wantOK:     true,
			wantLen:    3,
			unresolved: -1,
		},
		{
			name:       "Missing intermediate is unresolved",
			chain:      testpki.Chain(p.leaf),
			hints:      x509chain.Hints{Roots: []*x509.Certificate{p.root.Cert}},
			wantLen:    1,
			unresolved: 0,
			status:     x509chain.StatusNoIssuer,
		},
		{
			name:  "Intermediate supplied by hints",
			chain: testpki.Chain(p.leaf),
			hints: x509chain.Hints{
				Roots:         []*x509.Certificate{p.root.Cert},
				Intermediates: []*x509.Certificate{p.inter.Cert},
			},
			wantOK:     true,
			wantLen:    3,
			unresolved: -1,
		},
		{
			name:       "Untrusted self-signed top",
			chain:      testpki.Chain(p.leaf, p.inter, p.root),
			hints:      x509chain.Hints{Roots: []*x509.Certificate{other.Cert}},
			wantLen:    3,
			unresolved: -1,
			selfSigned: true,
		},
		{
			name:       "Revoked hint marks certificate",
			chain:      testpki.Chain(p.leaf, p.inter),
			hints:      x509chain.Hints{Roots: []*x509.Certificate{p.root.Cert}, Revoked: []x509certs.Fingerprint{x509certs.FingerprintOf(p.leaf.Cert.Raw)}},
			wantLen:    3,
			unresolved: -1,
			status:     x509chain.StatusRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := x509chain.NewHandler()
			require.NoError(t, h.LoadChain(tt.chain))

			v, err := h.VerifySignatures(x509chain.PurposeServerAuth, tt.hints)
			require.NoError(t, err)

			assert.Equal(t, tt.wantOK, v.OK())
			assert.Len(t, v.Chain, tt.wantLen)
			assert.Equal(t, tt.unresolved, v.UnresolvedAt)
			assert.Equal(t, tt.selfSigned, v.SelfSignedTop)
			if tt.status != 0 {
				assert.True(t, v.Any(tt.status), "expected %s in %v", tt.status, v.Status)
			}
			assert.Same(t, v, h.Validation())
		})
	}
}

func TestHandler_BadSignatureAndCAFlags(t *testing.T) {
	root := testpki.NewRoot(t, "Flags Root")
	notCA := root.NewIntermediate(t, "Not A CA", testpki.WithoutCAFlag())
	leaf := notCA.NewLeaf(t, []string{"flags.example.com"})

	h := x509chain.NewHandler()
	require.NoError(t, h.LoadChain(testpki.Chain(leaf, notCA)))
	v, err := h.VerifySignatures(x509chain.PurposeServerAuth, x509chain.Hints{Roots: []*x509.Certificate{root.Cert}})
	require.NoError(t, err)
	assert.True(t, v.OK())
	assert.True(t, v.Status[1].Has(x509chain.StatusIncorrectCAFlags))

	// Tampering with the signature keeps the certificate parseable but
	// breaks verification against the otherwise matching root.
	direct := root.NewLeaf(t, []string{"tampered.example.com"})
	der := append([]byte(nil), direct.Cert.Raw...)
	der[len(der)-1] ^= 0xff

	h2 := x509chain.NewHandler()
	require.NoError(t, h2.LoadChain([][]byte{der}))
	v2, err := h2.VerifySignatures(x509chain.PurposeServerAuth, x509chain.Hints{Roots: []*x509.Certificate{root.Cert}})
	require.NoError(t, err)
	assert.False(t, v2.OK())
	assert.True(t, v2.Status[0].Has(x509chain.StatusBadSignature))
	assert.Equal(t, -1, v2.UnresolvedAt)
}

func TestHandler_ExpiryAndPurpose(t *testing.T) {
	root := testpki.NewRoot(t, "Expiry Root")
	past := time.Now().Add(-48 * time.Hour)
	expired := root.NewLeaf(t, []string{"old.example.com"}, testpki.WithValidity(past.Add(-time.Hour), past))
	clientOnly := root.NewLeaf(t, []string{"client.example.com"},
		testpki.WithKeyUsage(x509.KeyUsageDigitalSignature, x509.ExtKeyUsageClientAuth))

	h := x509chain.NewHandler()
	require.NoError(t, h.LoadChain(testpki.Chain(expired)))
	assert.Equal(t, x509chain.Expired, h.IsExpired(0, time.Now()))
	assert.Equal(t, x509chain.NotYetValid, h.IsExpired(0, past.Add(-2*time.Hour)))
	assert.Equal(t, x509chain.Valid, h.IsExpired(0, past.Add(-time.Minute)))

	v, err := h.VerifySignatures(x509chain.PurposeServerAuth, x509chain.Hints{Roots: []*x509.Certificate{root.Cert}})
	require.NoError(t, err)
	assert.True(t, v.Status[0].Has(x509chain.StatusExpired))

	h2 := x509chain.NewHandler()
	require.NoError(t, h2.LoadChain(testpki.Chain(clientOnly)))
	v2, err := h2.VerifySignatures(x509chain.PurposeServerAuth, x509chain.Hints{Roots: []*x509.Certificate{root.Cert}})
	require.NoError(t, err)
	assert.True(t, v2.Status[0].Has(x509chain.StatusWrongPurpose))
}

func TestHandler_Accessors(t *testing.T) {
	p := newPKI(t)

	h := x509chain.NewHandler()
	_, err := h.VerifySignatures(x509chain.PurposeAny, x509chain.Hints{})
	assert.ErrorIs(t, err, x509chain.ErrNoChainLoaded)

	require.NoError(t, h.LoadChain(testpki.Chain(p.leaf, p.inter, p.root)))
	assert.Equal(t, 3, h.CertificateCount())
	assert.Equal(t, p.leaf.Cert.RawSubject, h.SubjectName(0))
	assert.Equal(t, p.inter.Cert.RawSubject, h.IssuerName(0))
	assert.Len(t, h.PublicKeyHash(1), 32)
	assert.Nil(t, h.SubjectName(7))
	assert.False(t, h.IsSelfSigned(0))
	assert.True(t, h.IsSelfSigned(2))

	fork := h.Fork()
	require.NoError(t, fork.LoadChain(testpki.Chain(p.root)))
	assert.Equal(t, 3, h.CertificateCount(), "fork must not alias the original")
	assert.Equal(t, 1, fork.CertificateCount())

	assert.ErrorIs(t, h.LoadChain(nil), x509certs.ErrEmptyInput)
}

func TestStrengthHelpers(t *testing.T) {
	root := testpki.NewRoot(t, "Strength Root")
	weak := root.NewLeaf(t, []string{"weak.example.com"}, testpki.WithWeakRSA(512))
	signOnly := root.NewLeaf(t, []string{"sign.example.com"},
		testpki.WithKeyUsage(x509.KeyUsageContentCommitment, x509.ExtKeyUsageServerAuth))

	alg, name, bits := x509chain.KeyStrength(weak.Cert)
	assert.Equal(t, x509chain.KeyFactoring, alg)
	assert.Equal(t, "RSA", name)
	assert.Equal(t, 512, bits)

	alg, _, bits = x509chain.KeyStrength(root.Cert)
	assert.Equal(t, x509chain.KeyElliptic, alg)
	assert.Equal(t, 256, bits)

	assert.Equal(t, x509chain.SignatureStrong, x509chain.SignatureStrength(root.Cert))
	assert.Equal(t, []string{"weak.example.com"}, x509chain.ServerNames(weak.Cert))
	assert.True(t, x509chain.AuthenticationOnly(signOnly.Cert))
	assert.False(t, x509chain.AuthenticationOnly(weak.Cert))
}
