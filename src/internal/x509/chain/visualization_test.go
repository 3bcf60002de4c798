// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain_test

import (
	"crypto/x509"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
)

func TestRenderTableAndTree(t *testing.T) {
	p := newPKI(t)

	h := x509chain.NewHandler()
	require.NoError(t, h.LoadChain(testpki.Chain(p.leaf, p.inter)))
	v, err := h.VerifySignatures(x509chain.PurposeServerAuth, x509chain.Hints{Roots: []*x509.Certificate{p.root.Cert}})
	require.NoError(t, err)

	table := x509chain.RenderTable(v)
	assert.Contains(t, table, "www.example.com")
	assert.Contains(t, table, "Root CA")
	assert.Contains(t, table, "256-bit ECDSA")

	tree := x509chain.RenderASCIITree(v)
	lines := strings.Split(strings.TrimSpace(tree), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "End-Entity")
	assert.Contains(t, lines[2], "Handler Root")

	assert.Equal(t, "No certificates to display", x509chain.RenderTable(nil))
	assert.Equal(t, "No certificates in chain", x509chain.RenderASCIITree(nil))
}

func TestRole(t *testing.T) {
	tests := []struct {
		name     string
		index, n int
		anchored bool
		want     string
	}{
		{name: "Lone trusted", index: 0, n: 1, anchored: true, want: "Trusted Root"},
		{name: "Lone untrusted", index: 0, n: 1, want: "Self-Signed Certificate"},
		{name: "Leaf", index: 0, n: 3, anchored: true, want: "End-Entity"},
		{name: "Middle", index: 1, n: 3, anchored: true, want: "Intermediate CA"},
		{name: "Anchored top", index: 2, n: 3, anchored: true, want: "Root CA"},
		{name: "Unanchored top", index: 2, n: 3, want: "Top Of Chain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, x509chain.Role(tt.index, tt.n, tt.anchored))
		})
	}
}
