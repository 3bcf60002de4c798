// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package engine_test

import (
	"context"
	"encoding/pem"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/engine"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
)

func newEngine(t *testing.T, policy string) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Interaction.Policy = policy
	e, err := engine.New(cfg, nil, nil, engine.WithStore(truststore.New()))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestImportAndVerify(t *testing.T) {
	e := newEngine(t, config.PolicyDeny)
	root := testpki.NewRoot(t, "Engine Root")
	inter := root.NewIntermediate(t, "Engine Intermediate")
	leaf := inter.NewLeaf(t, []string{"www.example.com"})

	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: root.Cert.Raw})
	certs, err := e.Import(truststore.KindRoot, data)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.True(t, certs[0].Equal(root.Cert))

	ctx := context.Background()
	verdict, err := e.Verify(ctx, testpki.Chain(leaf, inter), trust.Identity{Host: "www.example.com", Port: 443})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)

	_, err = e.Verify(ctx, testpki.Chain(leaf, inter), trust.Identity{Host: "mail.example.com", Port: 443})
	assert.ErrorIs(t, err, trust.ErrAccessDenied, "the deny policy has no one to ask")

	_, err = e.Import(truststore.KindRoot, []byte("nothing here"))
	assert.Error(t, err)
}

func TestAcceptSessionPolicy(t *testing.T) {
	e := newEngine(t, config.PolicyAcceptSession)
	root := testpki.NewRoot(t, "Engine Root")
	leaf := root.NewLeaf(t, []string{"www.example.com"})
	_, err := e.Import(truststore.KindRoot, root.Cert.Raw)
	require.NoError(t, err)

	verdict, err := e.Verify(context.Background(), testpki.Chain(leaf), trust.Identity{Host: "mail.example.com", Port: 443})
	require.NoError(t, err)
	assert.Equal(t, trust.SessionConfirmed, verdict.Mode)
	assert.True(t, verdict.Warnings.Has(trust.WarnNameMismatch))
}

func TestVerifyWithPrompter(t *testing.T) {
	e := newEngine(t, config.PolicyDeny)
	root := testpki.NewRoot(t, "Engine Root")
	leaf := root.NewLeaf(t, []string{"www.example.com"})
	_, err := e.Import(truststore.KindRoot, root.Cert.Raw)
	require.NoError(t, err)

	ident := trust.Identity{Host: "mail.example.com", Port: 443}
	verdict, err := e.VerifyWith(context.Background(), testpki.Chain(leaf), ident, interaction.Static{Accept: true, Remember: true})
	require.NoError(t, err)
	assert.Equal(t, trust.PermanentlyConfirmed, verdict.Mode)

	// The remembered decision outlives the per-call prompter.
	verdict, err = e.Verify(context.Background(), testpki.Chain(leaf), ident)
	require.NoError(t, err)
	assert.Equal(t, trust.PermanentlyConfirmed, verdict.Mode)
}

func TestRefreshRepositoryDisabled(t *testing.T) {
	e := newEngine(t, config.PolicyDeny)
	assert.Nil(t, e.Repository())

	_, err := e.RefreshRepository(context.Background())
	assert.ErrorIs(t, err, repository.ErrDisabled)
}

func TestRefreshRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed/index.xml" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "<repository><repository-list></repository-list></repository>")
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Repository.URL = srv.URL + "/feed"
	e, err := engine.New(cfg, nil, nil, engine.WithStore(truststore.New()))
	require.NoError(t, err)
	defer e.Close()

	idx, err := e.RefreshRepository(context.Background())
	require.NoError(t, err)
	assert.Empty(t, idx.Roots)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Listen = "127.0.0.1:0"
	e, err := engine.New(cfg, nil, nil, engine.WithStore(truststore.New()))
	require.NoError(t, err)
	defer e.Close()

	addr := e.MetricsAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "store_records")
}

func TestVerifyRemote(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	e := newEngine(t, config.PolicyDeny)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	remote, err := e.VerifyRemote(ctx, host, port)
	require.NoError(t, err)
	require.NotNil(t, remote.Verdict)
	assert.False(t, remote.Verdict.Accepted)
	assert.ErrorIs(t, remote.Err, trust.ErrAccessDenied, "the test server certificate is self-signed")
	assert.True(t, remote.Verdict.Warnings.Has(trust.WarnUnknownChain))
	assert.NotZero(t, remote.Identity.TLSVersion)

	_, err = e.VerifyRemote(ctx, "127.0.0.1", 1)
	assert.Error(t, err)
}
