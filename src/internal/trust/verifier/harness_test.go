// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/metrics"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/revocation"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/verifier"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/testpki"
)

// server serves exact paths, plus any path below a registered prefix
// ending in "/".
type server struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string][]byte
	hits  map[string]int
	total int
}

func newServer(t *testing.T) *server {
	s := &server{files: make(map[string][]byte), hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.total++
		s.hits[r.URL.Path]++
		data, ok := s.files[r.URL.Path]
		if !ok {
			for p, d := range s.files {
				if strings.HasSuffix(p, "/") && strings.HasPrefix(r.URL.Path, p) {
					data, ok = d, true
					s.hits[p]++
					break
				}
			}
		}
		s.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *server) put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
}

func (s *server) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *server) requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// publish serves ca in the feed of kind under every id it answers to.
func (s *server) publish(kind truststore.Kind, ca *testpki.Authority) {
	feed := fmt.Sprintf(`<?xml version="1.0"?>
<certificates>
  <certificate>
    <shortname>%s</shortname>
    <certificate-data>%s</certificate-data>
  </certificate>
</certificates>
`, ca.Cert.Subject.CommonName, base64.StdEncoding.EncodeToString(ca.Cert.Raw))
	for _, id := range x509certs.AliasIDs(ca.Cert) {
		s.put(feedPath(kind, id), []byte(feed))
	}
}

func feedPath(kind truststore.Kind, id x509certs.ID) string {
	return "/feed/" + kind.String() + "/" + id.String() + ".xml"
}

type harness struct {
	t      *testing.T
	srv    *server
	store  *truststore.Store
	clock  clockwork.Clock
	env    *verifier.Environment
	phases []verifier.Phase

	mu       sync.Mutex
	prompts  []*interaction.Description
	decision interaction.Decision
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		t:     t,
		srv:   newServer(t),
		store: truststore.New(),
		clock: clockwork.NewRealClock(),
	}

	client := netfetch.NewClient(netfetch.Config{Timeout: 5 * time.Second, RetryDelay: time.Millisecond}, nil)
	updater := repository.NewUpdater(repository.Config{
		URL:     h.srv.URL + "/feed",
		Version: "1.0.0",
	}, client, h.store, h.clock, nil)
	checker := revocation.NewChecker(revocation.DefaultOptions(),
		revocation.NewCRLCache(revocation.DefaultCRLCacheConfig, h.clock), h.store, h.clock, nil)

	prompter := interaction.PrompterFunc(func(_ context.Context, d *interaction.Description) (interaction.Decision, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.prompts = append(h.prompts, d)
		return h.decision, nil
	})

	h.env = &verifier.Environment{
		Store:      h.store,
		Network:    client,
		Clock:      h.clock,
		Repository: updater,
		Revocation: checker,
		Gateway:    interaction.NewGateway(prompter, nil),
		Metrics:    metrics.New(),
		Options:    verifier.DefaultOptions(),
		Trace: func(_ string, _, to verifier.Phase) {
			h.phases = append(h.phases, to)
		},
	}
	return h
}

func (h *harness) decide(d interaction.Decision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decision = d
}

func (h *harness) promptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.prompts)
}

func (h *harness) lastPrompt() *interaction.Description {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.prompts) == 0 {
		return nil
	}
	return h.prompts[len(h.prompts)-1]
}

func (h *harness) trustRoot(ca *testpki.Authority) {
	require.NoError(h.t, h.store.InsertCertificate(truststore.KindRoot, ca.Cert, truststore.FlagPreShipped))
}

// listInRepository marks every alias of ca as available in the feed of kind
// without fetching the index.
func (h *harness) listInRepository(kind truststore.Kind, ca *testpki.Authority) {
	h.store.SetRepositoryList(kind, x509certs.AliasIDs(ca.Cert))
}

func (h *harness) run(chain [][]byte, host string) (*trust.Verdict, error) {
	h.t.Helper()
	return h.runAs(chain, ident(host))
}

func (h *harness) runAs(chain [][]byte, id trust.Identity) (*trust.Verdict, error) {
	h.t.Helper()
	h.phases = nil
	v, err := verifier.New(h.env)
	require.NoError(h.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return v.Run(ctx, chain, id)
}

func ident(host string) trust.Identity {
	return trust.Identity{Host: host, Port: 443}
}
