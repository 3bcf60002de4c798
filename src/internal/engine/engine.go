// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package engine assembles the trust engine from a [config.Config] and
// offers the operations the command line and MCP front ends share.
package engine

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/config"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/metrics"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/interaction"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/repository"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/revocation"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/verifier"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	x509chain "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/version"
)

// ErrNoCertificates is returned by Import when the input holds none.
var ErrNoCertificates = errors.New("engine: no certificates found")

// Engine owns the shared collaborators of every verification.
type Engine struct {
	cfg     *config.Config
	store   *truststore.Store
	client  *netfetch.Client
	updater *repository.Updater
	checker *revocation.Checker
	gateway *interaction.Gateway
	metrics *metrics.Metrics
	server  *metrics.Server
	clock   clockwork.Clock
	log     logger.Logger

	stopCache context.CancelFunc
}

// Option tweaks New.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c clockwork.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithStore uses an existing store instead of opening the configured one.
func WithStore(s *truststore.Store) Option { return func(e *Engine) { e.store = s } }

// New builds an engine. prompter answers prompts under the prompt policy;
// nil behaves like the deny policy.
func New(cfg *config.Config, prompter interaction.Prompter, log logger.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		log:     logger.OrNop(log),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		st, err := openStore(cfg, e.clock, e.log)
		if err != nil {
			return nil, err
		}
		e.store = st
	}

	e.client = netfetch.NewClient(netfetch.Config{
		Timeout:          cfg.Network.Timeout.Std(),
		IdleTimeout:      cfg.Network.IdleTimeout.Std(),
		MaxResponseBytes: cfg.Network.MaxResponseBytes,
		MaxRetries:       cfg.Network.MaxRetries,
		RetryDelay:       cfg.Network.RetryDelay.Std(),
		Version:          version.Version,
		UserAgent:        cfg.Network.UserAgent,
	}, e.log)

	if cfg.RepositoryEnabled() {
		e.updater = repository.NewUpdater(repository.Config{
			URL:            cfg.Repository.URL,
			RetryWindow:    cfg.Repository.RetryWindow.Std(),
			Version:        version.Version,
			MaxRequestTime: cfg.Network.Timeout.Std(),
			MaxIdleTime:    cfg.Network.IdleTimeout.Std(),
		}, e.client, e.store, e.clock, e.log)
	}

	if cfg.Revocation.Enabled {
		cache := revocation.NewCRLCache(revocation.CRLCacheConfig{
			MaxSize:         cfg.Revocation.CRLCacheSize,
			CleanupInterval: cfg.Revocation.CRLCacheCleanup.Std(),
		}, e.clock)
		e.checker = revocation.NewChecker(revocation.Options{
			CheckOCSP:      cfg.Revocation.OCSP,
			CheckCRL:       cfg.Revocation.CRL,
			MaxRequestTime: cfg.Network.Timeout.Std(),
			MaxIdleTime:    cfg.Network.IdleTimeout.Std(),
		}, cache, e.store, e.clock, e.log)

		ctx, cancel := context.WithCancel(context.Background())
		e.stopCache = cancel
		go cache.Run(ctx)
	}

	switch cfg.Interaction.Policy {
	case config.PolicyDeny:
		prompter = nil
	case config.PolicyAcceptSession:
		prompter = interaction.Static{Accept: true}
	}
	if prompter != nil {
		e.gateway = interaction.NewGateway(prompter, e.log)
	}

	if cfg.Metrics.Listen != "" {
		e.server = metrics.NewServer(cfg.Metrics.Listen, e.metrics, e.log)
		if err := e.server.Start(); err != nil {
			e.Close()
			return nil, err
		}
	}
	e.publishStoreStats()
	return e, nil
}

func openStore(cfg *config.Config, clock clockwork.Clock, log logger.Logger) (*truststore.Store, error) {
	opts := []truststore.Option{truststore.WithClock(clock), truststore.WithLogger(log)}
	if cfg.Store.Path != "" {
		p, err := truststore.OpenBolt(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("engine: open store: %w", err)
		}
		opts = append(opts, truststore.WithPersister(p))
	}
	return truststore.Open(opts...)
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the trust store.
func (e *Engine) Store() *truststore.Store { return e.store }

// Metrics returns the engine metrics.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Repository returns the repository updater, nil when disabled.
func (e *Engine) Repository() *repository.Updater { return e.updater }

// CRLCache returns the shared CRL cache, nil when revocation is disabled.
func (e *Engine) CRLCache() *revocation.CRLCache {
	if e.checker == nil {
		return nil
	}
	return e.checker.Cache()
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (e *Engine) MetricsAddr() string {
	if e.server == nil || e.server.Addr() == nil {
		return ""
	}
	return e.server.Addr().String()
}

// Environment returns a verification environment sharing the engine's
// collaborators.
func (e *Engine) Environment() *verifier.Environment {
	opts := verifier.DefaultOptions()
	opts.MinRSABits = e.cfg.Security.MinRSABits
	opts.PreferredRSABits = e.cfg.Security.PreferredRSABits
	opts.MinECBits = e.cfg.Security.MinECBits
	opts.PreferredECBits = e.cfg.Security.PreferredECBits
	opts.StrictUnknownCA = e.cfg.Security.StrictUnknownCA
	opts.MaxRequestTime = e.cfg.Network.Timeout.Std()
	opts.MaxIdleTime = e.cfg.Network.IdleTimeout.Std()

	return &verifier.Environment{
		Store:      e.store,
		Network:    e.client,
		Clock:      e.clock,
		Repository: e.updater,
		Revocation: e.checker,
		Gateway:    e.gateway,
		Logger:     e.log,
		Metrics:    e.metrics,
		Options:    opts,
	}
}

// Verify runs one verification of chain (DER, leaf first) for ident.
// Verifications are independent, so Verify may be called concurrently.
func (e *Engine) Verify(ctx context.Context, chain [][]byte, ident trust.Identity) (*trust.Verdict, error) {
	return e.VerifyWith(ctx, chain, ident, nil)
}

// VerifyWith is Verify with prompts answered by p instead of the configured
// policy. A nil p keeps the policy.
func (e *Engine) VerifyWith(ctx context.Context, chain [][]byte, ident trust.Identity, p interaction.Prompter) (*trust.Verdict, error) {
	env := e.Environment()
	if p != nil {
		env.Gateway = interaction.NewGateway(p, e.log)
	}
	v, err := verifier.New(env)
	if err != nil {
		return nil, err
	}
	defer e.publishStoreStats()
	return v.Run(ctx, chain, ident)
}

// Capture connects to host on port and returns the chain it presents with
// the identity of the connection.
func (e *Engine) Capture(ctx context.Context, host string, port int) ([][]byte, trust.Identity, error) {
	rc, err := x509chain.FetchRemoteChain(ctx, host, port, e.cfg.Network.Timeout.Std())
	if err != nil {
		return nil, trust.Identity{}, err
	}
	ident := trust.Identity{
		Host:        host,
		Port:        port,
		TLSVersion:  rc.Version,
		CipherSuite: rc.CipherSuite,
		StapledOCSP: rc.OCSPResponse,
	}
	return x509certs.RawChain(rc.Certificates), ident, nil
}

// Remote is the result of VerifyRemote.
type Remote struct {
	Identity trust.Identity
	Verdict  *trust.Verdict
	// Err is the verification failure, nil when accepted.
	Err error
}

// VerifyRemote captures the chain host presents on port and verifies it.
// A connection failure is returned as error; a rejected chain is reported
// in Remote.Err.
func (e *Engine) VerifyRemote(ctx context.Context, host string, port int) (*Remote, error) {
	chain, ident, err := e.Capture(ctx, host, port)
	if err != nil {
		return nil, err
	}
	verdict, err := e.Verify(ctx, chain, ident)
	if verdict == nil && err != nil {
		return nil, err
	}
	return &Remote{Identity: ident, Verdict: verdict, Err: err}, nil
}

// Import decodes PEM, DER or PKCS#7 data and inserts every certificate into
// the collection kind. It returns the imported certificates.
func (e *Engine) Import(kind truststore.Kind, data []byte) ([]*x509.Certificate, error) {
	certs, err := x509certs.NewCodec().DecodeBundle(data)
	if err != nil {
		return nil, fmt.Errorf("engine: import: %w", err)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificates
	}
	for _, c := range certs {
		if err := e.store.InsertCertificate(kind, c, 0); err != nil {
			return nil, fmt.Errorf("engine: import %s: %w", c.Subject.CommonName, err)
		}
	}
	e.publishStoreStats()
	return certs, nil
}

// RefreshRepository fetches the repository index and applies it.
func (e *Engine) RefreshRepository(ctx context.Context) (*repository.Index, error) {
	if !e.updater.Enabled() {
		return nil, repository.ErrDisabled
	}
	defer e.publishStoreStats()
	return e.updater.RefreshIndex(ctx)
}

func (e *Engine) publishStoreStats() {
	stats := e.store.Stats()
	counts := make(map[string]int, len(truststore.Kinds))
	for _, k := range truststore.Kinds {
		counts[k.String()] = stats.Records[k.String()]
	}
	e.metrics.SetStoreRecords(counts)
}

// Close flushes the store and releases everything the engine started.
func (e *Engine) Close() error {
	var errs []error
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, e.server.Stop(ctx))
		cancel()
	}
	if e.stopCache != nil {
		e.stopCache()
	}
	if e.store != nil {
		errs = append(errs, e.store.Flush(), e.store.Close())
	}
	return errors.Join(errs...)
}
