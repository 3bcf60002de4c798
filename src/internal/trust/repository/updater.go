// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/netfetch"
	truststore "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust/store"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

var (
	// ErrDisabled is returned when no repository URL is configured.
	ErrDisabled = errors.New("repository: updates disabled")

	// ErrRecentlyAttempted is returned when the negative cache blocks a fetch.
	ErrRecentlyAttempted = errors.New("repository: fetched recently, not retrying")

	// ErrNotFound is returned when a feed holds no active entry for an id.
	ErrNotFound = errors.New("repository: no active certificate for id")
)

// Config configures an Updater.
type Config struct {
	// URL is the feed base URL. Empty disables the updater.
	URL string
	// RetryWindow is the negative cache window.
	RetryWindow time.Duration
	// Version is the application version used for entry gating.
	Version string

	MaxRequestTime time.Duration
	MaxIdleTime    time.Duration
}

// Updater fetches missing certificates and refreshes the repository index.
// It is safe for concurrent use and meant to be shared.
type Updater struct {
	cfg     Config
	version *semver.Version
	fetcher netfetch.Fetcher
	store   *truststore.Store
	cache   *RetrievalCache
	clock   clockwork.Clock
	log     logger.Logger

	group singleflight.Group

	foundMu sync.Mutex
	found   map[string]foundEntries

	batchMu sync.Mutex
	batch   *Batch
}

// NewUpdater returns an Updater writing index data into store. A version
// that semver cannot parse disables gating with a log line.
func NewUpdater(cfg Config, fetcher netfetch.Fetcher, store *truststore.Store, clock clockwork.Clock, log logger.Logger) *Updater {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	u := &Updater{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		cache:   NewRetrievalCache(cfg.RetryWindow, clock),
		found:   make(map[string]foundEntries),
		clock:   clock,
		log:     logger.OrNop(log),
	}
	if cfg.Version != "" {
		v, err := ParseVersion(cfg.Version)
		if err != nil {
			u.log.Printf("repository: version gating disabled: %v", err)
		}
		u.version = v
	}
	return u
}

// Enabled reports whether a feed URL is configured.
func (u *Updater) Enabled() bool { return u != nil && u.cfg.URL != "" }

// RetrievalCache returns the negative cache.
func (u *Updater) RetrievalCache() *RetrievalCache { return u.cache }

func (u *Updater) feedURL(parts ...string) string {
	return strings.TrimSuffix(u.cfg.URL, "/") + "/" + strings.Join(parts, "/")
}

func (u *Updater) fetch(ctx context.Context, url string) ([]byte, error) {
	return u.fetcher.Fetch(ctx, netfetch.Request{
		URL:            url,
		Accept:         "application/xml",
		MaxRequestTime: u.cfg.MaxRequestTime,
		MaxIdleTime:    u.cfg.MaxIdleTime,
	})
}

// AttemptKey is the negative cache key of a certificate lookup.
func AttemptKey(kind truststore.Kind, id x509certs.ID) string {
	return kind.String() + "/" + id.String()
}

// indexKey is the negative cache key of the index refresh.
const indexKey = "index"

// foundEntries is a successful lookup, served again for the retry window.
type foundEntries struct {
	entries []Entry
	at      time.Time
}

func (u *Updater) recent(key string) ([]Entry, bool) {
	u.foundMu.Lock()
	defer u.foundMu.Unlock()

	f, ok := u.found[key]
	if !ok {
		return nil, false
	}
	if u.clock.Since(f.at) >= u.cache.window {
		delete(u.found, key)
		return nil, false
	}
	return f.entries, true
}

func (u *Updater) remember(key string, entries []Entry) {
	u.foundMu.Lock()
	defer u.foundMu.Unlock()
	u.found[key] = foundEntries{entries: entries, at: u.clock.Now()}
}

// Blocked reports whether a lookup of id in kind would be refused by the
// negative cache. A lookup that succeeded within the window is not blocked.
func (u *Updater) Blocked(kind truststore.Kind, id x509certs.ID) bool {
	key := AttemptKey(kind, id)
	if _, ok := u.recent(key); ok {
		return false
	}
	return u.cache.Blocked(key)
}

// IndexRecent reports whether the index was fetched, or tried, within the
// retry window. Verifications do not wait on a new refresh while it holds.
func (u *Updater) IndexRecent() bool { return u.cache.Blocked(indexKey) }

// FetchMissing retrieves the active certificates published under id in the
// feed of kind. It does not touch the store; callers install the entries
// with [Updater.Install] once they decide to keep them.
//
// At most one fetch per id and kind happens per retry window. Concurrent
// callers asking for the same id share that fetch, and later callers within
// the window get its entries. Cancelling ctx stops the wait, not the fetch.
func (u *Updater) FetchMissing(ctx context.Context, id x509certs.ID, kind truststore.Kind) ([]Entry, error) {
	if !u.Enabled() {
		return nil, ErrDisabled
	}
	key := AttemptKey(kind, id)
	if entries, ok := u.recent(key); ok {
		return entries, nil
	}

	ch := u.group.DoChan(key, func() (any, error) {
		if entries, ok := u.recent(key); ok {
			return entries, nil
		}
		if !u.cache.TryAcquire(key) {
			return nil, ErrRecentlyAttempted
		}
		entries, err := u.lookup(context.WithoutCancel(ctx), id, kind)
		if err != nil {
			return nil, err
		}
		u.remember(key, entries)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			u.log.Printf("repository: fetch %s: %v", key, res.Err)
			return nil, res.Err
		}
		return res.Val.([]Entry), nil
	}
}

func (u *Updater) lookup(ctx context.Context, id x509certs.ID, kind truststore.Kind) ([]Entry, error) {
	data, err := u.fetch(ctx, u.feedURL(kind.String(), id.String()+".xml"))
	if err != nil {
		return nil, err
	}
	entries, err := ParseCertificates(data, kind, u.version)
	if err != nil {
		return nil, err
	}
	var matched []Entry
	for _, e := range entries {
		for _, alias := range x509certs.AliasIDs(e.Certificate) {
			if alias == id {
				matched = append(matched, e)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return matched, nil
}

// Install inserts entries into the store. Entries listed in the untrusted
// list go to the untrusted collection whatever feed delivered them.
func (u *Updater) Install(entries []Entry) error {
	var errs []error
	for _, e := range entries {
		r := e.Record()
		if u.store.IsInRepository(truststore.KindUntrusted, e.ID) {
			r.Kind = truststore.KindUntrusted
		}
		if err := u.store.Insert(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Batch is one index refresh. Waiters block on Done.
type Batch struct {
	done  chan struct{}
	index *Index
	err   error
}

// Done is closed when the refresh finished.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Result returns the outcome once Done is closed.
func (b *Batch) Result() (*Index, error) {
	<-b.done
	return b.index, b.err
}

// InProgress returns the running refresh, if any.
func (u *Updater) InProgress() (*Batch, bool) {
	u.batchMu.Lock()
	defer u.batchMu.Unlock()
	return u.batch, u.batch != nil
}

// StartRefresh starts an index refresh, or returns the one already running.
// Every caller of a running refresh gets the same Batch.
func (u *Updater) StartRefresh(ctx context.Context) *Batch {
	u.batchMu.Lock()
	defer u.batchMu.Unlock()

	if u.batch != nil {
		return u.batch
	}
	b := &Batch{done: make(chan struct{})}
	u.batch = b

	go func() {
		b.index, b.err = u.refresh(context.WithoutCancel(ctx))

		u.batchMu.Lock()
		u.batch = nil
		u.batchMu.Unlock()
		close(b.done)
	}()
	return b
}

// RefreshIndex fetches the index, applies it to the store and returns it.
// It joins a refresh already in progress.
func (u *Updater) RefreshIndex(ctx context.Context) (*Index, error) {
	b := u.StartRefresh(ctx)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.Done():
		return b.Result()
	}
}

func (u *Updater) refresh(ctx context.Context) (*Index, error) {
	if !u.Enabled() {
		return nil, ErrDisabled
	}
	u.cache.Record(indexKey)
	data, err := u.fetch(ctx, u.feedURL("index.xml"))
	if err != nil {
		u.log.Errorf("repository: refresh index: %v", err)
		return nil, err
	}
	idx, err := ParseIndex(data)
	if err != nil {
		u.log.Errorf("repository: refresh index: %v", err)
		return nil, err
	}

	u.store.SetRepositoryList(truststore.KindRoot, idx.Roots)
	u.store.SetRepositoryList(truststore.KindIntermediate, idx.Intermediates)
	u.store.SetRepositoryList(truststore.KindUntrusted, idx.Untrusted)
	u.store.SetCRLLocations(idx.CRLLocations)
	u.store.SetOCSPOverrides(idx.OCSPOverrides)
	if n := u.store.ApplyDeleteList(idx.Delete); n > 0 {
		u.log.Printf("repository: removed %d certificates on the delete list", n)
	}
	u.cache.Prune()

	u.log.Printf("repository: index refreshed: %d roots, %d intermediates, %d untrusted",
		len(idx.Roots), len(idx.Intermediates), len(idx.Untrusted))
	return idx, nil
}
