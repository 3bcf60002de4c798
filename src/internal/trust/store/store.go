// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package truststore

import (
	"bytes"
	"cmp"
	"crypto/x509"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/trust"
	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/tls-cert-trust-engine/src/logger"
)

var (
	// ErrUnknownKind is returned for a kind outside [Kinds].
	ErrUnknownKind = errors.New("truststore: unknown certificate kind")

	// ErrInvalidRecord is returned when a record lacks its certificate.
	ErrInvalidRecord = errors.New("truststore: invalid record")

	// ErrPersist wraps persistence failures reported by [Store.Flush].
	ErrPersist = errors.New("truststore: persistence failed")
)

// Option configures a Store.
type Option func(*Store)

// WithPersister sets where Flush writes and Load reads.
func WithPersister(p Persister) Option { return func(s *Store) { s.persister = p } }

// WithClock sets the clock used to expire acceptances.
func WithClock(c clockwork.Clock) Option { return func(s *Store) { s.clock = c } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(s *Store) { s.log = logger.OrNop(l) } }

// Store is the trust store. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	records map[Kind]map[x509certs.Fingerprint]*Record
	aliases map[Kind]map[x509certs.ID][]x509certs.Fingerprint

	acceptances map[acceptanceKey]*Acceptance
	revoked     map[x509certs.Fingerprint]struct{}

	repository    map[Kind]map[x509certs.ID]struct{}
	crlLocations  map[x509certs.ID][]string
	ocspOverrides map[x509certs.ID]string

	persister Persister
	clock     clockwork.Clock
	log       logger.Logger
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		records:       make(map[Kind]map[x509certs.Fingerprint]*Record, len(Kinds)),
		aliases:       make(map[Kind]map[x509certs.ID][]x509certs.Fingerprint, len(Kinds)),
		acceptances:   make(map[acceptanceKey]*Acceptance),
		revoked:       make(map[x509certs.Fingerprint]struct{}),
		repository:    make(map[Kind]map[x509certs.ID]struct{}),
		crlLocations:  make(map[x509certs.ID][]string),
		ocspOverrides: make(map[x509certs.ID]string),
		clock:         clockwork.NewRealClock(),
		log:           logger.Nop(),
	}
	for _, k := range Kinds {
		s.records[k] = make(map[x509certs.Fingerprint]*Record)
		s.aliases[k] = make(map[x509certs.ID][]x509certs.Fingerprint)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a Store populated from its persister.
func Open(opts ...Option) (*Store, error) {
	s := New(opts...)
	if s.persister == nil {
		return s, nil
	}
	snap, err := s.persister.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrPersist, err)
	}
	if err := s.restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) restore(snap *Snapshot) error {
	if snap == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range snap.Records {
		if _, err := r.Certificate(); err != nil {
			s.log.Printf("truststore: skipping unreadable record %s: %v", r.Fingerprint, err)
			continue
		}
		r.Status = StatusNotUpdated
		s.put(r)
	}
	for _, a := range snap.Acceptances {
		if !a.Persistent() {
			continue
		}
		s.acceptances[keyOf(a.Fingerprint, a.Host, a.Port, a.Scope)] = a
	}
	for _, fp := range snap.Revoked {
		s.revoked[fp] = struct{}{}
	}
	for kind, ids := range snap.Repository {
		s.setRepositoryList(kind, ids)
	}
	maps.Copy(s.crlLocations, snap.CRLLocations)
	maps.Copy(s.ocspOverrides, snap.OCSPOverrides)
	return nil
}

// put stores r and indexes it under every alias id. Callers hold mu.
func (s *Store) put(r *Record) {
	s.records[r.Kind][r.Fingerprint] = r
	cert, _ := r.Certificate()
	ids := []x509certs.ID{r.RepositoryID}
	if cert != nil {
		ids = x509certs.AliasIDs(cert)
	}
	for _, id := range ids {
		fps := s.aliases[r.Kind][id]
		if !slices.Contains(fps, r.Fingerprint) {
			s.aliases[r.Kind][id] = append(fps, r.Fingerprint)
		}
	}
}

// Insert adds r or, when a record with the same fingerprint exists in the
// same collection, replaces it. The stored status becomes Inserted or Updated.
func (s *Store) Insert(r *Record) error {
	if r == nil || len(r.DER) == 0 {
		return ErrInvalidRecord
	}
	if _, ok := s.records[r.Kind]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKind, r.Kind)
	}
	if _, err := r.Certificate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := r.Clone()
	if rec.Fingerprint.IsZero() {
		rec.Fingerprint = x509certs.FingerprintOf(rec.DER)
	}
	rec.Status = StatusInserted
	if old, ok := s.records[rec.Kind][rec.Fingerprint]; ok && old.Status != StatusInserted {
		rec.Status = StatusUpdated
	}
	s.put(rec)
	return nil
}

// InsertCertificate is a shorthand for Insert(NewRecord(kind, cert)) with flags.
func (s *Store) InsertCertificate(kind Kind, cert *x509.Certificate, flags Flags) error {
	r := NewRecord(kind, cert)
	r.Flags = flags
	return s.Insert(r)
}

// Remove logically deletes the record. It reports whether a live record was found.
func (s *Store) Remove(kind Kind, fp x509certs.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[kind][fp]
	if !ok || !r.Live() {
		return false
	}
	r.Status = StatusDeleted
	return true
}

// MarkDirty flags a live record as updated so the next Flush rewrites it.
func (s *Store) MarkDirty(kind Kind, fp x509certs.Fingerprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[kind][fp]
	if !ok || !r.Live() {
		return false
	}
	if r.Status == StatusNotUpdated {
		r.Status = StatusUpdated
	}
	return true
}

// Lookup returns a copy of the live record with fingerprint fp, or nil.
func (s *Store) Lookup(kind Kind, fp x509certs.Fingerprint) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.records[kind][fp]; ok && r.Live() {
		return r.Clone()
	}
	return nil
}

// FindRecord returns a copy of the first live record of kind matching pred,
// in fingerprint order. Not found is a nil result, not an error.
func (s *Store) FindRecord(kind Kind, pred func(*Record) bool) *Record {
	for _, r := range s.Records(kind) {
		if pred == nil || pred(r) {
			return r
		}
	}
	return nil
}

// Records returns copies of all live records of kind, in fingerprint order.
func (s *Store) Records(kind Kind) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.records[kind]))
	for _, r := range s.records[kind] {
		if r.Live() {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Record) int { return bytes.Compare(a.Fingerprint[:], b.Fingerprint[:]) })
	return out
}

// FindByID returns the live records of kind indexed under id.
func (s *Store) FindByID(kind Kind, id x509certs.ID) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, fp := range s.aliases[kind][id] {
		if r, ok := s.records[kind][fp]; ok && r.Live() {
			out = append(out, r.Clone())
		}
	}
	return out
}

// FindBySubject returns the live records of kind with the given DER subject.
func (s *Store) FindBySubject(kind Kind, subject []byte) []*Record {
	var out []*Record
	for _, r := range s.Records(kind) {
		if bytes.Equal(r.Subject, subject) {
			out = append(out, r)
		}
	}
	return out
}

// Certificates returns the parsed certificates of all live records of kind.
func (s *Store) Certificates(kind Kind) []*x509.Certificate {
	recs := s.Records(kind)
	out := make([]*x509.Certificate, 0, len(recs))
	for _, r := range recs {
		if c, err := r.Certificate(); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// IsBlacklisted reports whether cert is held in the untrusted collection,
// listed in the repository untrusted list, or carries the deny flag in any
// collection.
func (s *Store) IsBlacklisted(cert *x509.Certificate) bool {
	fp := x509certs.FingerprintOf(cert.Raw)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.records[KindUntrusted][fp]; ok && r.Live() {
		return true
	}
	if _, ok := s.repository[KindUntrusted][x509certs.SubjectID(cert)]; ok {
		return true
	}
	for _, k := range Kinds {
		if r, ok := s.records[k][fp]; ok && r.Live() && r.Flags.Has(FlagDenyIfUsed) {
			return true
		}
	}
	return false
}

// FlagsOf returns the union of flags of every live record holding cert.
func (s *Store) FlagsOf(cert *x509.Certificate) Flags {
	fp := x509certs.FingerprintOf(cert.Raw)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var f Flags
	for _, k := range Kinds {
		if r, ok := s.records[k][fp]; ok && r.Live() {
			f |= r.Flags
		}
	}
	return f
}

// IsRevoked reports whether fp is on the global revoked list.
func (s *Store) IsRevoked(fp x509certs.Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[fp]
	return ok
}

// AddRevoked puts fp on the global revoked list.
func (s *Store) AddRevoked(fp x509certs.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[fp] = struct{}{}
}

// Revoked returns the global revoked list.
func (s *Store) Revoked() []x509certs.Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Keys(s.revoked))
	slices.SortFunc(out, func(a, b x509certs.Fingerprint) int { return bytes.Compare(a[:], b[:]) })
	return out
}

// IsInRepository reports whether id is listed in the repository list of kind.
func (s *Store) IsInRepository(kind Kind, id x509certs.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.repository[kind][id]
	return ok
}

// SetRepositoryList replaces the repository membership list of kind.
func (s *Store) SetRepositoryList(kind Kind, ids []x509certs.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setRepositoryList(kind, ids)
}

func (s *Store) setRepositoryList(kind Kind, ids []x509certs.ID) {
	set := make(map[x509certs.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	s.repository[kind] = set
}

// RepositoryList returns the repository membership list of kind.
func (s *Store) RepositoryList(kind Kind) []x509certs.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Keys(s.repository[kind]))
	slices.SortFunc(out, func(a, b x509certs.ID) int { return bytes.Compare(a[:], b[:]) })
	return out
}

// ApplyDeleteList logically deletes every root or intermediate record
// indexed under one of ids and returns how many were removed.
func (s *Store) ApplyDeleteList(ids []x509certs.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, kind := range []Kind{KindRoot, KindIntermediate} {
		for _, id := range ids {
			for _, fp := range s.aliases[kind][id] {
				if r := s.records[kind][fp]; r != nil && r.Live() {
					r.Status = StatusDeleted
					n++
				}
			}
		}
	}
	return n
}

// SetCRLLocations replaces the CRL location override map.
func (s *Store) SetCRLLocations(m map[x509certs.ID][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crlLocations = maps.Clone(m)
	if s.crlLocations == nil {
		s.crlLocations = make(map[x509certs.ID][]string)
	}
}

// CRLLocations returns the override URLs for CRLs of the issuer with id.
func (s *Store) CRLLocations(id x509certs.ID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.crlLocations[id])
}

// SetOCSPOverrides replaces the OCSP responder override map.
func (s *Store) SetOCSPOverrides(m map[x509certs.ID]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ocspOverrides = maps.Clone(m)
	if s.ocspOverrides == nil {
		s.ocspOverrides = make(map[x509certs.ID]string)
	}
}

// OCSPOverride returns the responder URL override for the issuer with id.
func (s *Store) OCSPOverride(id x509certs.ID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.ocspOverrides[id]
	return u, ok
}

// FindAcceptance returns the live acceptance for (fp, host, port, scope).
// Expired acceptances are pruned on the way.
func (s *Store) FindAcceptance(fp x509certs.Fingerprint, host string, port int, scope trust.Scope) *Acceptance {
	key := keyOf(fp, host, port, scope)

	s.mu.RLock()
	a, ok := s.acceptances[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if a.Expired(s.clock.Now()) {
		s.mu.Lock()
		if s.acceptances[key] == a {
			delete(s.acceptances, key)
		}
		s.mu.Unlock()
		return nil
	}
	return a.Clone()
}

// AddAcceptance records a, superseding any acceptance for the same
// certificate, server, port and scope.
func (s *Store) AddAcceptance(a *Acceptance) {
	c := a.Clone()
	c.Host = normalizeHost(c.Host)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceptances[keyOf(c.Fingerprint, c.Host, c.Port, c.Scope)] = c
}

// RemoveAcceptance forgets one acceptance and reports whether it existed.
func (s *Store) RemoveAcceptance(fp x509certs.Fingerprint, host string, port int, scope trust.Scope) bool {
	key := keyOf(fp, host, port, scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.acceptances[key]
	delete(s.acceptances, key)
	return ok
}

// ForgetCertificate removes every acceptance of fp and returns the count.
func (s *Store) ForgetCertificate(fp x509certs.Fingerprint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.acceptances {
		if k.fp == fp {
			delete(s.acceptances, k)
			n++
		}
	}
	return n
}

// Acceptances returns copies of all unexpired acceptances ordered by host,
// port and creation time.
func (s *Store) Acceptances() []*Acceptance {
	now := s.clock.Now()

	s.mu.RLock()
	out := make([]*Acceptance, 0, len(s.acceptances))
	for _, a := range s.acceptances {
		if !a.Expired(now) {
			out = append(out, a.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Acceptance) int {
		return cmp.Or(
			cmp.Compare(a.Host, b.Host),
			cmp.Compare(a.Port, b.Port),
			a.CreatedAt.Compare(b.CreatedAt),
		)
	})
	return out
}

// Stats summarizes the store content.
type Stats struct {
	Records     map[string]int `json:"records"`
	Acceptances int            `json:"acceptances"`
	Revoked     int            `json:"revoked"`
	Repository  map[string]int `json:"repository"`
	Dirty       int            `json:"dirty"`
}

// Stats returns counts of live records per kind and pending changes.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Records:     make(map[string]int, len(Kinds)),
		Repository:  make(map[string]int, len(s.repository)),
		Acceptances: len(s.acceptances),
		Revoked:     len(s.revoked),
	}
	for _, k := range Kinds {
		for _, r := range s.records[k] {
			if r.Live() {
				st.Records[k.String()]++
			}
			if r.Status != StatusNotUpdated {
				st.Dirty++
			}
		}
	}
	for k, ids := range s.repository {
		st.Repository[k.String()] = len(ids)
	}
	return st
}

// Flush physically drops deleted records, writes the persistent state
// through the persister and resets every status to NotUpdated. Session and
// rejected acceptances stay in memory only. A persistence failure is logged
// and returned; the in-memory state is updated regardless.
func (s *Store) Flush() error {
	s.mu.Lock()
	for _, k := range Kinds {
		for fp, r := range s.records[k] {
			if !r.Live() {
				delete(s.records[k], fp)
				continue
			}
			r.Status = StatusNotUpdated
		}
		s.reindex(k)
	}
	snap := s.snapshot()
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(snap); err != nil {
		s.log.Errorf("truststore: flush: %v", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) reindex(kind Kind) {
	s.aliases[kind] = make(map[x509certs.ID][]x509certs.Fingerprint)
	for _, r := range s.records[kind] {
		s.put(r)
	}
}

// snapshot copies the persistent state. Callers hold mu.
func (s *Store) snapshot() *Snapshot {
	snap := &Snapshot{
		Repository:    make(map[Kind][]x509certs.ID, len(s.repository)),
		CRLLocations:  maps.Clone(s.crlLocations),
		OCSPOverrides: maps.Clone(s.ocspOverrides),
		Revoked:       slices.Collect(maps.Keys(s.revoked)),
	}
	for _, k := range Kinds {
		for _, r := range s.records[k] {
			snap.Records = append(snap.Records, r.Clone())
		}
	}
	for _, a := range s.acceptances {
		if a.Persistent() {
			snap.Acceptances = append(snap.Acceptances, a.Clone())
		}
	}
	for k, ids := range s.repository {
		snap.Repository[k] = slices.Collect(maps.Keys(ids))
	}
	return snap
}

// Close closes the persister, if any.
func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}
