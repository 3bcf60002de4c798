// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package truststore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	x509certs "github.com/H0llyW00dzZ/tls-cert-trust-engine/src/internal/x509/certs"
)

// Snapshot is the persistent part of a Store.
type Snapshot struct {
	Records       []*Record
	Acceptances   []*Acceptance
	Revoked       []x509certs.Fingerprint
	Repository    map[Kind][]x509certs.ID
	CRLLocations  map[x509certs.ID][]string
	OCSPOverrides map[x509certs.ID]string
}

// Persister loads and saves snapshots.
type Persister interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
	Close() error
}

// MemoryPersister keeps the last saved snapshot in memory. It is mostly
// useful in tests and when no store path is configured.
type MemoryPersister struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
	// Err, when set, is returned by Save.
	Err error
}

func (m *MemoryPersister) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *MemoryPersister) Save(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.snap = s
	m.saves++
	return nil
}

func (m *MemoryPersister) Close() error { return nil }

// Saves returns how many snapshots were saved successfully.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

var (
	bucketRecords     = []byte("records")
	bucketAcceptances = []byte("acceptances")
	bucketRevoked     = []byte("revoked")
	bucketMetadata    = []byte("metadata")

	keyRepository    = []byte("repository")
	keyCRLLocations  = []byte("crl_locations")
	keyOCSPOverrides = []byte("ocsp_overrides")
)

var allBuckets = [][]byte{bucketRecords, bucketAcceptances, bucketRevoked, bucketMetadata}

// ErrBucketMissing is returned when the database lacks one of its buckets.
var ErrBucketMissing = errors.New("truststore: bucket not found")

// BoltPersister stores snapshots in a bbolt database.
type BoltPersister struct {
	db *bbolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*BoltPersister, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open trust store database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltPersister{db: db}, nil
}

// Path returns the database file path.
func (b *BoltPersister) Path() string { return b.db.Path() }

// Load reads the whole snapshot.
func (b *BoltPersister) Load() (*Snapshot, error) {
	snap := &Snapshot{}

	err := b.db.View(func(tx *bbolt.Tx) error {
		buckets, err := lookupBuckets(tx)
		if err != nil {
			return err
		}

		if err := buckets[0].ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal record %x: %w", k, err)
			}
			snap.Records = append(snap.Records, &r)
			return nil
		}); err != nil {
			return err
		}

		if err := buckets[1].ForEach(func(k, v []byte) error {
			var a Acceptance
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("failed to unmarshal acceptance %s: %w", k, err)
			}
			snap.Acceptances = append(snap.Acceptances, &a)
			return nil
		}); err != nil {
			return err
		}

		if err := buckets[2].ForEach(func(k, _ []byte) error {
			var fp x509certs.Fingerprint
			if err := fp.UnmarshalText(k); err != nil {
				return err
			}
			snap.Revoked = append(snap.Revoked, fp)
			return nil
		}); err != nil {
			return err
		}

		meta := buckets[3]
		for key, dst := range map[string]any{
			string(keyRepository):    &snap.Repository,
			string(keyCRLLocations):  &snap.CRLLocations,
			string(keyOCSPOverrides): &snap.OCSPOverrides,
		} {
			data := meta.Get([]byte(key))
			if data == nil {
				continue
			}
			if err := json.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("failed to unmarshal %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Save replaces the stored snapshot within one transaction.
func (b *BoltPersister) Save(snap *Snapshot) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("failed to reset %s bucket: %w", name, err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		buckets, err := lookupBuckets(tx)
		if err != nil {
			return err
		}

		for _, r := range snap.Records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			key := append([]byte{byte(r.Kind)}, r.Fingerprint[:]...)
			if err := buckets[0].Put(key, data); err != nil {
				return err
			}
		}

		for _, a := range snap.Acceptances {
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("failed to marshal acceptance: %w", err)
			}
			key := a.Fingerprint.String() + "|" + a.Host + "|" + strconv.Itoa(a.Port) + "|" + a.Scope.String()
			if err := buckets[1].Put([]byte(key), data); err != nil {
				return err
			}
		}

		for _, fp := range snap.Revoked {
			key, _ := fp.MarshalText()
			if err := buckets[2].Put(key, []byte{1}); err != nil {
				return err
			}
		}

		for key, v := range map[string]any{
			string(keyRepository):    snap.Repository,
			string(keyCRLLocations):  snap.CRLLocations,
			string(keyOCSPOverrides): snap.OCSPOverrides,
		} {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", key, err)
			}
			if err := buckets[3].Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BoltPersister) Close() error { return b.db.Close() }

func lookupBuckets(tx *bbolt.Tx) ([]*bbolt.Bucket, error) {
	out := make([]*bbolt.Bucket, len(allBuckets))
	for i, name := range allBuckets {
		out[i] = tx.Bucket(name)
		if out[i] == nil {
			return nil, fmt.Errorf("%w: %s", ErrBucketMissing, name)
		}
	}
	return out, nil
}
