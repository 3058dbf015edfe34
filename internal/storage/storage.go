// Package storage persists campaigns, enrollments and wallets in a bbolt file.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketCampaigns           = []byte("campaigns")
	bucketEnrollments         = []byte("enrollments")
	bucketEnrollmentsCampaign = []byte("enrollments_by_campaign")
	bucketWallets             = []byte("wallets")
	bucketHolds               = []byte("holds")
	bucketHoldsEnrollment     = []byte("holds_by_enrollment")
	bucketLedger              = []byte("ledger")
	bucketWithdrawals         = []byte("withdrawals")
)

var allBuckets = [][]byte{
	bucketCampaigns,
	bucketEnrollments,
	bucketEnrollmentsCampaign,
	bucketWallets,
	bucketHolds,
	bucketHoldsEnrollment,
	bucketLedger,
	bucketWithdrawals,
}

// Store is the bbolt backed repository for every entity
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database at path
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying bolt.DB instance
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Tx is a read or read-write transaction over all buckets
type Tx struct {
	tx *bolt.Tx
}

// View runs fn in a read-only transaction
func (s *Store) View(fn func(*Tx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// Update runs fn in a read-write transaction. bbolt allows one writer at a
// time, so every mutation made inside fn is serialized and atomic.
func (s *Store) Update(fn func(*Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

func getJSON[T any](b *bolt.Bucket, key string) (*T, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return v, nil
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// scanJSON decodes values of b in key order starting at seek, stopping at
// the first key outside prefix
func scanJSON[T any](b *bolt.Bucket, seek, prefix []byte, fn func(*T) bool) error {
	c := b.Cursor()
	k, v := c.First()
	if len(seek) > 0 {
		k, v = c.Seek(seek)
	}
	for ; k != nil; k, v = c.Next() {
		if len(prefix) > 0 && !hasPrefix(k, prefix) {
			break
		}
		item := new(T)
		if err := json.Unmarshal(v, item); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", k, err)
		}
		if !fn(item) {
			break
		}
	}
	return nil
}

func hasPrefix(k, prefix []byte) bool {
	return len(k) >= len(prefix) && string(k[:len(prefix)]) == string(prefix)
}

const indexTimeFormat = "2006-01-02T15:04:05.000000000Z"

// makeIndexKey creates a sortable key from owner, timestamp and ID
func makeIndexKey(owner string, t time.Time, id string) []byte {
	return []byte(owner + "/" + t.UTC().Format(indexTimeFormat) + ":" + id)
}

func ownerPrefix(owner string) []byte {
	return []byte(owner + "/")
}
