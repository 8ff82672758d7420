// Package store persists storefront records as JSON documents in a bbolt
// database, one bucket per collection.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("record not found")

// Collections.
const (
	Orders   = "orders"
	Uploads  = "uploads"
	Gallery  = "gallery"
	Products = "products"
	Bans     = "bans"
	Visits   = "visits"
	Meta     = "meta"
)

var buckets = []string{Orders, Uploads, Gallery, Products, Bans, Visits, Meta}

// Store wraps the bolt database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path and ensures every bucket exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
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

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a read-write transaction handed to Update callbacks.
type Tx struct {
	tx *bolt.Tx
}

// Update runs fn in one read-write transaction. Any error rolls it back.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

// View runs fn in a read-only transaction. Writes through tx fail.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx})
	})
}

func (t *Tx) bucket(name string) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("unknown bucket %q", name)
	}
	return b, nil
}

// Put stores v under key.
func (t *Tx) Put(bucket, key string, v interface{}) error {
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", bucket, key, err)
	}
	return b.Put([]byte(key), data)
}

// Get decodes the value under key into v.
func (t *Tx) Get(bucket, key string, v interface{}) error {
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	data := b.Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes key, failing with ErrNotFound if it is absent.
func (t *Tx) Delete(bucket, key string) error {
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	if b.Get([]byte(key)) == nil {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return b.Delete([]byte(key))
}

// Clear removes every key in bucket and returns how many there were.
func (t *Tx) Clear(bucket string) (int, error) {
	b, err := t.bucket(bucket)
	if err != nil {
		return 0, err
	}
	n := countKeys(b)
	if err := t.tx.DeleteBucket([]byte(bucket)); err != nil {
		return 0, err
	}
	if _, err := t.tx.CreateBucket([]byte(bucket)); err != nil {
		return 0, err
	}
	return n, nil
}

// Append stores v under the bucket's next sequence number, so keys sort in
// insertion order.
func (t *Tx) Append(bucket string, v interface{}) (uint64, error) {
	b, err := t.bucket(bucket)
	if err != nil {
		return 0, err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s/%d: %w", bucket, seq, err)
	}
	return seq, b.Put(itob(seq), data)
}

// Trim deletes the oldest keys until at most keep remain.
func (t *Tx) Trim(bucket string, keep int) (int, error) {
	b, err := t.bucket(bucket)
	if err != nil {
		return 0, err
	}
	excess := countKeys(b) - keep
	if excess <= 0 {
		return 0, nil
	}

	// Deleting through a live cursor skips keys, so collect first.
	stale := make([][]byte, 0, excess)
	c := b.Cursor()
	for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for i, k := range stale {
		if err := b.Delete(k); err != nil {
			return i, err
		}
	}
	return len(stale), nil
}

// Count returns the number of keys in bucket.
func (t *Tx) Count(bucket string) (int, error) {
	b, err := t.bucket(bucket)
	if err != nil {
		return 0, err
	}
	return countKeys(b), nil
}

// ForEach calls fn for every value in key order.
func (t *Tx) ForEach(bucket string, fn func(key string, raw []byte) error) error {
	b, err := t.bucket(bucket)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

// Put stores v under key in its own transaction.
func (s *Store) Put(bucket, key string, v interface{}) error {
	return s.Update(func(tx *Tx) error { return tx.Put(bucket, key, v) })
}

// Get decodes the value under key into v.
func (s *Store) Get(bucket, key string, v interface{}) error {
	return s.View(func(tx *Tx) error { return tx.Get(bucket, key, v) })
}

// Delete removes key.
func (s *Store) Delete(bucket, key string) error {
	return s.Update(func(tx *Tx) error { return tx.Delete(bucket, key) })
}

// Count returns the number of keys in bucket.
func (s *Store) Count(bucket string) (int, error) {
	var n int
	err := s.View(func(tx *Tx) error {
		var err error
		n, err = tx.Count(bucket)
		return err
	})
	return n, err
}

// List decodes every value in bucket, in key order.
func List[T any](s *Store, bucket string) ([]T, error) {
	var out []T
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = ListTx[T](tx, bucket)
		return err
	})
	return out, err
}

// ListTx is List inside an existing transaction.
func ListTx[T any](tx *Tx, bucket string) ([]T, error) {
	out := make([]T, 0)
	err := tx.ForEach(bucket, func(key string, raw []byte) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode %s/%s: %w", bucket, key, err)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
