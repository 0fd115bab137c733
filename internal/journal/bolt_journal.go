package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	callsBucket = "calls"
	keyBytes    = 16
)

// boltStore implements a Store backed by BoltDB. Keys are the record time
// followed by a bucket sequence, so cursor order is chronological.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	ttl             time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(callsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		ttl:             opts.TTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Record appends a call to the journal.
func (b *boltStore) Record(e Entry) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = now.UTC()
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(callsBucket))
		if bucket == nil {
			return fmt.Errorf("calls bucket missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		return bucket.Put(encodeKey(e.At, seq), value)
	})
}

// Recent returns up to n unexpired entries, newest first.
func (b *boltStore) Recent(n int) ([]Entry, error) {
	if b == nil || b.db == nil || n <= 0 {
		return nil, nil
	}

	cutoff := b.now().Add(-b.ttl)
	out := make([]Entry, 0, n)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(callsBucket))
		if bucket == nil {
			return fmt.Errorf("calls bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(out) < n; k, v = cursor.Prev() {
			at, ok := decodeKey(k)
			if !ok || !at.After(cutoff) {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode journal entry: %w", err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// maybeCleanupExpired removes expired entries on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	cutoff := now.Add(-b.ttl)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(callsBucket))
		if bucket == nil {
			return fmt.Errorf("calls bucket missing")
		}

		var expired [][]byte
		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			at, ok := decodeKey(k)
			if ok && at.After(cutoff) {
				break
			}
			expired = append(expired, append([]byte(nil), k...))
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func encodeKey(at time.Time, seq uint64) []byte {
	buf := make([]byte, keyBytes)
	binary.BigEndian.PutUint64(buf[:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint64(buf[8:], seq)
	return buf
}

// decodeKey extracts the record time from a key.
func decodeKey(key []byte) (time.Time, bool) {
	if len(key) != keyBytes {
		return time.Time{}, false
	}
	nanos := int64(binary.BigEndian.Uint64(key[:8]))
	if nanos <= 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}
