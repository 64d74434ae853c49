package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taller-web/hello-client/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	exchangeBucket   = "exchanges"
	expiryValueBytes = 8
	keyTimeBytes     = 8
)

// boltStore implements a Store backed by BoltDB. Keys are the big-endian
// start time followed by the exchange id, so a reverse cursor walk yields
// newest first. Values are an 8-byte expiry followed by the JSON exchange.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	entryTTL        time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(exchangeBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		entryTTL:        opts.EntryTTL,
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

// Record stores the exchange until its TTL elapses.
func (b *boltStore) Record(ex domain.Exchange) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	payload, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}

	value := make([]byte, expiryValueBytes, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(value, uint64(now.Add(b.entryTTL).Unix()))
	value = append(value, payload...)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(exchangeBucket))
		if bucket == nil {
			return fmt.Errorf("exchange bucket missing")
		}
		return bucket.Put(exchangeKey(ex, now), value)
	})
}

// Recent returns up to limit unexpired exchanges, newest first. A
// non-positive limit returns all of them.
func (b *boltStore) Recent(limit int) ([]domain.Exchange, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, err
	}

	var out []domain.Exchange
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(exchangeBucket))
		if bucket == nil {
			return fmt.Errorf("exchange bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				continue
			}
			var ex domain.Exchange
			if err := json.Unmarshal(v[expiryValueBytes:], &ex); err != nil {
				return fmt.Errorf("decode exchange %x: %w", k, err)
			}
			out = append(out, ex)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// maybeCleanupExpired removes expired exchanges on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

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

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(exchangeBucket))
		if bucket == nil {
			return fmt.Errorf("exchange bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
				// Delete moves the cursor onto the following item.
				k, v = cursor.Seek(k)
				continue
			}
			k, v = cursor.Next()
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func exchangeKey(ex domain.Exchange, now time.Time) []byte {
	started := ex.StartedAt
	if started.IsZero() {
		started = now
	}
	key := make([]byte, keyTimeBytes, keyTimeBytes+len(ex.ID))
	binary.BigEndian.PutUint64(key, uint64(started.UnixNano()))
	return append(key, ex.ID...)
}

// decodeExpiry decodes the expiry time from the head of the stored value.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
