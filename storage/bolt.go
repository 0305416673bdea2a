package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/kartta/types"
)

// Bucket names in bbolt
var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
)

// BoltStore is the embedded snapshot store for single-node deployments.
// Records live on disk keyed by partition and resource id; partition metadata
// is mirrored in an in-memory btree for ListPartitions without a disk scan.
type BoltStore struct {
	mu sync.RWMutex

	db   *bbolt.DB
	meta *btree.BTreeG[PartitionMeta]
}

// NewBoltStore opens (or creates) the store under dir.
func NewBoltStore(dir string) (*BoltStore, error) {
	dbPath := filepath.Join(dir, "kartta.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecords, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &BoltStore{
		db: db,
		meta: btree.NewG[PartitionMeta](32, func(a, b PartitionMeta) bool {
			return a.Partition.Key() < b.Partition.Key()
		}),
	}

	if err := store.rebuildMetaIndex(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// ReplacePartition drops the partition's previous snapshot and writes the new
// one in a single transaction.
func (s *BoltStore) ReplacePartition(ctx context.Context, p Partition, records []types.Record, collectedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := PartitionMeta{Partition: p, ItemCount: len(records), LastUpdated: collectedAt}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)

		prefix := recordKeyPrefix(p)
		c := bucket.Cursor()
		var stale [][]byte
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			stale = append(stale, k)
		}
		for _, key := range stale {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}

		for _, record := range records {
			value, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := bucket.Put(recordKey(p, record.ID()), value); err != nil {
				return err
			}
		}

		metaValue, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(p.Key()), metaValue)
	})
	if err != nil {
		return fmt.Errorf("failed to replace partition %s: %w", p.Key(), err)
	}

	s.meta.ReplaceOrInsert(meta)
	return nil
}

// ReadPartition returns the latest snapshot for a partition. A partition that
// was never written reads as empty, not as an error.
func (s *BoltStore) ReadPartition(ctx context.Context, p Partition) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []types.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		prefix := recordKeyPrefix(p)
		c := bucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var record types.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", p.Key(), err)
	}

	return records, nil
}

// ListPartitions returns metadata for every partition ever written, in
// partition-key order.
func (s *BoltStore) ListPartitions(ctx context.Context) ([]PartitionMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]PartitionMeta, 0, s.meta.Len())
	s.meta.Ascend(func(m PartitionMeta) bool {
		metas = append(metas, m)
		return true
	})
	return metas, nil
}

func (s *BoltStore) rebuildMetaIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(k, v []byte) error {
			var meta PartitionMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("corrupt metadata for %s: %w", k, err)
			}
			s.meta.ReplaceOrInsert(meta)
			return nil
		})
	})
}

// recordKey namespaces a resource under its partition. The NUL separator
// keeps partition prefixes from colliding (no partition key contains NUL).
func recordKey(p Partition, resourceID string) []byte {
	return append(recordKeyPrefix(p), []byte(resourceID)...)
}

func recordKeyPrefix(p Partition) []byte {
	return []byte(p.Key() + "\x00")
}
