// Package storage persists inventory snapshots. Each snapshot fully replaces
// the previous contents of its (service, account, region) partition; there is
// no incremental merge with prior state.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yairfalse/kartta/types"
)

// DefaultTTL is how long persisted items live before automatic expiry.
const DefaultTTL = 90 * 24 * time.Hour

// Partition is the storage grouping key. Resources under one partition are
// replaced wholesale on every refresh.
type Partition struct {
	Service   string
	AccountID string
	Region    string
}

// Key renders the partition as its canonical service#account#region form.
func (p Partition) Key() string {
	return fmt.Sprintf("%s#%s#%s", p.Service, p.AccountID, p.Region)
}

// ParsePartition parses a service#account#region key.
func ParsePartition(key string) (Partition, error) {
	parts := strings.SplitN(key, "#", 3)
	if len(parts) != 3 {
		return Partition{}, fmt.Errorf("malformed partition key %q", key)
	}
	return Partition{Service: parts[0], AccountID: parts[1], Region: parts[2]}, nil
}

// PartitionMeta describes one collected partition for discovery of which
// accounts and regions have ever been collected.
type PartitionMeta struct {
	Partition   Partition `json:"partition"`
	ItemCount   int       `json:"item_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Store is the snapshot store contract. ReplacePartition drops everything
// under the partition and writes the given records in its place, updating the
// partition's metadata entry. ReadPartition returns the latest snapshot.
type Store interface {
	ReplacePartition(ctx context.Context, p Partition, records []types.Record, collectedAt time.Time) error
	ReadPartition(ctx context.Context, p Partition) ([]types.Record, error)
	ListPartitions(ctx context.Context) ([]PartitionMeta, error)
	Close() error
}
