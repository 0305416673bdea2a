package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/yairfalse/kartta/storage"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// RefreshResult reports one refresh cycle. Errors carries collection
// diagnostics and per-partition write failures; a failed partition write
// never blocks the remaining partitions.
type RefreshResult struct {
	Service    string   `json:"service"`
	Partitions int      `json:"partitions"`
	Records    int      `json:"records"`
	Errors     []string `json:"errors,omitempty"`
}

// Refresher collects fresh inventory and persists it as partition snapshots.
type Refresher struct {
	orchestrator *Orchestrator
	store        storage.Store
	logger       *telemetry.Logger
}

// NewRefresher wires a refresher over an orchestrator and a snapshot store.
func NewRefresher(orchestrator *Orchestrator, store storage.Store) *Refresher {
	return &Refresher{
		orchestrator: orchestrator,
		store:        store,
		logger:       telemetry.NewLogger("refresh"),
	}
}

// RefreshService collects one service across the given accounts and regions
// and replaces every (service, account, region) partition that produced
// records. Partitions that yielded nothing this cycle are left untouched, so
// a fully-failed collection never wipes the previous snapshot.
func (r *Refresher) RefreshService(ctx context.Context, service string, regions []string, accounts []types.AccountTarget) (*RefreshResult, error) {
	collected, err := r.orchestrator.CollectInventory(ctx, service, regions, accounts, "")
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{Service: service, Errors: collected.Errors}
	collectedAt := time.Now()

	for partition, records := range groupByPartition(service, collected.Records) {
		if err := r.store.ReplacePartition(ctx, partition, records, collectedAt); err != nil {
			r.logger.WithContext(ctx).Error().Err(err).
				Str("partition", partition.Key()).
				Msg("partition write failed")
			result.Errors = append(result.Errors,
				fmt.Sprintf("partition %s: %v", partition.Key(), err))
			continue
		}
		result.Partitions++
		result.Records += len(records)
	}

	r.logger.WithContext(ctx).Info().
		Str("service", service).
		Int("partitions", result.Partitions).
		Int("records", result.Records).
		Int("errors", len(result.Errors)).
		Msg("refresh complete")

	return result, nil
}

// RefreshAll refreshes every registered service sequentially.
func (r *Refresher) RefreshAll(ctx context.Context, regions []string, accounts []types.AccountTarget) ([]*RefreshResult, error) {
	var results []*RefreshResult
	for _, service := range r.orchestrator.Services() {
		result, err := r.RefreshService(ctx, service, regions, accounts)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func groupByPartition(service string, records []types.Record) map[storage.Partition][]types.Record {
	grouped := make(map[storage.Partition][]types.Record)
	for _, record := range records {
		p := storage.Partition{
			Service:   service,
			AccountID: record.AccountID(),
			Region:    record.Region(),
		}
		grouped[p] = append(grouped[p], record)
	}
	return grouped
}
