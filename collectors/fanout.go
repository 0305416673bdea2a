package collectors

import (
	"context"
	"fmt"

	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// DefaultFanOutWorkers bounds concurrent in-flight region queries. The
// ceiling protects the STS endpoint shared by every region task.
const DefaultFanOutWorkers = 10

// FanOut runs one collector across many regions concurrently.
type FanOut struct {
	workers int
	logger  *telemetry.Logger
}

// NewFanOut creates a fan-out engine with the given concurrency ceiling.
// workers < 1 falls back to DefaultFanOutWorkers.
func NewFanOut(workers int) *FanOut {
	if workers < 1 {
		workers = DefaultFanOutWorkers
	}
	return &FanOut{
		workers: workers,
		logger:  telemetry.NewLogger("fanout"),
	}
}

// CollectMultiRegion invokes the collector once per region that has a client
// config, in parallel, and merges the results. Each region task fills its own
// result slot; merging happens only after every task has completed. Records
// are stamped with their origin region (overwriting whatever the collector
// set) and, when accountID is non-empty, with the account. Per-region
// failures become diagnostics, never a hard error.
//
// Global collectors are invoked exactly once against any available client.
func (f *FanOut) CollectMultiRegion(ctx context.Context, c Collector, cfgs map[string]aws.Config, regions []string, accountID string) ([]types.Record, []string) {
	if len(cfgs) == 0 {
		f.logger.WithContext(ctx).Warn().
			Str("service", c.Service()).
			Msg("no clients available")
		return nil, nil
	}

	if c.Global() {
		return f.collectGlobal(ctx, c, cfgs, accountID)
	}

	type slot struct {
		records []types.Record
		err     error
	}

	var active []string
	for _, region := range regions {
		if _, ok := cfgs[region]; ok {
			active = append(active, region)
			continue
		}
		f.logger.WithContext(ctx).Debug().
			Str("service", c.Service()).
			Str("region", region).
			Msg("no client for region, skipping")
	}
	if len(active) == 0 {
		return nil, nil
	}

	slots := make([]slot, len(active))
	pool := pond.New(f.workers, len(active))
	for i, region := range active {
		i, region := i, region
		cfg := cfgs[region]
		pool.Submit(func() {
			records, err := c.Collect(ctx, cfg, region)
			slots[i] = slot{records: records, err: err}
		})
	}
	pool.StopAndWait()

	var merged []types.Record
	var diags []string
	for i, region := range active {
		if slots[i].err != nil {
			f.logger.LogRegionFailure(ctx, c.Service(), region, slots[i].err)
			diags = append(diags, fmt.Sprintf("%s %s: %v", c.Service(), region, slots[i].err))
			continue
		}
		for _, record := range slots[i].records {
			record.SetRegion(region)
			if accountID != "" {
				record.SetAccountID(accountID)
			}
			merged = append(merged, record)
		}
	}

	return merged, diags
}

// collectGlobal runs a global-scope collector once, without regional
// replication.
func (f *FanOut) collectGlobal(ctx context.Context, c Collector, cfgs map[string]aws.Config, accountID string) ([]types.Record, []string) {
	var cfg aws.Config
	for _, v := range cfgs {
		cfg = v
		break
	}

	records, err := c.Collect(ctx, cfg, types.RegionGlobal)
	if err != nil {
		f.logger.LogRegionFailure(ctx, c.Service(), types.RegionGlobal, err)
		return nil, []string{fmt.Sprintf("%s %s: %v", c.Service(), types.RegionGlobal, err)}
	}

	for _, record := range records {
		record.SetRegion(types.RegionGlobal)
		if accountID != "" {
			record.SetAccountID(accountID)
		}
	}
	return records, nil
}
