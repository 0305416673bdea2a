package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/kartta/awsauth"
	"github.com/yairfalse/kartta/collectors"
	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/inventory"
	"github.com/yairfalse/kartta/storage"
	"github.com/yairfalse/kartta/telemetry"
)

// buildOrchestrator assembles the collection pipeline from config. meter may
// be nil for one-shot commands that don't serve metrics.
func buildOrchestrator(cfg *config.Config, meter metric.Meter) (*inventory.Orchestrator, error) {
	var metrics *telemetry.CollectionMetrics
	if meter != nil {
		var err error
		metrics, err = telemetry.InitCollectionMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
	}

	resolver := awsauth.NewResolver(cfg.ExternalID, cfg.SessionName)
	return inventory.NewOrchestrator(
		resolver,
		collectors.DefaultRegistry(),
		collectors.NewFanOut(cfg.Concurrency),
		metrics,
	), nil
}

// regionSweep returns the requested regions, defaulting to the configured
// sweep when none were given. The orchestrator never defaults regions itself,
// so a narrowed regions list in the config file is always honored.
func regionSweep(cfg *config.Config, raw string) []string {
	if regions := splitList(raw); len(regions) > 0 {
		return regions
	}
	return cfg.Regions
}

// openStore opens the configured snapshot store backend.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "bolt":
		return storage.NewBoltStore(cfg.Storage.Dir)
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for storage: %w", err)
		}
		return storage.NewDynamoStore(awsCfg, cfg.Storage.Table, cfg.Storage.MetadataTable), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
