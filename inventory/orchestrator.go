// Package inventory orchestrates multi-account, multi-region resource
// collection and shapes the merged results for serving.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/yairfalse/kartta/collectors"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// UnsupportedServiceError reports a service name with no registered collector.
type UnsupportedServiceError struct {
	Service string
	Known   []string
}

func (e *UnsupportedServiceError) Error() string {
	return fmt.Sprintf("unsupported service %q, known services: %s", e.Service, strings.Join(e.Known, ", "))
}

// CollectionResult is the merged output of one collection cycle. Errors is
// diagnostic only: per-account and per-region failures never block the
// records that were collected.
type CollectionResult struct {
	Records []types.Record `json:"records"`
	Errors  []string       `json:"errors,omitempty"`
}

// credentialResolver is the slice of awsauth.Resolver the orchestrator needs.
type credentialResolver interface {
	ResolveRegions(ctx context.Context, target types.AccountTarget, regions []string) (map[string]aws.Config, []string)
	CallerAccountID(ctx context.Context) (string, error)
}

// Orchestrator coordinates credential resolution, region fan-out and result
// merging across accounts. Accounts are processed sequentially; regions within
// an account run in parallel through the fan-out engine.
type Orchestrator struct {
	resolver credentialResolver
	registry *collectors.Registry
	fanout   *collectors.FanOut
	metrics  *telemetry.CollectionMetrics
	logger   *telemetry.Logger
}

// NewOrchestrator wires an orchestrator from its dependencies. metrics may be
// nil when no meter provider is installed.
func NewOrchestrator(resolver credentialResolver, registry *collectors.Registry, fanout *collectors.FanOut, metrics *telemetry.CollectionMetrics) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		registry: registry,
		fanout:   fanout,
		metrics:  metrics,
		logger:   telemetry.NewLogger("inventory"),
	}
}

// Services returns the service names the orchestrator can collect.
func (o *Orchestrator) Services() []string {
	return o.registry.Services()
}

// CollectInventory collects all resources of one service across the given
// accounts and regions. Callers supply the full region sweep; nothing is
// defaulted here. An empty account list means "the caller's own account". A
// non-empty search term keeps only records whose serialized form contains it,
// case-insensitively.
//
// Unknown service names fail with *UnsupportedServiceError. Everything below
// request validation is isolated: an account whose credentials cannot be
// resolved, or a region whose enumeration fails, contributes diagnostics
// instead of failing the call.
func (o *Orchestrator) CollectInventory(ctx context.Context, service string, regions []string, accounts []types.AccountTarget, search string) (*CollectionResult, error) {
	collector, ok := o.registry.Lookup(service)
	if !ok {
		return nil, &UnsupportedServiceError{Service: service, Known: o.registry.Services()}
	}

	callerAccount := ""
	if len(accounts) == 0 {
		id, err := o.resolver.CallerAccountID(ctx)
		if err != nil {
			o.logger.WithContext(ctx).Warn().Err(err).
				Msg("caller identity lookup failed, proceeding with unknown account")
			id = types.AccountUnknown
		}
		callerAccount = id
		accounts = []types.AccountTarget{{AccountID: id}}
	}

	started := time.Now()
	result := &CollectionResult{}

	for _, target := range accounts {
		cfgs, diags := o.resolver.ResolveRegions(ctx, target, regions)
		result.Errors = append(result.Errors, diags...)
		if len(cfgs) == 0 {
			o.logger.LogAccountSkipped(ctx, service, target.AccountID,
				fmt.Errorf("no region clients could be resolved"))
			result.Errors = append(result.Errors,
				fmt.Sprintf("account %s: skipped, no region clients could be resolved", target.AccountID))
			continue
		}

		records, fanDiags := o.fanout.CollectMultiRegion(ctx, collector, cfgs, regions, target.AccountID)
		result.Records = append(result.Records, records...)
		result.Errors = append(result.Errors, fanDiags...)
	}

	o.backstopStamps(ctx, result.Records, regions, callerAccount)

	if search != "" {
		result.Records = filterRecords(result.Records, search)
	}

	if o.metrics != nil {
		o.metrics.RecordCollection(ctx, service, len(result.Records), float64(time.Since(started).Milliseconds()))
	}

	o.logger.WithContext(ctx).Info().
		Str("service", service).
		Int("records", len(result.Records)).
		Int("errors", len(result.Errors)).
		Int("accounts", len(accounts)).
		Msg("collection complete")

	return result, nil
}

// backstopStamps guarantees the merged-record invariant: every record carries
// a non-empty region and accountId, even if a collector and the fan-out both
// failed to stamp them.
func (o *Orchestrator) backstopStamps(ctx context.Context, records []types.Record, regions []string, callerAccount string) {
	fallbackRegion := types.RegionGlobal
	if len(regions) > 0 {
		fallbackRegion = regions[0]
	}

	fallbackAccount := callerAccount
	for _, r := range records {
		if r.Region() == "" {
			r.SetRegion(fallbackRegion)
		}
		if r.AccountID() == "" {
			if fallbackAccount == "" {
				if id, err := o.resolver.CallerAccountID(ctx); err == nil {
					fallbackAccount = id
				} else {
					fallbackAccount = types.AccountUnknown
				}
			}
			r.SetAccountID(fallbackAccount)
		}
	}
}

func filterRecords(records []types.Record, term string) []types.Record {
	filtered := make([]types.Record, 0, len(records))
	for _, r := range records {
		if r.Matches(term) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
