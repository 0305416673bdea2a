// Package collectors enumerates AWS resources of one kind per region and
// normalizes them into uniform records.
package collectors

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/kartta/types"
)

// Collector enumerates resources of one kind in a single region.
// Collect returns an error only when the whole enumeration fails; failures
// of individual items are logged and skipped so one bad item never drops
// the rest of the page.
type Collector interface {
	Service() string
	Global() bool
	Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error)
}

// Registry maps service names to their collectors. Service names are
// validated against this table at the boundary.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry builds a registry from the given collectors.
func NewRegistry(cs ...Collector) *Registry {
	m := make(map[string]Collector, len(cs))
	for _, c := range cs {
		m[c.Service()] = c
	}
	return &Registry{collectors: m}
}

// DefaultRegistry returns the registry of all supported service collectors.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewEC2Collector(),
		NewVPCCollector(),
		NewS3Collector(),
		NewRDSCollector(),
		NewDynamoDBCollector(),
		NewEKSCollector(),
		NewECSCollector(),
		NewIAMCollector(),
	)
}

// Lookup returns the collector for a service name, case-insensitively.
func (r *Registry) Lookup(service string) (Collector, bool) {
	c, ok := r.collectors[strings.ToLower(service)]
	return c, ok
}

// Services returns the sorted list of registered service names.
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ec2TagMap converts an EC2-style tag list to a map.
func ec2TagMap(tags []ec2types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return m
}

// isoTime renders a timestamp as RFC3339, or nil when absent.
func isoTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
