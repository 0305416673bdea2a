package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/kartta/collectors"
	"github.com/yairfalse/kartta/types"
)

// stubCollector returns canned records per region regardless of account.
type stubCollector struct {
	service  string
	global   bool
	byRegion map[string][]types.Record
	err      error
}

func (s *stubCollector) Service() string { return s.service }
func (s *stubCollector) Global() bool    { return s.global }

func (s *stubCollector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	records := make([]types.Record, 0, len(s.byRegion[region]))
	for _, r := range s.byRegion[region] {
		clone := types.Record{}
		for k, v := range r {
			clone[k] = v
		}
		records = append(records, clone)
	}
	return records, nil
}

// stubResolver resolves every region unless the account is marked broken.
type stubResolver struct {
	brokenAccounts map[string]bool
	callerID       string
	callerErr      error
}

func (s *stubResolver) ResolveRegions(ctx context.Context, target types.AccountTarget, regions []string) (map[string]aws.Config, []string) {
	if s.brokenAccounts[target.AccountID] {
		return nil, []string{"account " + target.AccountID + ": role not assumable"}
	}
	cfgs := make(map[string]aws.Config, len(regions))
	for _, region := range regions {
		cfgs[region] = aws.Config{Region: region}
	}
	return cfgs, nil
}

func (s *stubResolver) CallerAccountID(ctx context.Context) (string, error) {
	return s.callerID, s.callerErr
}

func newTestOrchestrator(resolver credentialResolver, cs ...collectors.Collector) *Orchestrator {
	return NewOrchestrator(resolver, collectors.NewRegistry(cs...), collectors.NewFanOut(4), nil)
}

func TestCollectInventoryUnsupportedService(t *testing.T) {
	o := newTestOrchestrator(&stubResolver{}, &stubCollector{service: "ec2"})

	_, err := o.CollectInventory(context.Background(), "fargate", []string{"us-east-1"}, nil, "")

	var unsupported *UnsupportedServiceError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "fargate", unsupported.Service)
	assert.Contains(t, unsupported.Known, "ec2")
}

func TestCollectInventoryMergesAccounts(t *testing.T) {
	c := &stubCollector{
		service: "ec2",
		byRegion: map[string][]types.Record{
			"us-east-1": {{"id": "i-1"}},
		},
	}
	o := newTestOrchestrator(&stubResolver{}, c)

	accounts := []types.AccountTarget{
		{AccountID: "111111111111"},
		{AccountID: "222222222222", RoleARN: "arn:aws:iam::222222222222:role/InventoryReadRole"},
	}
	result, err := o.CollectInventory(context.Background(), "ec2", []string{"us-east-1"}, accounts, "")
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	seen := map[string]bool{}
	for _, r := range result.Records {
		assert.Equal(t, "us-east-1", r.Region())
		seen[r.AccountID()] = true
	}
	assert.True(t, seen["111111111111"])
	assert.True(t, seen["222222222222"])
}

func TestCollectInventorySkipsUnreachableAccount(t *testing.T) {
	c := &stubCollector{
		service:  "rds",
		byRegion: map[string][]types.Record{"us-east-1": {{"id": "db-1"}}},
	}
	o := newTestOrchestrator(&stubResolver{brokenAccounts: map[string]bool{"111111111111": true}}, c)

	accounts := []types.AccountTarget{
		{AccountID: "111111111111", RoleARN: "arn:aws:iam::111111111111:role/Missing"},
		{AccountID: "222222222222"},
	}
	result, err := o.CollectInventory(context.Background(), "rds", []string{"us-east-1"}, accounts, "")
	require.NoError(t, err, "one unreachable account must not fail the request")

	require.Len(t, result.Records, 1)
	assert.Equal(t, "222222222222", result.Records[0].AccountID())
	assert.NotEmpty(t, result.Errors)
}

func TestCollectInventoryDefaultsToCallerAccount(t *testing.T) {
	c := &stubCollector{
		service:  "s3",
		byRegion: map[string][]types.Record{"eu-west-1": {{"id": "bkt"}}},
	}
	o := newTestOrchestrator(&stubResolver{callerID: "333333333333"}, c)

	result, err := o.CollectInventory(context.Background(), "s3", []string{"eu-west-1"}, nil, "")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "333333333333", result.Records[0].AccountID())
}

func TestCollectInventoryUnknownAccountFallback(t *testing.T) {
	c := &stubCollector{
		service:  "s3",
		byRegion: map[string][]types.Record{"eu-west-1": {{"id": "bkt"}}},
	}
	o := newTestOrchestrator(&stubResolver{callerErr: errors.New("sts unavailable")}, c)

	result, err := o.CollectInventory(context.Background(), "s3", []string{"eu-west-1"}, nil, "")
	require.NoError(t, err, "identity introspection failure degrades, never aborts")
	require.Len(t, result.Records, 1)
	assert.Equal(t, types.AccountUnknown, result.Records[0].AccountID())
}

func TestCollectInventorySearchFilter(t *testing.T) {
	c := &stubCollector{
		service: "ec2",
		byRegion: map[string][]types.Record{
			"us-east-1": {
				{"id": "i-1", "tags": map[string]string{"Team": "Platform"}},
				{"id": "i-2", "tags": map[string]string{"Team": "Data"}},
			},
		},
	}
	o := newTestOrchestrator(&stubResolver{}, c)

	result, err := o.CollectInventory(context.Background(), "ec2", []string{"us-east-1"},
		[]types.AccountTarget{{AccountID: "1"}}, "platform")
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "i-1", result.Records[0].ID())
}

func TestCollectInventoryPartialRegionFailure(t *testing.T) {
	c := &stubCollector{
		service: "ec2",
		byRegion: map[string][]types.Record{
			"us-east-1": {{"id": "i-1"}},
		},
	}
	o := newTestOrchestrator(&stubResolver{}, c)

	result, err := o.CollectInventory(context.Background(), "ec2",
		[]string{"us-east-1", "eu-west-1"}, []types.AccountTarget{{AccountID: "1"}}, "")
	require.NoError(t, err)
	assert.Len(t, result.Records, 1, "empty regions contribute nothing, not errors")

	for _, r := range result.Records {
		assert.NotEmpty(t, r.Region())
		assert.NotEmpty(t, r.AccountID())
	}
}
