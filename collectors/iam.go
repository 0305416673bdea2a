package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/yairfalse/kartta/types"
)

// IAMCollector collects IAM roles. IAM has no regional dimension: records
// always carry the global region sentinel and the collector runs once per
// account regardless of the requested region sweep.
type IAMCollector struct {
	client func(aws.Config) iam.ListRolesAPIClient
}

// NewIAMCollector creates the IAM role collector.
func NewIAMCollector() *IAMCollector {
	return &IAMCollector{
		client: func(cfg aws.Config) iam.ListRolesAPIClient {
			return iam.NewFromConfig(cfg)
		},
	}
}

func (c *IAMCollector) Service() string { return "iam" }
func (c *IAMCollector) Global() bool    { return true }

// Collect enumerates roles. The region parameter is ignored.
func (c *IAMCollector) Collect(ctx context.Context, cfg aws.Config, _ string) ([]types.Record, error) {
	api := c.client(cfg)
	var records []types.Record

	paginator := iam.NewListRolesPaginator(api, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list IAM roles: %w", err)
		}

		for _, role := range output.Roles {
			records = append(records, types.Record{
				"id":                 aws.ToString(role.Arn),
				"role_name":          aws.ToString(role.RoleName),
				"name":               aws.ToString(role.RoleName),
				"arn":                aws.ToString(role.Arn),
				"created":            isoTime(role.CreateDate),
				"assume_role_policy": aws.ToString(role.AssumeRolePolicyDocument),
				"region":             types.RegionGlobal,
			})
		}
	}

	return records, nil
}
