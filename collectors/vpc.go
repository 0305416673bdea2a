package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// vpcAPI covers the EC2 operations the VPC collector needs.
type vpcAPI interface {
	ec2.DescribeVpcsAPIClient
	ec2.DescribeSubnetsAPIClient
}

// VPCCollector collects VPCs with their subnet attachments.
type VPCCollector struct {
	client func(aws.Config) vpcAPI
	logger *telemetry.Logger
}

// NewVPCCollector creates the VPC collector.
func NewVPCCollector() *VPCCollector {
	return &VPCCollector{
		client: func(cfg aws.Config) vpcAPI { return ec2.NewFromConfig(cfg) },
		logger: telemetry.NewLogger("collectors"),
	}
}

func (c *VPCCollector) Service() string { return "vpc" }
func (c *VPCCollector) Global() bool    { return false }

// Collect enumerates VPCs in one region. A VPC whose subnet lookup fails is
// skipped; the rest of the page survives.
func (c *VPCCollector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)
	var records []types.Record

	paginator := ec2.NewDescribeVpcsPaginator(api, &ec2.DescribeVpcsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe VPCs: %w", err)
		}

		for _, vpc := range output.Vpcs {
			vpcID := aws.ToString(vpc.VpcId)

			subnets, err := c.subnetIDs(ctx, api, vpcID)
			if err != nil {
				c.logger.LogItemSkipped(ctx, c.Service(), region, vpcID, err)
				continue
			}

			tags := ec2TagMap(vpc.Tags)
			records = append(records, types.Record{
				"id":         vpcID,
				"vpc_id":     vpcID,
				"name":       tags["Name"],
				"cidr_block": aws.ToString(vpc.CidrBlock),
				"state":      string(vpc.State),
				"is_default": aws.ToBool(vpc.IsDefault),
				"subnets":    subnets,
				"tags":       tags,
				"region":     region,
			})
		}
	}

	return records, nil
}

func (c *VPCCollector) subnetIDs(ctx context.Context, api vpcAPI, vpcID string) ([]string, error) {
	var ids []string
	paginator := ec2.NewDescribeSubnetsPaginator(api, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, subnet := range output.Subnets {
			ids = append(ids, aws.ToString(subnet.SubnetId))
		}
	}
	return ids, nil
}
