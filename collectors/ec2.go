package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/yairfalse/kartta/types"
)

// EC2Collector collects EC2 instances.
type EC2Collector struct {
	client func(aws.Config) ec2.DescribeInstancesAPIClient
}

// NewEC2Collector creates the EC2 instance collector.
func NewEC2Collector() *EC2Collector {
	return &EC2Collector{
		client: func(cfg aws.Config) ec2.DescribeInstancesAPIClient {
			return ec2.NewFromConfig(cfg)
		},
	}
}

func (c *EC2Collector) Service() string { return "ec2" }
func (c *EC2Collector) Global() bool    { return false }

// Collect enumerates instances in one region.
func (c *EC2Collector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)
	var records []types.Record

	paginator := ec2.NewDescribeInstancesPaginator(api, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe EC2 instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				tags := ec2TagMap(instance.Tags)

				groups := make([]string, 0, len(instance.SecurityGroups))
				for _, sg := range instance.SecurityGroups {
					groups = append(groups, aws.ToString(sg.GroupName))
				}

				state := ""
				if instance.State != nil {
					state = string(instance.State.Name)
				}

				records = append(records, types.Record{
					"id":              aws.ToString(instance.InstanceId),
					"instance_id":     aws.ToString(instance.InstanceId),
					"name":            tags["Name"],
					"state":           state,
					"instance_type":   string(instance.InstanceType),
					"private_ip":      aws.ToString(instance.PrivateIpAddress),
					"public_ip":       aws.ToString(instance.PublicIpAddress),
					"security_groups": groups,
					"vpc_id":          aws.ToString(instance.VpcId),
					"subnet_id":       aws.ToString(instance.SubnetId),
					"launch_time":     isoTime(instance.LaunchTime),
					"tags":            tags,
					"region":          region,
				})
			}
		}
	}

	return records, nil
}
