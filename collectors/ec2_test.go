package collectors

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEC2 struct {
	reservations []ec2types.Reservation
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{Reservations: f.reservations}, nil
}

func TestEC2CollectNormalizesInstances(t *testing.T) {
	launched := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)
	api := &fakeEC2{
		reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{
				InstanceId:       aws.String("i-0abc"),
				InstanceType:     ec2types.InstanceTypeT3Micro,
				State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
				PrivateIpAddress: aws.String("10.0.0.5"),
				VpcId:            aws.String("vpc-1"),
				SubnetId:         aws.String("subnet-1"),
				LaunchTime:       &launched,
				SecurityGroups: []ec2types.GroupIdentifier{
					{GroupName: aws.String("web-sg")},
				},
				Tags: []ec2types.Tag{
					{Key: aws.String("Name"), Value: aws.String("web-1")},
					{Key: aws.String("Team"), Value: aws.String("platform")},
				},
			}},
		}},
	}

	c := NewEC2Collector()
	c.client = func(aws.Config) ec2.DescribeInstancesAPIClient { return api }

	records, err := c.Collect(context.Background(), aws.Config{}, "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "i-0abc", r.ID())
	assert.Equal(t, "web-1", r["name"])
	assert.Equal(t, "running", r["state"])
	assert.Equal(t, "t3.micro", r["instance_type"])
	assert.Equal(t, "10.0.0.5", r["private_ip"])
	assert.Equal(t, []string{"web-sg"}, r["security_groups"])
	assert.Equal(t, "2024-05-10T08:30:00Z", r["launch_time"])
	assert.Equal(t, map[string]string{"Name": "web-1", "Team": "platform"}, r["tags"])
	assert.Equal(t, "us-east-1", r["region"])
}

func TestEC2CollectEmptyRegion(t *testing.T) {
	c := NewEC2Collector()
	c.client = func(aws.Config) ec2.DescribeInstancesAPIClient { return &fakeEC2{} }

	records, err := c.Collect(context.Background(), aws.Config{}, "eu-west-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}
