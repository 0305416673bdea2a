package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// eksAPI covers the cluster operations the EKS collector needs.
type eksAPI interface {
	eks.ListClustersAPIClient
	DescribeCluster(ctx context.Context, params *eks.DescribeClusterInput, optFns ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	ListNodegroups(ctx context.Context, params *eks.ListNodegroupsInput, optFns ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
}

// EKSCollector collects EKS clusters with their node groups.
type EKSCollector struct {
	client func(aws.Config) eksAPI
	logger *telemetry.Logger
}

// NewEKSCollector creates the EKS cluster collector.
func NewEKSCollector() *EKSCollector {
	return &EKSCollector{
		client: func(cfg aws.Config) eksAPI { return eks.NewFromConfig(cfg) },
		logger: telemetry.NewLogger("collectors"),
	}
}

func (c *EKSCollector) Service() string { return "eks" }
func (c *EKSCollector) Global() bool    { return false }

// Collect enumerates clusters in one region; a cluster whose describe or
// node-group lookup fails is skipped.
func (c *EKSCollector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)
	var records []types.Record

	paginator := eks.NewListClustersPaginator(api, &eks.ListClustersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list EKS clusters: %w", err)
		}

		for _, clusterName := range output.Clusters {
			describeOutput, err := api.DescribeCluster(ctx, &eks.DescribeClusterInput{
				Name: aws.String(clusterName),
			})
			if err != nil || describeOutput.Cluster == nil {
				c.logger.LogItemSkipped(ctx, c.Service(), region, clusterName, err)
				continue
			}
			cluster := describeOutput.Cluster

			nodeGroups := []string{}
			if ngOutput, err := api.ListNodegroups(ctx, &eks.ListNodegroupsInput{
				ClusterName: aws.String(clusterName),
			}); err == nil {
				nodeGroups = ngOutput.Nodegroups
			}

			records = append(records, types.Record{
				"id":           aws.ToString(cluster.Arn),
				"cluster_name": aws.ToString(cluster.Name),
				"name":         aws.ToString(cluster.Name),
				"status":       string(cluster.Status),
				"version":      aws.ToString(cluster.Version),
				"endpoint":     aws.ToString(cluster.Endpoint),
				"node_groups":  nodeGroups,
				"created_at":   isoTime(cluster.CreatedAt),
				"region":       region,
			})
		}
	}

	return records, nil
}
