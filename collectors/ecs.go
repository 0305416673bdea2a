package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// describeBatchSize is the cluster batch size for DescribeClusters calls.
const describeBatchSize = 10

// ecsAPI covers the cluster operations the ECS collector needs.
type ecsAPI interface {
	ecs.ListClustersAPIClient
	DescribeClusters(ctx context.Context, params *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
	ListServices(ctx context.Context, params *ecs.ListServicesInput, optFns ...func(*ecs.Options)) (*ecs.ListServicesOutput, error)
	ListTasks(ctx context.Context, params *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error)
}

// ECSCollector collects ECS clusters.
type ECSCollector struct {
	client func(aws.Config) ecsAPI
	logger *telemetry.Logger
}

// NewECSCollector creates the ECS cluster collector.
func NewECSCollector() *ECSCollector {
	return &ECSCollector{
		client: func(cfg aws.Config) ecsAPI { return ecs.NewFromConfig(cfg) },
		logger: telemetry.NewLogger("collectors"),
	}
}

func (c *ECSCollector) Service() string { return "ecs" }
func (c *ECSCollector) Global() bool    { return false }

// Collect enumerates clusters in one region, describing them in batches of
// ten. A failing batch is skipped; service and task counts are best-effort.
func (c *ECSCollector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)
	var records []types.Record

	paginator := ecs.NewListClustersPaginator(api, &ecs.ListClustersInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list ECS clusters: %w", err)
		}

		arns := output.ClusterArns
		for i := 0; i < len(arns); i += describeBatchSize {
			end := i + describeBatchSize
			if end > len(arns) {
				end = len(arns)
			}
			batch := arns[i:end]

			describeOutput, err := api.DescribeClusters(ctx, &ecs.DescribeClustersInput{Clusters: batch})
			if err != nil {
				c.logger.LogItemSkipped(ctx, c.Service(), region, fmt.Sprintf("batch of %d clusters", len(batch)), err)
				continue
			}

			for _, cluster := range describeOutput.Clusters {
				records = append(records, c.clusterRecord(ctx, api, cluster, region))
			}
		}
	}

	return records, nil
}

func (c *ECSCollector) clusterRecord(ctx context.Context, api ecsAPI, cluster ecstypes.Cluster, region string) types.Record {
	name := aws.ToString(cluster.ClusterName)

	activeServices := 0
	if out, err := api.ListServices(ctx, &ecs.ListServicesInput{Cluster: cluster.ClusterName}); err == nil {
		activeServices = len(out.ServiceArns)
	}

	runningTasks := 0
	if out, err := api.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster:       cluster.ClusterName,
		DesiredStatus: ecstypes.DesiredStatusRunning,
	}); err == nil {
		runningTasks = len(out.TaskArns)
	}

	return types.Record{
		"id":                             aws.ToString(cluster.ClusterArn),
		"cluster_name":                   name,
		"name":                           name,
		"status":                         aws.ToString(cluster.Status),
		"active_services":                activeServices,
		"running_tasks":                  runningTasks,
		"registered_container_instances": int(cluster.RegisteredContainerInstancesCount),
		"region":                         region,
	}
}
