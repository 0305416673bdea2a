package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/yairfalse/kartta/types"
)

// RDSCollector collects RDS database instances.
type RDSCollector struct {
	client func(aws.Config) rds.DescribeDBInstancesAPIClient
}

// NewRDSCollector creates the RDS instance collector.
func NewRDSCollector() *RDSCollector {
	return &RDSCollector{
		client: func(cfg aws.Config) rds.DescribeDBInstancesAPIClient {
			return rds.NewFromConfig(cfg)
		},
	}
}

func (c *RDSCollector) Service() string { return "rds" }
func (c *RDSCollector) Global() bool    { return false }

// Collect enumerates DB instances in one region.
func (c *RDSCollector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)
	var records []types.Record

	paginator := rds.NewDescribeDBInstancesPaginator(api, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe RDS instances: %w", err)
		}

		for _, db := range output.DBInstances {
			endpoint := ""
			if db.Endpoint != nil {
				endpoint = aws.ToString(db.Endpoint.Address)
			}

			identifier := aws.ToString(db.DBInstanceIdentifier)
			records = append(records, types.Record{
				"id":             identifier,
				"db_identifier":  identifier,
				"name":           identifier,
				"engine":         aws.ToString(db.Engine),
				"engine_version": aws.ToString(db.EngineVersion),
				"status":         aws.ToString(db.DBInstanceStatus),
				"instance_class": aws.ToString(db.DBInstanceClass),
				"endpoint":       endpoint,
				"encrypted":      aws.ToBool(db.StorageEncrypted),
				"multi_az":       aws.ToBool(db.MultiAZ),
				"created_at":     isoTime(db.InstanceCreateTime),
				"region":         region,
			})
		}
	}

	return records, nil
}
