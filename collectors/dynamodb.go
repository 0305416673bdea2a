package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// dynamoAPI covers the table operations the DynamoDB collector needs.
type dynamoAPI interface {
	dynamodb.ListTablesAPIClient
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBCollector collects DynamoDB tables. DynamoDB has no batch
// describe, so tables are described one by one and a failing table is
// skipped without dropping the rest.
type DynamoDBCollector struct {
	client func(aws.Config) dynamoAPI
	logger *telemetry.Logger
}

// NewDynamoDBCollector creates the DynamoDB table collector.
func NewDynamoDBCollector() *DynamoDBCollector {
	return &DynamoDBCollector{
		client: func(cfg aws.Config) dynamoAPI { return dynamodb.NewFromConfig(cfg) },
		logger: telemetry.NewLogger("collectors"),
	}
}

func (c *DynamoDBCollector) Service() string { return "dynamodb" }
func (c *DynamoDBCollector) Global() bool    { return false }

// Collect enumerates tables in one region.
func (c *DynamoDBCollector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)

	var tableNames []string
	paginator := dynamodb.NewListTablesPaginator(api, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list DynamoDB tables: %w", err)
		}
		tableNames = append(tableNames, output.TableNames...)
	}

	var records []types.Record
	for _, name := range tableNames {
		output, err := api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err != nil {
			c.logger.LogItemSkipped(ctx, c.Service(), region, name, err)
			continue
		}
		table := output.Table

		billingMode := "PROVISIONED"
		if table.BillingModeSummary != nil && table.BillingModeSummary.BillingMode != "" {
			billingMode = string(table.BillingModeSummary.BillingMode)
		}

		records = append(records, types.Record{
			"id":           aws.ToString(table.TableArn),
			"table_name":   aws.ToString(table.TableName),
			"name":         aws.ToString(table.TableName),
			"status":       string(table.TableStatus),
			"billing_mode": billingMode,
			"item_count":   aws.ToInt64(table.ItemCount),
			"created_at":   isoTime(table.CreationDateTime),
			"region":       region,
		})
	}

	return records, nil
}
