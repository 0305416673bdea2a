package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// batchWriteSize is DynamoDB's BatchWriteItem request ceiling.
const batchWriteSize = 25

// dynamoAPI covers the DynamoDB operations the store needs.
type dynamoAPI interface {
	dynamodb.QueryAPIClient
	dynamodb.ScanAPIClient
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore persists snapshots in DynamoDB. Items are keyed by partition
// (pk = service#account#region) and resource id (sk), carry the full record
// under a data attribute, and expire through the table's TTL attribute.
// Partition metadata lives in a separate table keyed by pk alone.
type DynamoStore struct {
	client        dynamoAPI
	table         string
	metadataTable string
	ttl           time.Duration
	logger        *telemetry.Logger
}

// NewDynamoStore creates a store over existing tables.
func NewDynamoStore(cfg aws.Config, table, metadataTable string) *DynamoStore {
	return &DynamoStore{
		client:        dynamodb.NewFromConfig(cfg),
		table:         table,
		metadataTable: metadataTable,
		ttl:           DefaultTTL,
		logger:        telemetry.NewLogger("storage"),
	}
}

// Close is a no-op; the SDK client holds no resources needing release.
func (s *DynamoStore) Close() error { return nil }

type dynamoItem struct {
	PK   string       `dynamodbav:"pk"`
	SK   string       `dynamodbav:"sk"`
	Data types.Record `dynamodbav:"data"`
	TTL  int64        `dynamodbav:"ttl"`
}

type dynamoMetaItem struct {
	PK          string `dynamodbav:"pk"`
	Service     string `dynamodbav:"service"`
	AccountID   string `dynamodbav:"account_id"`
	Region      string `dynamodbav:"region"`
	ItemCount   int    `dynamodbav:"item_count"`
	LastUpdated string `dynamodbav:"last_updated"`
}

// ReplacePartition deletes the partition's items that are absent from the new
// snapshot, then writes the snapshot, in batches of 25. Deletes complete
// before any put is issued: BatchWriteItem rejects a request holding two
// operations on the same key, and in steady state most stale sort keys are
// the same resource ids being re-put. The replace is not transactional across
// batches; a concurrent reader can observe a partially-written partition.
func (s *DynamoStore) ReplacePartition(ctx context.Context, p Partition, records []types.Record, collectedAt time.Time) error {
	staleKeys, err := s.partitionKeys(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to list existing items for %s: %w", p.Key(), err)
	}

	keep := make(map[string]bool, len(records))
	for _, record := range records {
		if record.ID() != "" {
			keep[record.ID()] = true
		}
	}

	var deletes []ddbtypes.WriteRequest
	for _, sk := range staleKeys {
		if keep[sk] {
			continue
		}
		deletes = append(deletes, ddbtypes.WriteRequest{
			DeleteRequest: &ddbtypes.DeleteRequest{Key: map[string]ddbtypes.AttributeValue{
				"pk": &ddbtypes.AttributeValueMemberS{Value: p.Key()},
				"sk": &ddbtypes.AttributeValueMemberS{Value: sk},
			}},
		})
	}

	expiry := collectedAt.Add(s.ttl).Unix()
	var puts []ddbtypes.WriteRequest
	for _, record := range records {
		if record.ID() == "" {
			s.logger.WithContext(ctx).Warn().
				Str("partition", p.Key()).
				Msg("record without id, not persisting")
			continue
		}
		item, err := attributevalue.MarshalMap(dynamoItem{
			PK:   p.Key(),
			SK:   record.ID(),
			Data: record,
			TTL:  expiry,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", record.ID(), err)
		}
		puts = append(puts, ddbtypes.WriteRequest{
			PutRequest: &ddbtypes.PutRequest{Item: item},
		})
	}

	if err := s.batchWrite(ctx, deletes); err != nil {
		return fmt.Errorf("failed to clear partition %s: %w", p.Key(), err)
	}
	if err := s.batchWrite(ctx, puts); err != nil {
		return fmt.Errorf("failed to replace partition %s: %w", p.Key(), err)
	}

	return s.putMetadata(ctx, p, len(records), collectedAt)
}

// ReadPartition returns the latest snapshot for a partition.
func (s *DynamoStore) ReadPartition(ctx context.Context, p Partition) ([]types.Record, error) {
	var records []types.Record

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: p.Key()},
		},
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read partition %s: %w", p.Key(), err)
		}
		for _, raw := range output.Items {
			var item dynamoItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item in %s: %w", p.Key(), err)
			}
			records = append(records, item.Data)
		}
	}

	return records, nil
}

// ListPartitions scans the metadata table.
func (s *DynamoStore) ListPartitions(ctx context.Context) ([]PartitionMeta, error) {
	var metas []PartitionMeta

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.metadataTable),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata table: %w", err)
		}
		for _, raw := range output.Items {
			var item dynamoMetaItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata item: %w", err)
			}
			updated, _ := time.Parse(time.RFC3339, item.LastUpdated)
			metas = append(metas, PartitionMeta{
				Partition:   Partition{Service: item.Service, AccountID: item.AccountID, Region: item.Region},
				ItemCount:   item.ItemCount,
				LastUpdated: updated,
			})
		}
	}

	return metas, nil
}

// partitionKeys returns the sort keys currently stored under a partition.
func (s *DynamoStore) partitionKeys(ctx context.Context, p Partition) ([]string, error) {
	var keys []string

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ProjectionExpression:   aws.String("sk"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk": &ddbtypes.AttributeValueMemberS{Value: p.Key()},
		},
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range output.Items {
			var item struct {
				SK string `dynamodbav:"sk"`
			}
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, err
			}
			keys = append(keys, item.SK)
		}
	}

	return keys, nil
}

func (s *DynamoStore) batchWrite(ctx context.Context, writes []ddbtypes.WriteRequest) error {
	for start := 0; start < len(writes); start += batchWriteSize {
		end := start + batchWriteSize
		if end > len(writes) {
			end = len(writes)
		}

		pending := writes[start:end]
		for len(pending) > 0 {
			output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]ddbtypes.WriteRequest{s.table: pending},
			})
			if err != nil {
				return err
			}
			pending = output.UnprocessedItems[s.table]
		}
	}
	return nil
}

func (s *DynamoStore) putMetadata(ctx context.Context, p Partition, count int, collectedAt time.Time) error {
	item, err := attributevalue.MarshalMap(dynamoMetaItem{
		PK:          p.Key(),
		Service:     p.Service,
		AccountID:   p.AccountID,
		Region:      p.Region,
		ItemCount:   count,
		LastUpdated: collectedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for %s: %w", p.Key(), err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.metadataTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update metadata for %s: %w", p.Key(), err)
	}
	return nil
}
