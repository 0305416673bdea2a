package collectors

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// s3API covers the bucket operations the S3 collector needs.
type s3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3.GetBucketPolicyStatusInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyStatusOutput, error)
}

// S3Collector collects S3 buckets. Bucket listing is account-wide, so each
// bucket is kept only in the region its location resolves to; a full region
// sweep therefore includes each bucket at most once.
type S3Collector struct {
	client func(aws.Config) s3API
	logger *telemetry.Logger
}

// NewS3Collector creates the S3 bucket collector.
func NewS3Collector() *S3Collector {
	return &S3Collector{
		client: func(cfg aws.Config) s3API { return s3.NewFromConfig(cfg) },
		logger: telemetry.NewLogger("collectors"),
	}
}

func (c *S3Collector) Service() string { return "s3" }
func (c *S3Collector) Global() bool    { return false }

// Collect lists buckets and keeps those located in region. Versioning,
// encryption and public-access status are best-effort probes with defined
// fallbacks.
func (c *S3Collector) Collect(ctx context.Context, cfg aws.Config, region string) ([]types.Record, error) {
	api := c.client(cfg)

	output, err := api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 buckets: %w", err)
	}

	var records []types.Record
	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)

		location, err := api.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: bucket.Name})
		if err != nil {
			c.logger.LogItemSkipped(ctx, c.Service(), region, name, err)
			continue
		}
		bucketRegion := string(location.LocationConstraint)
		if bucketRegion == "" {
			bucketRegion = "us-east-1"
		}
		if bucketRegion != region {
			continue
		}

		versioning := "Disabled"
		if out, err := api.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: bucket.Name}); err == nil && out.Status != "" {
			versioning = string(out.Status)
		}

		encryption := "None"
		if out, err := api.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: bucket.Name}); err == nil {
			if sse := out.ServerSideEncryptionConfiguration; sse != nil && len(sse.Rules) > 0 && sse.Rules[0].ApplyServerSideEncryptionByDefault != nil {
				encryption = string(sse.Rules[0].ApplyServerSideEncryptionByDefault.SSEAlgorithm)
			}
		}

		public := false
		if out, err := api.GetBucketPolicyStatus(ctx, &s3.GetBucketPolicyStatusInput{Bucket: bucket.Name}); err == nil && out.PolicyStatus != nil {
			public = aws.ToBool(out.PolicyStatus.IsPublic)
		}

		records = append(records, types.Record{
			"id":            name,
			"bucket_name":   name,
			"name":          name,
			"region":        bucketRegion,
			"versioning":    versioning,
			"encryption":    encryption,
			"public":        public,
			"creation_date": isoTime(bucket.CreationDate),
		})
	}

	return records, nil
}
