package collectors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	buckets     []s3types.Bucket
	locations   map[string]s3types.BucketLocationConstraint
	locationErr map[string]error
	encryption  map[string]s3types.ServerSideEncryption
	public      map[string]bool
	versioning  map[string]s3types.BucketVersioningStatus
}

func (f *fakeS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	return &s3.ListBucketsOutput{Buckets: f.buckets}, nil
}

func (f *fakeS3) GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	name := aws.ToString(params.Bucket)
	if err := f.locationErr[name]; err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: f.locations[name]}, nil
}

func (f *fakeS3) GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	if status, ok := f.versioning[aws.ToString(params.Bucket)]; ok {
		return &s3.GetBucketVersioningOutput{Status: status}, nil
	}
	return nil, errors.New("no versioning config")
}

func (f *fakeS3) GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	algo, ok := f.encryption[aws.ToString(params.Bucket)]
	if !ok {
		return nil, errors.New("ServerSideEncryptionConfigurationNotFoundError")
	}
	return &s3.GetBucketEncryptionOutput{
		ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
			Rules: []s3types.ServerSideEncryptionRule{{
				ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
					SSEAlgorithm: algo,
				},
			}},
		},
	}, nil
}

func (f *fakeS3) GetBucketPolicyStatus(ctx context.Context, params *s3.GetBucketPolicyStatusInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyStatusOutput, error) {
	public, ok := f.public[aws.ToString(params.Bucket)]
	if !ok {
		return nil, errors.New("NoSuchBucketPolicy")
	}
	return &s3.GetBucketPolicyStatusOutput{
		PolicyStatus: &s3types.PolicyStatus{IsPublic: aws.Bool(public)},
	}, nil
}

func s3CollectorWith(api *fakeS3) *S3Collector {
	c := NewS3Collector()
	c.client = func(aws.Config) s3API { return api }
	return c
}

func TestS3CollectFiltersByLocation(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeS3{
		buckets: []s3types.Bucket{
			{Name: aws.String("east-bucket"), CreationDate: &created},
			{Name: aws.String("west-bucket")},
		},
		locations: map[string]s3types.BucketLocationConstraint{
			// Empty location constraint means us-east-1.
			"east-bucket": "",
			"west-bucket": s3types.BucketLocationConstraintEuWest1,
		},
		encryption: map[string]s3types.ServerSideEncryption{
			"east-bucket": s3types.ServerSideEncryptionAes256,
		},
		versioning: map[string]s3types.BucketVersioningStatus{
			"east-bucket": s3types.BucketVersioningStatusEnabled,
		},
		public: map[string]bool{"east-bucket": true},
	}

	records, err := s3CollectorWith(api).Collect(context.Background(), aws.Config{}, "us-east-1")
	require.NoError(t, err)
	require.Len(t, records, 1, "only buckets located in the enumerated region are kept")

	r := records[0]
	assert.Equal(t, "east-bucket", r.ID())
	assert.Equal(t, "us-east-1", r["region"])
	assert.Equal(t, "AES256", r["encryption"])
	assert.Equal(t, "Enabled", r["versioning"])
	assert.Equal(t, true, r["public"])
	assert.Equal(t, "2024-03-01T12:00:00Z", r["creation_date"])

	records, err = s3CollectorWith(api).Collect(context.Background(), aws.Config{}, "eu-west-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "west-bucket", records[0].ID())
}

func TestS3CollectBestEffortDefaults(t *testing.T) {
	api := &fakeS3{
		buckets:   []s3types.Bucket{{Name: aws.String("plain")}},
		locations: map[string]s3types.BucketLocationConstraint{"plain": s3types.BucketLocationConstraintEuWest1},
	}

	records, err := s3CollectorWith(api).Collect(context.Background(), aws.Config{}, "eu-west-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Disabled", r["versioning"])
	assert.Equal(t, "None", r["encryption"])
	assert.Equal(t, false, r["public"])
}

func TestS3CollectSkipsBucketOnLocationFailure(t *testing.T) {
	api := &fakeS3{
		buckets: []s3types.Bucket{
			{Name: aws.String("broken")},
			{Name: aws.String("fine")},
		},
		locations:   map[string]s3types.BucketLocationConstraint{"fine": s3types.BucketLocationConstraintEuWest1},
		locationErr: map[string]error{"broken": errors.New("AccessDenied")},
	}

	records, err := s3CollectorWith(api).Collect(context.Background(), aws.Config{}, "eu-west-1")
	require.NoError(t, err)
	require.Len(t, records, 1, "one broken bucket must not drop the rest")
	assert.Equal(t, "fine", records[0].ID())
}
