package awsauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/kartta/types"
)

type staticProvider struct {
	creds aws.Credentials
	err   error
}

func (p staticProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	return p.creds, p.err
}

func testResolver() *Resolver {
	r := NewResolver("ext-123", "test-session")
	r.load = func(ctx context.Context, region string) (aws.Config, error) {
		return aws.Config{Region: region}, nil
	}
	return r
}

func TestResolveAmbientIdentity(t *testing.T) {
	r := testResolver()
	r.assume = func(cfg aws.Config, roleARN string) aws.CredentialsProvider {
		t.Fatal("ambient identity must not assume a role")
		return nil
	}

	cfg, err := r.Resolve(context.Background(), types.AccountTarget{AccountID: "111122223333"}, "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}

func TestResolveAssumesRole(t *testing.T) {
	r := testResolver()
	var assumedARN string
	provider := staticProvider{creds: aws.Credentials{
		AccessKeyID: "AKIA", SecretAccessKey: "secret", SessionToken: "token",
		Expires: time.Now().Add(time.Hour),
	}}
	r.assume = func(cfg aws.Config, roleARN string) aws.CredentialsProvider {
		assumedARN = roleARN
		return provider
	}

	target := types.AccountTarget{
		AccountID: "444455556666",
		RoleARN:   "arn:aws:iam::444455556666:role/InventoryReadRole",
	}
	cfg, err := r.Resolve(context.Background(), target, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, target.RoleARN, assumedARN)
	assert.Equal(t, provider, cfg.Credentials)
}

func TestResolveAssumeDenied(t *testing.T) {
	r := testResolver()
	r.assume = func(cfg aws.Config, roleARN string) aws.CredentialsProvider {
		return staticProvider{err: errors.New("AccessDenied")}
	}

	target := types.AccountTarget{
		AccountID: "444455556666",
		RoleARN:   "arn:aws:iam::444455556666:role/Missing",
	}
	_, err := r.Resolve(context.Background(), target, "us-east-1")

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "444455556666", credErr.AccountID)
	assert.Equal(t, "us-east-1", credErr.Region)
}

func TestResolveRegionsSkipsFailures(t *testing.T) {
	r := testResolver()
	r.load = func(ctx context.Context, region string) (aws.Config, error) {
		if region == "eu-west-1" {
			return aws.Config{}, errors.New("endpoint unreachable")
		}
		return aws.Config{Region: region}, nil
	}

	cfgs, diags := r.ResolveRegions(context.Background(),
		types.AccountTarget{AccountID: "111122223333"},
		[]string{"us-east-1", "eu-west-1", "us-west-2"})

	assert.Len(t, cfgs, 2)
	assert.Contains(t, cfgs, "us-east-1")
	assert.Contains(t, cfgs, "us-west-2")
	assert.NotContains(t, cfgs, "eu-west-1")
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0], "eu-west-1")
}

func TestCallerAccountID(t *testing.T) {
	r := testResolver()
	r.caller = func(ctx context.Context, cfg aws.Config) (string, error) {
		return "999988887777", nil
	}

	account, err := r.CallerAccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "999988887777", account)
}

func TestRoleARN(t *testing.T) {
	assert.Equal(t,
		"arn:aws:iam::111122223333:role/InventoryReadRole",
		RoleARN("111122223333", "InventoryReadRole"))
}
