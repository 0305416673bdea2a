// Package awsauth resolves scoped AWS credentials for inventory collection,
// either the caller's ambient identity or an assumed role in a target account.
package awsauth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// CredentialError reports that credentials could not be obtained for one
// account/region pair. Callers distinguish it from "query returned nothing".
type CredentialError struct {
	AccountID string
	Region    string
	Err       error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credentials for account %s in %s: %v", e.AccountID, e.Region, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// RoleARN builds the conventional inventory role ARN for an account.
func RoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// Resolver produces per-region aws.Configs for account targets. Each Resolve
// performs a fresh identity exchange; nothing is cached beyond what the SDK
// session itself holds.
type Resolver struct {
	externalID  string
	sessionName string
	logger      *telemetry.Logger

	load   func(ctx context.Context, region string) (aws.Config, error)
	assume func(cfg aws.Config, roleARN string) aws.CredentialsProvider
	caller func(ctx context.Context, cfg aws.Config) (string, error)
}

// NewResolver creates a resolver. externalID is optional and, when set, is
// included in every role assumption for confused-deputy protection.
func NewResolver(externalID, sessionName string) *Resolver {
	r := &Resolver{
		externalID:  externalID,
		sessionName: sessionName,
		logger:      telemetry.NewLogger("awsauth"),
	}
	r.load = func(ctx context.Context, region string) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	r.assume = func(cfg aws.Config, roleARN string) aws.CredentialsProvider {
		return stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), roleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = r.sessionName
			if r.externalID != "" {
				o.ExternalID = aws.String(r.externalID)
			}
		})
	}
	r.caller = func(ctx context.Context, cfg aws.Config) (string, error) {
		out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return "", err
		}
		return aws.ToString(out.Account), nil
	}
	return r
}

// Resolve returns an aws.Config scoped to the target account and region.
// Role assumption is verified eagerly so a bad role surfaces here as a
// *CredentialError rather than on the first service call.
func (r *Resolver) Resolve(ctx context.Context, target types.AccountTarget, region string) (aws.Config, error) {
	cfg, err := r.load(ctx, region)
	if err != nil {
		return aws.Config{}, &CredentialError{AccountID: target.AccountID, Region: region, Err: err}
	}

	if !target.AssumesRole() {
		return cfg, nil
	}

	provider := r.assume(cfg, target.RoleARN)
	if _, err := provider.Retrieve(ctx); err != nil {
		return aws.Config{}, &CredentialError{AccountID: target.AccountID, Region: region, Err: err}
	}

	cfg.Credentials = provider
	return cfg, nil
}

// ResolveRegions resolves a client config per region, skipping regions whose
// resolution fails. The returned diagnostics describe each skipped region.
func (r *Resolver) ResolveRegions(ctx context.Context, target types.AccountTarget, regions []string) (map[string]aws.Config, []string) {
	cfgs := make(map[string]aws.Config, len(regions))
	var diags []string

	for _, region := range regions {
		cfg, err := r.Resolve(ctx, target, region)
		if err != nil {
			r.logger.WithContext(ctx).Warn().
				Err(err).
				Str("account_id", target.AccountID).
				Str("region", region).
				Msg("failed to resolve client for region")
			diags = append(diags, fmt.Sprintf("account %s region %s: %v", target.AccountID, region, err))
			continue
		}
		cfgs[region] = cfg
	}

	return cfgs, diags
}

// CallerAccountID returns the account id of the ambient identity.
func (r *Resolver) CallerAccountID(ctx context.Context) (string, error) {
	cfg, err := r.load(ctx, "us-east-1")
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	account, err := r.caller(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return account, nil
}
