// Package secrets loads credentials from AWS Secrets Manager so they can stay
// out of decommigrate.yaml.
package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Loader fetches secret strings by name or ARN.
type Loader struct {
	client SecretsAPI
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSecretsClient sets a custom client (useful for testing).
func WithSecretsClient(c SecretsAPI) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// NewLoader creates a Loader.
func NewLoader(ctx context.Context, region string, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{}
	for _, o := range opts {
		o(l)
	}
	if l.client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		l.client = secretsmanager.NewFromConfig(cfg)
	}
	return l, nil
}

// Get retrieves a secret's string value.
func (l *Loader) Get(ctx context.Context, id string) (string, error) {
	out, err := l.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret %s: %w", id, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", id)
	}
	return *out.SecretString, nil
}

// Resolve fills credential fields in the config from configured secrets.
// A nil secrets section is a no-op.
func Resolve(ctx context.Context, cfg *types.ProjectConfig) error {
	if cfg.Secrets == nil {
		return nil
	}
	loader, err := NewLoader(ctx, cfg.Secrets.Region)
	if err != nil {
		return err
	}
	return ResolveWith(ctx, loader, cfg)
}

// ResolveWith is Resolve with an injected loader.
func ResolveWith(ctx context.Context, loader *Loader, cfg *types.ProjectConfig) error {
	if cfg.Secrets == nil {
		return nil
	}
	if id := cfg.Secrets.RedisPassword; id != "" {
		pw, err := loader.Get(ctx, id)
		if err != nil {
			return err
		}
		if cfg.Checkpoint.Redis != nil {
			cfg.Checkpoint.Redis.Password = pw
		}
		if cfg.Definitions != nil && cfg.Definitions.Password == "" {
			cfg.Definitions.Password = pw
		}
	}
	if id := cfg.Secrets.QuestDBPassword; id != "" {
		pw, err := loader.Get(ctx, id)
		if err != nil {
			return err
		}
		cfg.QuestDB.Password = pw
	}
	return nil
}
