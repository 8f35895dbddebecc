// Package secrets bootstraps collaborator credentials from the secret store.
// The fetch happens once per process, in main, and the resulting SDK
// configuration is passed into every collaborator client explicitly; there is
// no hidden re-initialization on the request path.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/mosaicworks/stylize-api/internal/config"
)

// payload is the secret value holding object-store credentials.
type payload struct {
	AccessKeyID     string `json:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"SECRET_ACCESS_KEY"`
}

// AWSConfig builds the SDK configuration used by every collaborator client.
// When a secret id is configured, the secret is fetched with the ambient
// credential chain and its access/secret key pair becomes the static
// credentials for all subsequent collaborator calls. With no secret id the
// ambient chain is used directly.
func AWSConfig(ctx context.Context, cfg config.SecretsConfig, region string) (aws.Config, error) {
	base, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load SDK config: %w", err)
	}

	if cfg.SecretID == "" {
		return base, nil
	}

	sm := secretsmanager.NewFromConfig(base)
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.SecretID),
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to fetch secret %q: %w", cfg.SecretID, err)
	}
	if out.SecretString == nil {
		return aws.Config{}, fmt.Errorf("secret %q has no string payload", cfg.SecretID)
	}

	var p payload
	if err := json.Unmarshal([]byte(*out.SecretString), &p); err != nil {
		return aws.Config{}, fmt.Errorf("failed to decode secret payload: %w", err)
	}
	if p.AccessKeyID == "" || p.SecretAccessKey == "" {
		return aws.Config{}, fmt.Errorf("secret %q is missing ACCESS_KEY_ID or SECRET_ACCESS_KEY", cfg.SecretID)
	}

	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(p.AccessKeyID, p.SecretAccessKey, ""),
		),
	)
}
