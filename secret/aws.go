package secret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	Prefix = "arn:aws:secretsmanager:"

	timeout      = 5 * time.Second
	versionStage = "AWSCURRENT"
)

var (
	ErrSecretEmpty             = errors.New("no secret or secret is empty")
	ErrSecretFailedToUnmarshal = errors.New("failed to unmarshal the secret")
	ErrSecretInvalidArn        = errors.New("secret's ARN seems to be corrupt")
	ErrSecretMissingKey        = errors.New("secret misses key")
)

func IsARN(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// Resolve fetches a JSON secret by its ARN and returns the value stored under key.
func Resolve(ctx context.Context, arn, key string) (string, error) {
	region, err := regionFromARN(arn)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return "", err
	}

	cli := secretsmanager.NewFromConfig(cfg)

	res, err := cli.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(arn),
		VersionStage: aws.String(versionStage),
	})
	if err != nil {
		return "", err
	}

	return lookup(arn, aws.ToString(res.SecretString), key)
}

func regionFromARN(arn string) (string, error) {
	// 0   1   2              3         4          5      6
	// arn:aws:secretsmanager:${REGION}:${ACCOUNT}:secret:${SECRET}
	parts := strings.Split(arn, ":")
	if len(parts) != 7 || parts[3] == "" {
		return "", fmt.Errorf("%w: %s",
			ErrSecretInvalidArn, arn,
		)
	}
	return parts[3], nil
}

func lookup(arn, raw, key string) (string, error) {
	if len(raw) == 0 {
		return "", ErrSecretEmpty
	}

	var secrets map[string]string
	if err := json.Unmarshal([]byte(raw), &secrets); err != nil {
		return "", fmt.Errorf("%w: %w: %s",
			ErrSecretFailedToUnmarshal, err, arn,
		)
	}

	value, exists := secrets[key]
	if !exists {
		return "", fmt.Errorf("%w: %s: %s",
			ErrSecretMissingKey, arn, key,
		)
	}
	return value, nil
}
