package secrets

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

var (
	ErrSecretNotFound = errors.New("secrets: secret does not exist")
	ErrEmptyPayload   = errors.New("secrets: secret has no payload")
)

// Fetcher resolves a secret id to its raw payload.
type Fetcher interface {
	Fetch(ctx context.Context, secretID string) ([]byte, error)
}

// SecretsManagerFetcher reads secrets from AWS Secrets Manager.
type SecretsManagerFetcher struct {
	api secretsmanageriface.SecretsManagerAPI
}

func NewSecretsManagerFetcher(region string) (*SecretsManagerFetcher, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return &SecretsManagerFetcher{api: secretsmanager.New(sess)}, nil
}

// NewFetcherWithAPI wires a custom API client (tests, localstack).
func NewFetcherWithAPI(api secretsmanageriface.SecretsManagerAPI) *SecretsManagerFetcher {
	return &SecretsManagerFetcher{api: api}
}

func (f *SecretsManagerFetcher) Fetch(ctx context.Context, secretID string) ([]byte, error) {
	out, err := f.api.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return nil, ErrSecretNotFound
		}
		return nil, err
	}

	if out.SecretString != nil && *out.SecretString != "" {
		return []byte(*out.SecretString), nil
	}
	if len(out.SecretBinary) > 0 {
		return out.SecretBinary, nil
	}
	return nil, ErrEmptyPayload
}
