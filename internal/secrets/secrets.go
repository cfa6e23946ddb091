// Package secrets loads the Bluesky credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// API is the subset of the Secrets Manager client used by [Store].
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var _ API = (*secretsmanager.Client)(nil)

// Credentials is the JSON document stored in the secret.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store reads secrets by name.
type Store struct {
	api API
}

func New(api API) *Store {
	return &Store{api: api}
}

// NewFromConfig creates a Store backed by the AWS SDK client.
func NewFromConfig(awsCfg aws.Config) *Store {
	return New(secretsmanager.NewFromConfig(awsCfg))
}

// Credentials fetches and decodes the named secret. Both fields must be
// present and non-blank.
func (s *Store) Credentials(ctx context.Context, secretName string) (Credentials, error) {
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretName)})
	if err != nil {
		return Credentials{}, &types.UpstreamError{Service: "secretsmanager", Op: "GetSecretValue", Err: fmt.Errorf("failed to retrieve secret %s: %w", secretName, err)}
	}

	if aws.ToString(out.SecretString) == "" {
		return Credentials{}, fmt.Errorf("secret %s has no string value", secretName)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse secret %s as JSON: %w", secretName, err)
	}

	if err := errors.Join(
		types.RequireNonBlank("username", creds.Username),
		types.RequireNonBlank("password", creds.Password),
	); err != nil {
		return Credentials{}, err
	}

	return creds, nil
}
