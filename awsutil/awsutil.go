// Package awsutil loads AWS SDK configuration shared by the S3 and DynamoDB clients.
package awsutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Options selects region, credentials and an optional endpoint override
type Options struct {
	Region    string
	Endpoint  string // e.g. http://localstack:4566
	AccessKey string
	SecretKey string
}

// Load loads the AWS configuration. Static credentials are used when both
// keys are set, otherwise the default provider chain (env, IAM role, ...).
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	loaders := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	if opts.Endpoint != "" {
		loaders = append(loaders, awsCfg.WithBaseEndpoint(opts.Endpoint))
	}
	return awsCfg.LoadDefaultConfig(ctx, loaders...)
}
