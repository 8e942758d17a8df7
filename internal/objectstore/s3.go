package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 reads objects from Amazon S3 using the default credential chain.
type S3 struct {
	client *s3.Client
}

// NewS3 loads the default AWS configuration and creates an S3 backend.
func NewS3(ctx context.Context) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewS3: loading AWS config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg)}, nil
}

// Read downloads an object's bytes.
func (s *S3) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3.Read: getting object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("S3.Read: reading bytes: %w", err)
	}
	return data, nil
}
