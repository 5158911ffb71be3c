package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// Config options for the S3 backend. Locator containers are bucket names.
type Config struct {
	Region          string // defaults to us-east-1
	AccessKeyID     string // static credentials; empty uses the default chain
	SecretAccessKey string
	Endpoint        string // MinIO or another S3-compatible endpoint
	UsePathStyle    bool

	// SSE applies to backup images written by Put.
	EnableSSE    bool
	SSEAlgorithm string // AES256 or aws:kms
	SSEKMSKeyID  string

	// Buckets created at startup when missing (e.g. the backup container)
	CreateBuckets []string
}

// Backend is an S3-compatible implementation of the creative.ObjectStore interface
type Backend struct {
	client *s3.Client
	config Config
}

// New creates a new S3-compatible object store
func New(config Config) (*Backend, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	backend := &Backend{
		client: s3.NewFromConfig(awsCfg, s3Options...),
		config: config,
	}

	for _, bucket := range config.CreateBuckets {
		if err := backend.ensureBucket(context.Background(), bucket); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return backend, nil
}

// ensureBucket creates bucket unless HeadBucket finds it.
func (b *Backend) ensureBucket(ctx context.Context, bucket string) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	switch {
	case err == nil:
		return nil
	case !bucketMissing(err):
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if b.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil && !hasErrorCode(err, "BucketAlreadyExists", "BucketAlreadyOwnedByYou") {
		return err
	}
	return nil
}

// bucketMissing also accepts the bare 400 some MinIO versions answer
// HeadBucket with.
func bucketMissing(err error) bool {
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchBucket) {
		return true
	}
	return hasErrorCode(err, "NotFound", "NoSuchBucket", "BadRequest")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return slices.Contains(codes, apiErr.ErrorCode())
}

// Get downloads the whole object
func (b *Backend) Get(ctx context.Context, loc creative.Locator) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Container),
		Key:    aws.String(loc.Name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", loc, creative.ErrObjectNotFound)
		}
		return nil, &creative.StorageError{Backend: "s3", Key: loc.String(), Op: "get", Err: err}
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, &creative.StorageError{Backend: "s3", Key: loc.String(), Op: "get", Err: err}
	}
	return data, nil
}

// Put uploads data with the given content type
func (b *Backend) Put(ctx context.Context, loc creative.Locator, data []byte, contentType string) (creative.Locator, error) {
	uploader := manager.NewUploader(b.client)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(loc.Container),
		Key:         aws.String(loc.Name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	b.applySSE(input)

	if _, err := uploader.Upload(ctx, input); err != nil {
		return creative.Locator{}, &creative.StorageError{Backend: "s3", Key: loc.String(), Op: "put", Err: err}
	}
	return loc, nil
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	return hasErrorCode(err, "NoSuchKey", "NotFound")
}
