package usage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// S3Client is the subset of the S3 API the sizer needs.
type S3Client interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ListObjectsV2Paginator defines the interface for paginated list operations.
type S3ListObjectsV2Paginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config describes the bucket holding gallery media.
type S3Config struct {
	Bucket         string `env:"MEDIA_S3_BUCKET,required"`
	Region         string `env:"MEDIA_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"MEDIA_S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"MEDIA_S3_SECRET_KEY"`
	Endpoint       string `env:"MEDIA_S3_ENDPOINT"`                           // Optional: for S3-compatible services
	ForcePathStyle bool   `env:"MEDIA_S3_FORCE_PATH_STYLE" envDefault:"false"` // For S3-compatible services like MinIO
	UserPrefix     string `env:"MEDIA_S3_USER_PREFIX" envDefault:"users/%s/"`  // Key prefix per user; %s is the user ID
}

// S3Option configures S3Sizer.
type S3Option func(*s3Options)

type s3Options struct {
	httpClient       *http.Client
	s3Client         S3Client
	paginatorFactory func(client S3Client, params *s3.ListObjectsV2Input) S3ListObjectsV2Paginator
}

// WithS3Client sets a pre-configured client. Useful for testing with mocks.
func WithS3Client(client S3Client) S3Option {
	return func(o *s3Options) {
		o.s3Client = client
	}
}

// WithHTTPClient sets a custom HTTP client for S3 requests.
func WithHTTPClient(client *http.Client) S3Option {
	return func(o *s3Options) {
		o.httpClient = client
	}
}

// WithPaginatorFactory sets a custom paginator factory. Useful for testing pagination.
func WithPaginatorFactory(factory func(client S3Client, params *s3.ListObjectsV2Input) S3ListObjectsV2Paginator) S3Option {
	return func(o *s3Options) {
		o.paginatorFactory = factory
	}
}

// S3Sizer sums object sizes under a user's key prefix.
// It is safe for concurrent use.
type S3Sizer struct {
	client           S3Client
	bucket           string
	prefix           string
	paginatorFactory func(client S3Client, params *s3.ListObjectsV2Input) S3ListObjectsV2Paginator
}

// NewS3Sizer creates a sizer for the configured bucket.
func NewS3Sizer(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Sizer, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.UserPrefix == "" {
		cfg.UserPrefix = "users/%s/"
	}

	options := &s3Options{}
	for _, opt := range opts {
		opt(options)
	}

	client := options.s3Client
	if client == nil {
		awsOptions := []func(*config.LoadOptions) error{
			config.WithRegion(cfg.Region),
		}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			awsOptions = append(awsOptions,
				config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID,
					cfg.SecretKey,
					"",
				)),
			)
		}
		if options.httpClient != nil {
			awsOptions = append(awsOptions, config.WithHTTPClient(options.httpClient))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, awsOptions...)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}

		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	factory := options.paginatorFactory
	if factory == nil {
		factory = func(c S3Client, params *s3.ListObjectsV2Input) S3ListObjectsV2Paginator {
			return s3.NewListObjectsV2Paginator(c, params)
		}
	}

	return &S3Sizer{
		client:           client,
		bucket:           cfg.Bucket,
		prefix:           cfg.UserPrefix,
		paginatorFactory: factory,
	}, nil
}

// StorageBytes returns the total size of every object the user owns.
func (s *S3Sizer) StorageBytes(ctx context.Context, userID uuid.UUID) (int64, error) {
	p := s.paginatorFactory(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fmt.Sprintf(s.prefix, userID.String())),
	})

	var total int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
				return 0, errors.Join(ErrStorageUnavailable, ErrInvalidConfig, err)
			}
			return 0, errors.Join(ErrStorageUnavailable, err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return total, nil
}
