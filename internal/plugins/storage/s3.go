package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the part of *s3.Client the backend uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures an S3 or MinIO backend.
type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	BucketPrefix string
}

// S3Backend stores each logical bucket in an S3 bucket named
// BucketPrefix+bucket.
type S3Backend struct {
	client s3API
	prefix string
}

// NewS3Backend builds a client with static credentials. A non-empty
// Endpoint switches to path-style addressing for MinIO.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Backend{client: client, prefix: cfg.BucketPrefix}, nil
}

func (b *S3Backend) bucket(name string) *string {
	return aws.String(b.prefix + name)
}

func (b *S3Backend) Put(ctx context.Context, obj Object, body io.Reader) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        b.bucket(obj.Bucket),
		Key:           aws.String(obj.Name),
		Body:          body,
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
		CacheControl:  aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", obj.Key(), err)
	}
	return nil
}

func (b *S3Backend) Get(ctx context.Context, bucket, name string) (io.ReadCloser, *Object, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: b.bucket(bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("getting %s/%s: %w", bucket, name, err)
	}
	return out.Body, &Object{
		Bucket:      bucket,
		Name:        name,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}, nil
}
