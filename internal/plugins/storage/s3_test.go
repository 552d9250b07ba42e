package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type mockS3 struct {
	putFn func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	getFn func(ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error)
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.putFn(ctx, in)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.getFn(ctx, in)
}

func TestS3Backend_PutUsesPrefixedBucket(t *testing.T) {
	var got *s3.PutObjectInput
	var body []byte
	b := &S3Backend{prefix: "scribe-", client: &mockS3{putFn: func(_ context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		got = in
		body, _ = io.ReadAll(in.Body)
		return &s3.PutObjectOutput{}, nil
	}}}

	obj := Object{Bucket: BucketAvatars, Name: "u-1-1.png", ContentType: "image/png", Size: 3}
	if err := b.Put(context.Background(), obj, bytes.NewReader([]byte("png"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if aws.ToString(got.Bucket) != "scribe-avatars" || aws.ToString(got.Key) != "u-1-1.png" {
		t.Errorf("unexpected target %s/%s", aws.ToString(got.Bucket), aws.ToString(got.Key))
	}
	if aws.ToString(got.ContentType) != "image/png" || aws.ToInt64(got.ContentLength) != 3 {
		t.Errorf("unexpected metadata: %s %d", aws.ToString(got.ContentType), aws.ToInt64(got.ContentLength))
	}
	if string(body) != "png" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestS3Backend_GetMapsNoSuchKey(t *testing.T) {
	b := &S3Backend{prefix: "scribe-", client: &mockS3{getFn: func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{}
	}}}
	_, _, err := b.Get(context.Background(), BucketAvatars, "u-1-1.png")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestS3Backend_Get(t *testing.T) {
	b := &S3Backend{client: &mockS3{getFn: func(_ context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		if aws.ToString(in.Bucket) != "post-images" {
			t.Errorf("unexpected bucket %s", aws.ToString(in.Bucket))
		}
		return &s3.GetObjectOutput{
			Body:          io.NopCloser(bytes.NewReader([]byte("gif"))),
			ContentType:   aws.String("image/gif"),
			ContentLength: aws.Int64(3),
		}, nil
	}}}
	body, obj, err := b.Get(context.Background(), BucketPostImages, "u-1-1.gif")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer body.Close()
	if obj.ContentType != "image/gif" || obj.Size != 3 {
		t.Errorf("unexpected metadata: %+v", obj)
	}
}
