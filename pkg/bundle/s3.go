package bundle

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store serves activation bundles from an S3 bucket. Clients fetch
// them through presigned GET URLs, so bundle bytes never flow through
// the render server on the hot path.
type S3Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// NewS3Store creates a bundle store over an existing S3 client.
// prefix namespaces the bundle keys, e.g. "bundles/".
func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    bucket,
		prefix:    prefix,
		urlExpiry: 24 * time.Hour,
	}
}

// WithURLExpiry sets how long presigned URLs stay valid.
func (s *S3Store) WithURLExpiry(d time.Duration) *S3Store {
	s.urlExpiry = d
	return s
}

func (s *S3Store) key(locator string) string {
	return s.prefix + locator
}

func (s *S3Store) Put(ctx context.Context, locator, contentType string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(locator)),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("bundle: s3 put %s: %w", locator, err)
	}
	return nil
}

func (s *S3Store) Open(ctx context.Context, locator string) (*Bundle, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(locator)),
	})
	if err != nil {
		return nil, ErrNotFound
	}
	b := &Bundle{
		Locator: locator,
		Content: out.Body,
	}
	if out.ContentType != nil {
		b.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		b.Size = *out.ContentLength
	}
	return b, nil
}

func (s *S3Store) URL(ctx context.Context, locator string) (string, error) {
	res, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(locator)),
		},
		s3.WithPresignExpires(s.urlExpiry),
	)
	if err != nil {
		return "", fmt.Errorf("bundle: presign %s: %w", locator, err)
	}
	return res.URL, nil
}
