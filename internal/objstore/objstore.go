// Package objstore wraps the S3 operations the platform needs: issuing
// presigned upload URLs, existence checks when an upload is finalized,
// and tenant-prefix-bounded deletion. Every key passed in must already
// be validated as tenant-scoped by the caller.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// DefaultUploadTTL bounds how long an issued upload URL stays valid.
const DefaultUploadTTL = 600 * time.Second

// API is the subset of the S3 client this service calls.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Presigner issues presigned upload requests. *s3.PresignClient
// satisfies it.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var _ API = (*s3.Client)(nil)
var _ Presigner = (*s3.PresignClient)(nil)

type Client struct {
	api     API
	presign Presigner
	bucket  string
	ttl     time.Duration
	log     *zap.Logger
}

func New(api API, presign Presigner, bucket string, ttl time.Duration, log *zap.Logger) *Client {
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}
	return &Client{api: api, presign: presign, bucket: bucket, ttl: ttl, log: log}
}

// PresignUpload returns a time-limited URL the browser PUTs the file to.
func (c *Client) PresignUpload(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		return "", fmt.Errorf("presign upload for %s: %w", key, err)
	}
	return req.URL, nil
}

// Exists reports whether the object has actually been uploaded.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

// Delete removes one object. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every object under the prefix and returns how
// many were deleted. Used by the tenant hard-delete cascade; the prefix
// bound is what keeps the cascade inside one tenant's namespace.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	var token *string
	for {
		page, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return deleted, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if err := c.Delete(ctx, *obj.Key); err != nil {
				return deleted, err
			}
			deleted++
		}
		if page.NextContinuationToken == nil {
			return deleted, nil
		}
		token = page.NextContinuationToken
	}
}
