// Package objectstore adapts an S3-compatible bucket for photo uploads and
// downloads. Clients never stream bytes through the service: they receive
// presigned URLs and talk to the bucket directly.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"ezclaim/internal/platform/config"
	"ezclaim/pkg/platform/sentinel"
)

// PresignedRequest is a URL the client can call without credentials, plus
// the headers it must send with it.
type PresignedRequest struct {
	URL     string
	Method  string
	Headers map[string]string
}

// Client wraps the S3 API and its presigner.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
}

// New builds a client from cfg. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.ObjectStore) (*Client, error) {
	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsConf, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Client{s3: client, presign: s3.NewPresignClient(client)}, nil
}

// PresignPut returns a URL that uploads key into bucket until ttl elapses.
func (c *Client) PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (*PresignedRequest, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := c.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put %s/%s: %w", bucket, key, err)
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, Headers: flatten(req.SignedHeader)}, nil
}

// PresignGet returns a URL that downloads key from bucket until ttl elapses.
func (c *Client) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (*PresignedRequest, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get %s/%s: %w", bucket, key, err)
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, Headers: flatten(req.SignedHeader)}, nil
}

// Stat returns sentinel.ErrNotFound when key is absent from bucket.
func (c *Client) Stat(ctx context.Context, bucket, key string) error {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("head %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes key from bucket. Deleting an absent key succeeds.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// EnsureBucket creates bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("head bucket %s: %w", bucket, err)
	}
	_, err = c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
