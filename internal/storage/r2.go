package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// R2Storage stores objects in a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// NewR2Storage builds an S3 client against the account's R2 endpoint.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.AccountID == "" && cfg.Endpoint == "" {
		return nil, errors.New("r2: account ID or endpoint is required")
	}
	if cfg.BucketName == "" {
		return nil, errors.New("r2: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.Endpoint != ""
	})

	logger.Info("Using R2 storage", "bucket", cfg.BucketName, "endpoint", endpoint)
	return &R2Storage{client: client, bucket: cfg.BucketName, logger: logger}, nil
}

// Put uploads data. Create-only puts send If-None-Match: * so R2 itself
// rejects a second writer of the same key.
func (s *R2Storage) Put(ctx context.Context, key string, data []byte, opts PutOptions) error {
	if err := checkKey(key); err != nil {
		return keyErr("put", key, err)
	}
	if len(data) > MaxObjectSize {
		return keyErr("put", key, ErrTooLarge)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = contentTypeFor(key, data)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if !opts.Overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return keyErr("put", key, classifyS3Error(err))
	}

	s.logger.Debug("Stored object", "key", key, "size", len(data), "etag", aws.ToString(out.ETag))
	return nil
}

func (s *R2Storage) Get(ctx context.Context, key string) (Object, error) {
	if err := checkKey(key); err != nil {
		return Object{}, keyErr("get", key, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Object{}, keyErr("get", key, classifyS3Error(err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return Object{}, keyErr("get", key, err)
	}
	if len(data) > MaxObjectSize {
		return Object{}, keyErr("get", key, ErrTooLarge)
	}

	return Object{
		ObjectInfo: ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  aws.ToString(out.ContentType),
			LastModified: aws.ToTime(out.LastModified),
			ETag:         aws.ToString(out.ETag),
		},
		Data: data,
	}, nil
}

func (s *R2Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if strings.Contains(prefix, "..") || strings.HasPrefix(prefix, "/") {
		return nil, keyErr("list", prefix, ErrInvalidKey)
	}

	var out []ObjectInfo
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, keyErr("list", prefix, classifyS3Error(err))
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}
	return out, nil
}

// Delete is idempotent; S3 reports success for missing keys.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return keyErr("delete", key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return keyErr("delete", key, classifyS3Error(err))
	}

	s.logger.Debug("Deleted object", "key", key)
	return nil
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// classifyS3Error maps SDK errors onto the package sentinels, keeping the
// original error in the chain.
func classifyS3Error(err error) error {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
	)
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	code := ""
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	status := 0
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	switch {
	case code == "NoSuchKey" || code == "NotFound" || status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case code == "AccessDenied" || status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case code == "PreconditionFailed" || status == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %w", ErrKeyExists, err)
	}
	return err
}
