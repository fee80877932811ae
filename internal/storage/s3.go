package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/brandonhuynh1/signage-api/internal/config"
	"github.com/brandonhuynh1/signage-api/internal/database"
	"github.com/rs/zerolog"
)

// deleteBatchSize is the S3 DeleteObjects limit
const deleteBatchSize = 1000

// Store keeps media objects in a single S3 bucket and hands out presigned
// GET URLs, cached in Redis for part of their lifetime.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	cache   *database.RedisClient
	logger  zerolog.Logger
}

// New creates an S3 store. Static credentials are used when both key parts
// are configured, otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.StorageConfig, cache *database.RedisClient, logger zerolog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newStore(client, cfg.Bucket, cfg.SignedURLTTL, cache, logger), nil
}

func newStore(client *s3.Client, bucket string, ttl time.Duration, cache *database.RedisClient, logger zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		ttl:     ttl,
		cache:   cache,
		logger:  logger.With().Str("component", "s3").Logger(),
	}
}

// Upload streams body to key
func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL for key
func (s *Store) SignedURL(ctx context.Context, key string) (string, error) {
	cacheKey := "signed-url:" + key
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			return cached, nil
		} else if !errors.Is(err, database.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("Failed to read signed URL cache")
		}
	}

	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) { po.Expires = s.ttl })
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}

	if s.cache != nil {
		// Cached for half the lifetime so a served URL always has time left
		if err := s.cache.Set(ctx, cacheKey, out.URL, s.ttl/2); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to cache signed URL")
		}
	}
	return out.URL, nil
}

// DeleteMany removes objects in batches and drops their cached URLs
func (s *Store) DeleteMany(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		ids := make([]types.ObjectIdentifier, 0, len(batch))
		cacheKeys := make([]string, 0, len(batch))
		for _, k := range batch {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
			cacheKeys = append(cacheKeys, "signed-url:"+k)
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		for _, e := range out.Errors {
			s.logger.Warn().
				Str("key", aws.ToString(e.Key)).
				Str("code", aws.ToString(e.Code)).
				Msg("Object not deleted")
		}

		if s.cache != nil {
			if err := s.cache.Delete(ctx, cacheKeys...); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to evict signed URL cache")
			}
		}
	}
	return nil
}
