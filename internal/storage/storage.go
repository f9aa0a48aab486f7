// Package storage issues pre-signed URLs against an S3-compatible blob store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"roomcheck-backend/config"
)

// PresignedURL is a time-limited URL for one object.
type PresignedURL struct {
	Key       string    `json:"storageKey"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// BlobStore is what the workflow needs from the blob store.
type BlobStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (PresignedURL, error)
	PresignDownload(ctx context.Context, key string) (PresignedURL, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expiration() time.Duration
}

var _ BlobStore = (*S3Store)(nil)

// S3Store implements BlobStore with the AWS SDK. It works with any
// S3-compatible service.
type S3Store struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// Option configures an S3Store.
type Option func(*S3Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *S3Store) {
		s.logger = logger
	}
}

// WithPresignExpiration overrides the configured URL lifetime.
func WithPresignExpiration(d time.Duration) Option {
	return func(s *S3Store) {
		s.presignExpiration = d
	}
}

// NewS3Store creates an S3Store from configuration.
func NewS3Store(cfg config.StorageConfig, opts ...Option) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access and secret keys are required")
	}

	var endpoint string
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			if cfg.UseSSL {
				endpoint = "https://" + endpoint
			} else {
				endpoint = "http://" + endpoint
			}
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3Store{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.presignExpiration <= 0 {
		store.presignExpiration = 15 * time.Minute
	}
	return store, nil
}

// Expiration is the lifetime of issued URLs.
func (s *S3Store) Expiration() time.Duration {
	return s.presignExpiration
}

// PresignUpload returns a PUT URL for key.
func (s *S3Store) PresignUpload(ctx context.Context, key, contentType string) (PresignedURL, error) {
	if key == "" {
		return PresignedURL{}, errors.New("storage key is required")
	}
	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return PresignedURL{}, fmt.Errorf("failed to generate upload URL: %w", err)
	}
	return PresignedURL{Key: key, URL: req.URL, ExpiresAt: time.Now().Add(s.presignExpiration)}, nil
}

// PresignDownload returns a GET URL for key.
func (s *S3Store) PresignDownload(ctx context.Context, key string) (PresignedURL, error) {
	if key == "" {
		return PresignedURL{}, errors.New("storage key is required")
	}
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return PresignedURL{}, fmt.Errorf("failed to generate download URL: %w", err)
	}
	return PresignedURL{Key: key, URL: req.URL, ExpiresAt: time.Now().Add(s.presignExpiration)}, nil
}

// Exists reports whether key has been uploaded.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report a missing key differently.
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

// BaselinePhotoKey is where a host's baseline photo for a room is stored.
func BaselinePhotoKey(hostID, roomID, filename string) string {
	return path.Join("hosts", hostID, "rooms", roomID, "baseline", "photos", cleanName(filename))
}

// CheckoutPhotoKey is where a guest's exit photo for a checkout is stored.
func CheckoutPhotoKey(hostID, roomID, checkoutID, filename string) string {
	return path.Join("hosts", hostID, "rooms", roomID, "checkouts", checkoutID, "photos", cleanName(filename))
}

// cleanName keeps only the final path element so a filename cannot escape
// its prefix.
func cleanName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	switch name {
	case ".", "/", "..":
		return "photo"
	}
	return name
}
