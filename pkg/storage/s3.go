// Package storage mirrors catalog assets into S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

const (
	// FolderThumbnails is the S3 prefix for mirrored thumbnails.
	FolderThumbnails = "thumbnails"
	// MaxThumbnailSize bounds a single thumbnail download (5MB).
	MaxThumbnailSize = 5 * 1024 * 1024
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	ThumbnailsBucket string
}

// S3 uploads and checks thumbnail objects.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or the environment
// (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY), else the default chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.ThumbnailsBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ThumbnailKey returns the S3 object key: thumbnails/{external_id}.jpg.
func ThumbnailKey(externalID string) string {
	return path.Join(FolderThumbnails, path.Base(externalID)+".jpg")
}

// ThumbnailExists reports whether the thumbnail for externalID is already mirrored.
func (s *S3) ThumbnailExists(ctx context.Context, externalID string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.ThumbnailsBucket),
		Key:    aws.String(ThumbnailKey(externalID)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("head object: %w", err)
}

// UploadThumbnail streams body to the thumbnail key and returns the object URL.
func (s *S3) UploadThumbnail(ctx context.Context, externalID, contentType string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := ThumbnailKey(externalID)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.ThumbnailsBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return s.PublicObjectURL(key), nil
}

// PublicObjectURL returns the public URL for an object key in the thumbnails bucket.
func (s *S3) PublicObjectURL(key string) string {
	return ObjectURL(s.cfg.ThumbnailsBucket, s.cfg.Region, key)
}

// ObjectURL is the virtual-hosted URL of key in bucket.
func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// ThumbnailMirrorURL returns a func giving where a video's mirrored
// thumbnail lives. The object exists only once the mirror job has run.
func ThumbnailMirrorURL(bucket, region string) func(externalID string) string {
	return func(externalID string) string {
		return ObjectURL(bucket, region, ThumbnailKey(externalID))
	}
}
