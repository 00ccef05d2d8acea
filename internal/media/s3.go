package media

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	cfgs "taskhub/configs"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store stores objects in an S3-compatible bucket (MinIO in development)
// and addresses them by public URL <base>/<bucket>/<key>.
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

func NewS3Store(ctx context.Context, cfg cfgs.Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: strings.TrimSuffix(cfg.S3PublicBaseURL, "/"),
	}, nil
}

// Upload writes the object under a fresh key inside folder and returns its
// public URL.
func (s *S3Store) Upload(ctx context.Context, data []byte, filename, folder string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("%s/%s%s", folder, uuid.New(), ext)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key), nil
}

// Delete removes the object the URL points at.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, err := s.keyFromURL(url)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("media delete failed: %w", err)
	}
	return nil
}

func (s *S3Store) keyFromURL(url string) (string, error) {
	prefix := fmt.Sprintf("%s/%s/", s.baseURL, s.bucket)
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("url %q does not belong to this media store", url)
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", fmt.Errorf("url %q has an empty object key", url)
	}
	return key, nil
}
