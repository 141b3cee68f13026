package provider

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	platformconfig "github.com/joefour/SnapJS-AdminServer/internal/platform/config"
)

// s3Provider implements BlobProvider for any S3-compatible store.
type s3Provider struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string
}

// NewS3Provider creates a new provider from configuration.
func NewS3Provider(cfg *platformconfig.StorageConfig) (BlobProvider, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("STORAGE_ACCESS_KEY_ID and STORAGE_SECRET_ACCESS_KEY are required")
	}
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET_NAME is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// R2 and most self-hosted stores need path-style addressing
			o.UsePathStyle = true
		}
	})

	return &s3Provider{
		s3Client:  s3Client,
		bucket:    cfg.BucketName,
		publicURL: cfg.PublicURL,
	}, nil
}

// Fetch downloads the raw bytes of an object.
func (p *s3Provider) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// ResolveKey maps a URL onto the object key. URLs under the configured
// public base resolve by prefix strip; anything else falls back to the
// URL path with the bucket segment removed.
func (p *s3Provider) ResolveKey(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		// Already a bare key
		return strings.TrimPrefix(rawURL, "/"), nil
	}

	if p.publicURL != "" {
		publicBase := strings.TrimSuffix(p.publicURL, "/")
		if strings.HasPrefix(rawURL, publicBase+"/") {
			return strings.TrimPrefix(rawURL, publicBase+"/"), nil
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid object URL: %w", err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimPrefix(path, p.bucket+"/")
	if path == "" {
		return "", fmt.Errorf("object URL %s carries no key", rawURL)
	}
	return path, nil
}

// GeneratePresignedDownloadURL generates a download URL. When a public
// CDN base is configured it is returned directly.
func (p *s3Provider) GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if p.publicURL != "" {
		publicBase := strings.TrimSuffix(p.publicURL, "/")
		return fmt.Sprintf("%s/%s", publicBase, key), nil
	}

	presignClient := s3.NewPresignClient(p.s3Client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiresIn
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return req.URL, nil
}

// Delete deletes a file from the bucket.
func (p *s3Provider) Delete(ctx context.Context, key string) error {
	_, err := p.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// GetMetadata retrieves object metadata (size).
func (p *s3Provider) GetMetadata(ctx context.Context, key string) (int64, error) {
	headOutput, err := p.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get object metadata: %w", err)
	}
	if headOutput.ContentLength == nil {
		return 0, fmt.Errorf("content length is nil")
	}
	return *headOutput.ContentLength, nil
}
