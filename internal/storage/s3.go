package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultPresignExpiry = time.Hour

// S3Config configures the S3-backed uploader.
type S3Config struct {
	Bucket string
	Region string
	// Static credentials; when empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	// PresignExpiry bounds how long upload and download URLs stay valid.
	PresignExpiry time.Duration
	// HTTPClient performs the presigned PUT. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// S3Uploader stores attachments by presigning PUT/GET requests and
// streaming the payload over HTTP, so object bytes never pass through
// the AWS SDK's request signer.
type S3Uploader struct {
	presigner  *s3.PresignClient
	bucket     string
	expiry     time.Duration
	httpClient *http.Client
}

// NewS3Uploader builds an uploader for the configured bucket.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Uploader{
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		expiry:     expiry,
		httpClient: httpClient,
	}, nil
}

// Upload presigns a PUT for the key and streams the payload to it,
// reporting fractional progress as bytes are consumed.
func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	presigned, err := u.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("presign put: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.URL, newProgressReader(r, size, progress))
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{Key: key, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if progress != nil {
		progress(1)
	}
	return key, nil
}

// DownloadURL presigns a GET for the key.
func (u *S3Uploader) DownloadURL(ctx context.Context, key string) (string, error) {
	presigned, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &u.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", fmt.Errorf("s3: presign get %s: %w", key, err)
	}
	return presigned.URL, nil
}
