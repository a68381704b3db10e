package devkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Archive stores exception reports outside the developer's machine.
type Archive interface {
	Store(ctx context.Context, r *ExceptionReport) (key string, err error)
}

// ExceptionReport is an exception together with the device it came from.
type ExceptionReport struct {
	Device     int           `json:"device"`
	RemoteAddr string        `json:"remoteAddr,omitempty"`
	ContextID  string        `json:"contextId,omitempty"`
	Time       time.Time     `json:"time"`
	Exception  ExceptionData `json:"exception"`
}

// S3API is the subset of *s3.Client used by S3Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Archive stores exception reports as JSON objects in an S3 bucket.
//
// Example usage:
//
//	client := devkit.NewS3Client("us-east-1", "")
//	archive := devkit.NewS3Archive(client, "my-bucket", "exceptions/")
type S3Archive struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Archive creates an archive writing under prefix in bucket.
func NewS3Archive(client S3API, bucket, prefix string) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// NewS3Client builds an S3 client for region with credentials taken from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN. A non-empty
// endpoint selects an S3-compatible service with path-style addressing.
func NewS3Client(region, endpoint string) *s3.Client {
	creds := aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, fmt.Errorf("devkit: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "Environment",
		}, nil
	}))

	opts := s3.Options{
		Region:      region,
		Credentials: creds,
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// Store uploads r and returns its object key.
func (a *S3Archive) Store(ctx context.Context, r *ExceptionReport) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("devkit: encode exception report: %w", err)
	}

	key := a.keyFor(r)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"device":    fmt.Sprint(r.Device),
			"source":    r.Exception.Source,
			"timestamp": r.Time.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("devkit: put exception report: %w", err)
	}
	return key, nil
}

// keyFor builds "<prefix>YYYY/MM/DD/<unix-nanos>-<uuid>.json" so listings
// sort chronologically.
func (a *S3Archive) keyFor(r *ExceptionReport) string {
	t := r.Time.UTC()
	return fmt.Sprintf("%s%s/%d-%s.json", a.prefix, t.Format("2006/01/02"), t.UnixNano(), uuid.NewString())
}

// List returns the keys of archived reports, oldest first.
func (a *S3Archive) List(ctx context.Context) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("devkit: list exception reports: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
