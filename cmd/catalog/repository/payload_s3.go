package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lyzr/mediacatalog/cmd/catalog/models"
)

// S3API is the subset of *s3.Client the payload store uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3PayloadStore keeps payloads as objects under payloads/<id>
type S3PayloadStore struct {
	client     S3API
	bucketName string
}

// NewS3PayloadStore creates a store over an existing client
func NewS3PayloadStore(client S3API, bucketName string) *S3PayloadStore {
	return &S3PayloadStore{client: client, bucketName: bucketName}
}

// NewS3Client loads AWS configuration from the environment. A non-empty
// endpoint switches to path-style addressing for S3-compatible servers.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3PayloadStore) key(id int64) string {
	return fmt.Sprintf("payloads/%d", id)
}

// Save spools r to a temporary file so the upload has a known length,
// then puts it in one request. S3 replaces objects atomically.
func (s *S3PayloadStore) Save(ctx context.Context, id int64, contentType string, r io.Reader) (int64, error) {
	spool, err := os.CreateTemp("", "payload-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create spool: %w", models.ErrStorageFailure, err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	n, err := io.Copy(spool, r)
	if err != nil {
		return 0, fmt.Errorf("%w: read payload: %w", models.ErrStorageFailure, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: rewind spool: %w", models.ErrStorageFailure, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(s.key(id)),
		Body:          spool,
		ContentLength: aws.Int64(n),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("%w: upload to S3: %w", models.ErrStorageFailure, err)
	}

	return n, nil
}

// Has reports whether the object for id exists
func (s *S3PayloadStore) Has(ctx context.Context, id int64) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head S3 object: %w", models.ErrStorageFailure, err)
	}
	return true, nil
}

// Open starts a download of the object for id. The content type is
// the one stored on the object, so it always matches the body.
func (s *S3PayloadStore) Open(ctx context.Context, id int64) (*Payload, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: download from S3: %w", models.ErrStorageFailure, err)
	}

	size := int64(-1)
	if result.ContentLength != nil {
		size = *result.ContentLength
	}

	return &Payload{
		ContentType: aws.ToString(result.ContentType),
		Size:        size,
		Body:        result.Body,
	}, nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
