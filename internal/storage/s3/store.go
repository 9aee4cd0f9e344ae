package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

const (
	defaultRegion   = "us-east-1"
	defaultPageSize = 1000
)

type Store struct {
	bucket   string
	pageSize int32
	client   *s3.Client
}

type Options struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	// AccessKey and SecretKey are optional; when empty the default AWS credential chain is used.
	AccessKey string
	SecretKey string
	PageSize  int
}

func New(ctx context.Context, opt Options) (*Store, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if (opt.AccessKey == "") != (opt.SecretKey == "") {
		return nil, fmt.Errorf("s3: access_key and secret_key must be set together")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opt.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opt.Region))
	}
	if opt.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", storage.ErrAuthentication, err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: aws credentials: %v", storage.ErrAuthentication, err)
	}

	pageSize := opt.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = defaultPageSize
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// The deletion scheduler owns retries.
		o.Retryer = aws.NopRetryer{}
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
		}
		o.UsePathStyle = opt.UsePathStyle
	})

	return &Store{
		bucket:   opt.Bucket,
		pageSize: int32(pageSize),
		client:   client,
	}, nil
}

func (s *Store) Name() string { return "s3://" + s.bucket }

func (s *Store) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return mapError("Check", s.bucket, err)
	}
	return nil
}

func (s *Store) ListPage(ctx context.Context, prefix, token string) (storage.Page, error) {
	in := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(s.pageSize),
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}

	out, err := s.client.ListObjectsV2(ctx, in)
	if err != nil {
		return storage.Page{}, mapError("List", prefix, err)
	}

	page := storage.Page{Objects: make([]storage.Object, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, storage.Object{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
			// Unversioned buckets have no generation; the ETag identifies the content version.
			Generation: aws.ToString(obj.ETag),
		})
	}
	if aws.ToBool(out.IsTruncated) {
		page.NextToken = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("Delete", key, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrBucketNotFound}
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrNotFound}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout", "InternalError", "ServiceUnavailable":
			return &storage.ObjectError{Op: op, Key: key, Err: storage.Transient(err)}
		case "AccessDenied", "AllAccessDisabled":
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %s: %s", storage.ErrAccessDenied, apiErr.ErrorCode(), apiErr.ErrorMessage())}
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %s: %s", storage.ErrAuthentication, apiErr.ErrorCode(), apiErr.ErrorMessage())}
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		switch {
		case code == http.StatusNotFound && op == "Check":
			return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrBucketNotFound}
		case code == http.StatusNotFound:
			return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrNotFound}
		case code == http.StatusForbidden:
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", storage.ErrAccessDenied, err)}
		case code == http.StatusBadRequest:
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", storage.ErrInvalidKey, err)}
		case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
			return &storage.ObjectError{Op: op, Key: key, Err: storage.Transient(err)}
		}
	}

	return &storage.ObjectError{Op: op, Key: key, Err: err}
}
