package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

const defaultPageSize = 1000

type Options struct {
	Bucket string
	// Project is billed for requests (requester-pays buckets). Optional.
	Project string
	// CredentialsFile is a service account JSON key. Empty means Application Default Credentials.
	CredentialsFile string
	PageSize        int
}

// Store lists and deletes objects in one Google Cloud Storage bucket.
type Store struct {
	bucketName string
	pageSize   int
	client     *gcs.Client
	bucket     *gcs.BucketHandle
}

func New(ctx context.Context, opt Options) (*Store, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	auth, err := clientAuth(ctx, opt.CredentialsFile)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{auth}
	if opt.Project != "" {
		opts = append(opts, option.WithQuotaProject(opt.Project))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}

	pageSize := opt.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	// Retries are owned by the deletion scheduler so each attempt is counted once.
	bucket := client.Bucket(opt.Bucket).Retryer(gcs.WithPolicy(gcs.RetryNever))

	return &Store{
		bucketName: opt.Bucket,
		pageSize:   pageSize,
		client:     client,
		bucket:     bucket,
	}, nil
}

func clientAuth(ctx context.Context, credentialsFile string) (option.ClientOption, error) {
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("%w: gcs credentials file: %v", storage.ErrAuthentication, err)
		}
		return option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile), nil
	}

	creds, err := google.FindDefaultCredentials(ctx, gcs.ScopeFullControl)
	if err != nil {
		return nil, fmt.Errorf("%w: gcs application default credentials: %v", storage.ErrAuthentication, err)
	}
	return option.WithCredentials(creds), nil
}

func (s *Store) Name() string { return "gs://" + s.bucketName }

func (s *Store) Check(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return mapError("Check", s.bucketName, err)
	}
	return nil
}

func (s *Store) ListPage(ctx context.Context, prefix, token string) (storage.Page, error) {
	q := &gcs.Query{Prefix: prefix, Projection: gcs.ProjectionNoACL}
	if err := q.SetAttrSelection([]string{"Name", "Size", "Generation"}); err != nil {
		return storage.Page{}, fmt.Errorf("gcs: attr selection: %w", err)
	}

	var attrs []*gcs.ObjectAttrs
	pager := iterator.NewPager(s.bucket.Objects(ctx, q), s.pageSize, token)
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return storage.Page{}, mapError("List", prefix, err)
	}

	page := storage.Page{
		Objects:   make([]storage.Object, 0, len(attrs)),
		NextToken: next,
	}
	for _, a := range attrs {
		page.Objects = append(page.Objects, storage.Object{
			Key:        a.Name,
			Size:       a.Size,
			Generation: strconv.FormatInt(a.Generation, 10),
		})
	}
	return page, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return mapError("Delete", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("gcs: close client: %w", err)
	}
	return nil
}

func mapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gcs.ErrObjectNotExist):
		return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrNotFound}
	case errors.Is(err, gcs.ErrBucketNotExist):
		return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrBucketNotFound}
	}

	// Token endpoint refusals surface before any API call is made.
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		if tokenErr.Response != nil && tokenErr.Response.StatusCode >= http.StatusInternalServerError {
			return &storage.ObjectError{Op: op, Key: key, Err: storage.Transient(err)}
		}
		return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", storage.ErrAuthentication, err)}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", storage.ErrAuthentication, err)}
		case apiErr.Code == http.StatusForbidden:
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", storage.ErrAccessDenied, err)}
		case apiErr.Code == http.StatusNotFound && op == "Check":
			return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrBucketNotFound}
		case apiErr.Code == http.StatusNotFound:
			return &storage.ObjectError{Op: op, Key: key, Err: storage.ErrNotFound}
		case apiErr.Code == http.StatusBadRequest:
			return &storage.ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %v", storage.ErrInvalidKey, err)}
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			return &storage.ObjectError{Op: op, Key: key, Err: storage.Transient(err)}
		}
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return &storage.ObjectError{Op: op, Key: key, Err: storage.Transient(err)}
	}

	return &storage.ObjectError{Op: op, Key: key, Err: err}
}
