package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dev-tams/cromwell-cleaner/internal/config"
	"github.com/dev-tams/cromwell-cleaner/internal/location"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
	"github.com/dev-tams/cromwell-cleaner/internal/storage/gcs"
	"github.com/dev-tams/cromwell-cleaner/internal/storage/local"
	s3store "github.com/dev-tams/cromwell-cleaner/internal/storage/s3"
)

// OpenStore builds the backend that serves loc. Credentials are resolved
// here, so an authentication problem surfaces before any listing starts.
func OpenStore(ctx context.Context, loc location.Location, cfg *config.Config) (storage.Store, error) {
	switch loc.Scheme {
	case location.SchemeGCS:
		st, err := gcs.New(ctx, gcs.Options{
			Bucket:          loc.Bucket,
			Project:         cfg.GCS.Project,
			CredentialsFile: cfg.GCS.CredentialsFile,
			PageSize:        cfg.PageSize,
		})
		if err != nil {
			return nil, err
		}
		return st, nil

	case location.SchemeS3:
		st, err := s3store.New(ctx, s3store.Options{
			Bucket:       loc.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			PageSize:     cfg.PageSize,
		})
		if err != nil {
			return nil, err
		}
		return st, nil

	case location.SchemeLocal:
		return local.New(loc.Scheme+"://"+loc.Bucket, filepath.Join(cfg.Local.Root, loc.Bucket), cfg.PageSize), nil

	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", location.ErrInvalid, loc.Scheme)
	}
}
