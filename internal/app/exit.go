package app

import (
	"context"
	"errors"

	"github.com/dev-tams/cromwell-cleaner/internal/config"
	"github.com/dev-tams/cromwell-cleaner/internal/exitcodes"
	"github.com/dev-tams/cromwell-cleaner/internal/location"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
	"github.com/dev-tams/cromwell-cleaner/internal/sweep"
)

// ExitCode maps the error returned by RunSweep to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}

	var incomplete *sweep.IncompleteError
	if errors.As(err, &incomplete) {
		if incomplete.Interrupted {
			return exitcodes.Interrupted
		}
		return exitcodes.RunFailures
	}

	switch {
	case errors.Is(err, location.ErrInvalid),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, storage.ErrBucketNotFound):
		return exitcodes.InvalidConfig
	case errors.Is(err, storage.ErrAuthentication):
		return exitcodes.AuthFailure
	case errors.Is(err, context.Canceled):
		return exitcodes.Interrupted
	default:
		return exitcodes.RunFailures
	}
}
