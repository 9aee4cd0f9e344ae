package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

func TestMapErrorSentinels(t *testing.T) {
	cases := []struct {
		name string
		op   string
		err  error
		want error
	}{
		{"object missing", "Delete", gcs.ErrObjectNotExist, storage.ErrNotFound},
		{"bucket missing", "Check", gcs.ErrBucketNotExist, storage.ErrBucketNotFound},
		{"forbidden", "Delete", &googleapi.Error{Code: http.StatusForbidden}, storage.ErrAccessDenied},
		{"unauthorized", "List", &googleapi.Error{Code: http.StatusUnauthorized}, storage.ErrAuthentication},
		{"bad request", "Delete", &googleapi.Error{Code: http.StatusBadRequest}, storage.ErrInvalidKey},
		{"404 on check", "Check", &googleapi.Error{Code: http.StatusNotFound}, storage.ErrBucketNotFound},
		{"404 on delete", "Delete", &googleapi.Error{Code: http.StatusNotFound}, storage.ErrNotFound},
		{"rate limited", "Delete", &googleapi.Error{Code: http.StatusTooManyRequests}, storage.ErrTransient},
		{"server error", "List", &googleapi.Error{Code: http.StatusServiceUnavailable}, storage.ErrTransient},
		{"truncated body", "List", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), storage.ErrTransient},
		{"token refused", "Check", fmt.Errorf("Get bucket: %w", &oauth2.RetrieveError{
			Response:  &http.Response{StatusCode: http.StatusBadRequest},
			ErrorCode: "invalid_grant",
		}), storage.ErrAuthentication},
		{"token endpoint down", "List", &oauth2.RetrieveError{
			Response: &http.Response{StatusCode: http.StatusBadGateway},
		}, storage.ErrTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapError(tc.op, "k", tc.err)
			assert.ErrorIs(t, got, tc.want)

			var objErr *storage.ObjectError
			assert.True(t, errors.As(got, &objErr))
			assert.Equal(t, tc.op, objErr.Op)
		})
	}
}

func TestMapErrorDeadlineIsTransient(t *testing.T) {
	err := mapError("Delete", "k", context.DeadlineExceeded)
	assert.True(t, storage.IsTransient(err))
	assert.Nil(t, mapError("Delete", "k", nil))
}
