package s3store

import (
	"errors"
	"net/http"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"

	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

func responseError(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("boom"),
		},
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		op   string
		err  error
		want error
	}{
		{"no such key", "Delete", &types.NoSuchKey{}, storage.ErrNotFound},
		{"no such bucket", "List", &types.NoSuchBucket{}, storage.ErrBucketNotFound},
		{"slow down", "Delete", &smithy.GenericAPIError{Code: "SlowDown"}, storage.ErrTransient},
		{"access denied code", "Delete", &smithy.GenericAPIError{Code: "AccessDenied"}, storage.ErrAccessDenied},
		{"expired token", "List", &smithy.GenericAPIError{Code: "ExpiredToken"}, storage.ErrAuthentication},
		{"head bucket 404", "Check", responseError(http.StatusNotFound), storage.ErrBucketNotFound},
		{"403", "Delete", responseError(http.StatusForbidden), storage.ErrAccessDenied},
		{"503", "List", responseError(http.StatusServiceUnavailable), storage.ErrTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tc.op, "k", tc.err), tc.want)
		})
	}
}

func TestMapErrorLeavesUnknownPermanent(t *testing.T) {
	err := mapError("Delete", "k", errors.New("mystery"))
	assert.False(t, storage.IsTransient(err))
	assert.Equal(t, "unknown", storage.Kind(err))
}
