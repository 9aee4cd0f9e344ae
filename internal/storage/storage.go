package storage

import (
	"context"
)

// Object describes one live object version returned by a listing.
type Object struct {
	Key        string
	Size       int64
	Generation string
}

// Page is one listing response. An empty NextToken means the listing is done.
type Page struct {
	Objects   []Object
	NextToken string
}

// Store is the slice of an object store the cleaner needs.
// Implementations must be safe for concurrent use.
type Store interface {
	Name() string
	// Check verifies the bucket exists and is reachable with the resolved credentials.
	Check(ctx context.Context) error
	// ListPage returns the page of objects under prefix that starts at token.
	ListPage(ctx context.Context, prefix, token string) (Page, error)
	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
