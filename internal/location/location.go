package location

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks a malformed --bucket argument.
var ErrInvalid = errors.New("invalid location")

const (
	SchemeGCS   = "gs"
	SchemeS3    = "s3"
	SchemeLocal = "file"
)

var supportedSchemes = map[string]struct{}{
	SchemeGCS:   {},
	SchemeS3:    {},
	SchemeLocal: {},
}

// Location is a parsed scheme://bucket[/prefix] argument.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

func Parse(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("%w: empty path", ErrInvalid)
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return Location{}, fmt.Errorf("%w: %q has no scheme (expected e.g. gs://bucket/prefix)", ErrInvalid, raw)
	}
	scheme = strings.ToLower(scheme)
	if _, ok := supportedSchemes[scheme]; !ok {
		return Location{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, scheme)
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w: %q has an empty bucket", ErrInvalid, raw)
	}

	return Location{
		Scheme: scheme,
		Bucket: bucket,
		Prefix: normalizePrefix(prefix),
	}, nil
}

// normalizePrefix drops leading/trailing separators and empty segments.
func normalizePrefix(p string) string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}

// ListPrefix is the prefix handed to the backend. A non-empty prefix gets a
// trailing separator so that "run1" does not match "run10/...".
func (l Location) ListPrefix() string {
	if l.Prefix == "" {
		return ""
	}
	return l.Prefix + "/"
}

func (l Location) String() string {
	if l.Prefix == "" {
		return fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Prefix)
}

// URL renders the full address of an object key inside this location's bucket.
func (l Location) URL(key string) string {
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, key)
}
