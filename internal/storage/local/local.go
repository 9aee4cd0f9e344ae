package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

const defaultPageSize = 1000

// Storage treats a directory as a bucket. Keys are slash-separated paths
// relative to it, listed in directory-walk order.
type Storage struct {
	name     string
	base     string
	pageSize int
}

func New(name, basePath string, pageSize int) *Storage {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Storage{name: name, base: basePath, pageSize: pageSize}
}

func (s *Storage) Name() string { return s.name }

func (s *Storage) BasePath() string { return s.base }

func (s *Storage) Check(_ context.Context) error {
	info, err := os.Stat(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return &storage.ObjectError{Op: "Check", Key: s.base, Err: storage.ErrBucketNotFound}
		}
		if os.IsPermission(err) {
			return &storage.ObjectError{Op: "Check", Key: s.base, Err: storage.ErrAccessDenied}
		}
		return &storage.ObjectError{Op: "Check", Key: s.base, Err: err}
	}
	if !info.IsDir() {
		return &storage.ObjectError{Op: "Check", Key: s.base, Err: fmt.Errorf("%w: not a directory", storage.ErrBucketNotFound)}
	}
	return nil
}

// ListPage walks the tree and returns up to pageSize files after token.
// Walk order equals segment-wise key order, so the last key of a page is a
// stable resume point even if it was deleted in the meantime.
func (s *Storage) ListPage(ctx context.Context, prefix, token string) (storage.Page, error) {
	var page storage.Page

	err := filepath.WalkDir(s.base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p == s.base {
			return nil
		}

		rel, err := filepath.Rel(s.base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		if d.IsDir() {
			dirKey := key + "/"
			// prune directories that can't contain prefix matches or are wholly before token
			if !strings.HasPrefix(dirKey, prefix) && !strings.HasPrefix(prefix, dirKey) {
				return fs.SkipDir
			}
			if token != "" && compareKeys(key, token) < 0 && !strings.HasPrefix(token, dirKey) {
				return fs.SkipDir
			}
			return nil
		}

		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		if token != "" && compareKeys(key, token) <= 0 {
			return nil
		}
		if len(page.Objects) == s.pageSize {
			page.NextToken = page.Objects[len(page.Objects)-1].Key
			return fs.SkipAll
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("stat: %w", err)
		}
		page.Objects = append(page.Objects, storage.Object{
			Key:        key,
			Size:       info.Size(),
			Generation: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		})
		return nil
	})
	if err != nil {
		return storage.Page{}, &storage.ObjectError{Op: "List", Key: prefix, Err: err}
	}
	return page, nil
}

func (s *Storage) Delete(_ context.Context, key string) error {
	if key == "" || strings.Contains("/"+key+"/", "/../") {
		return &storage.ObjectError{Op: "Delete", Key: key, Err: storage.ErrInvalidKey}
	}
	p := filepath.Join(s.base, filepath.FromSlash(key))
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return &storage.ObjectError{Op: "Delete", Key: key, Err: storage.ErrNotFound}
		}
		if os.IsPermission(err) {
			return &storage.ObjectError{Op: "Delete", Key: key, Err: storage.ErrAccessDenied}
		}
		return &storage.ObjectError{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

func (s *Storage) Close() error { return nil }

// compareKeys orders keys segment by segment, matching fs.WalkDir's lexical
// walk ("a/b" sorts before "a.b" here, unlike a plain string compare).
func compareKeys(a, b string) int {
	as := strings.Split(a, "/")
	bs := strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

var _ storage.Store = (*Storage)(nil)
