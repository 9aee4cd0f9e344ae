// Package memory is an in-process storage.Store used by tests. It supports
// paging, scripted failures and records how many delete requests were issued
// and how many ran at once.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	objects  map[string]storage.Object
	pageSize int

	deleteFaults map[string][]error
	listFaults   []error
	checkErr     error
	deleteDelay  time.Duration

	deleteCalls atomic.Int64
	listCalls   atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func New(pageSize int, keys ...string) *Store {
	if pageSize <= 0 {
		pageSize = 1000
	}
	s := &Store{
		objects:      make(map[string]storage.Object, len(keys)),
		pageSize:     pageSize,
		deleteFaults: make(map[string][]error),
	}
	for i, k := range keys {
		s.objects[k] = storage.Object{Key: k, Size: int64(len(k)), Generation: strconv.Itoa(i + 1)}
	}
	return s
}

// FailDelete queues errors returned by successive Delete calls for key,
// one per call, before deletes of key start succeeding.
func (s *Store) FailDelete(key string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFaults[key] = append(s.deleteFaults[key], errs...)
}

// FailList queues errors returned by successive ListPage calls.
func (s *Store) FailList(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFaults = append(s.listFaults, errs...)
}

func (s *Store) FailCheck(err error) { s.checkErr = err }

// SetDeleteDelay makes every Delete hold its slot for d, so overlapping calls are observable.
func (s *Store) SetDeleteDelay(d time.Duration) { s.deleteDelay = d }

// Remove drops key without counting a delete request, simulating an external deletion.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
}

func (s *Store) Name() string { return "memory" }

func (s *Store) Check(_ context.Context) error { return s.checkErr }

func (s *Store) ListPage(ctx context.Context, prefix, token string) (storage.Page, error) {
	s.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return storage.Page{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.listFaults) > 0 {
		err := s.listFaults[0]
		s.listFaults = s.listFaults[1:]
		return storage.Page{}, &storage.ObjectError{Op: "List", Key: prefix, Err: err}
	}

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var page storage.Page
	if len(keys) > s.pageSize {
		keys = keys[:s.pageSize]
		page.NextToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		page.Objects = append(page.Objects, s.objects[k])
	}
	return page, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.deleteCalls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if s.deleteDelay > 0 {
		t := time.NewTimer(s.deleteDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if faults := s.deleteFaults[key]; len(faults) > 0 {
		s.deleteFaults[key] = faults[1:]
		return &storage.ObjectError{Op: "Delete", Key: key, Err: faults[0]}
	}
	if _, ok := s.objects[key]; !ok {
		return &storage.ObjectError{Op: "Delete", Key: key, Err: storage.ErrNotFound}
	}
	delete(s.objects, key)
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Store) DeleteCalls() int64 { return s.deleteCalls.Load() }

func (s *Store) ListCalls() int64 { return s.listCalls.Load() }

func (s *Store) MaxInFlight() int64 { return s.maxInFlight.Load() }

func (s *Store) String() string {
	return fmt.Sprintf("memory(%d objects)", s.Len())
}

var _ storage.Store = (*Store)(nil)
