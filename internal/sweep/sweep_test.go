package sweep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tams/cromwell-cleaner/internal/classify"
	"github.com/dev-tams/cromwell-cleaner/internal/location"
	"github.com/dev-tams/cromwell-cleaner/internal/metrics"
	"github.com/dev-tams/cromwell-cleaner/internal/retry"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
	"github.com/dev-tams/cromwell-cleaner/internal/storage/memory"
)

const root = "cromwell-executions"

// fixture returns keys under root: n shards each with stdout, rc and a
// declared output, plus one final output outside any call directory.
func fixture(n int) (all, scaffold, outputs []string) {
	for i := 0; i < n; i++ {
		dir := fmt.Sprintf("%s/wf/1234/call-align/shard-%d/attempt-1", root, i)
		scaffold = append(scaffold, dir+"/stdout", dir+"/rc")
		outputs = append(outputs, dir+"/aligned.bam")
	}
	outputs = append(outputs, root+"/wf/1234/final-output.vcf")
	all = append(append(all, scaffold...), outputs...)
	return all, scaffold, outputs
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Retryable:   storage.IsTransient,
	}
}

func newSweeper(t *testing.T, store storage.Store, opts Options) *Sweeper {
	t.Helper()
	c, err := classify.New(nil, classify.Options{})
	require.NoError(t, err)
	loc, err := location.Parse("gs://bucket/" + root)
	require.NoError(t, err)

	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 2
	}
	opts.Policy = testPolicy()
	opts.RequestTimeout = time.Second

	return &Sweeper{
		Store:      store,
		Location:   loc,
		Classifier: c,
		Options:    opts,
		Log:        zerolog.Nop(),
		Metrics:    metrics.New(),
	}
}

func TestRunDeletesOnlyScaffold(t *testing.T) {
	all, scaffold, outputs := fixture(5)
	store := memory.New(3, append(all, "elsewhere/call-x/stdout")...)

	summary, err := newSweeper(t, store, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, summary.Status())
	assert.Equal(t, len(all), summary.Listed)
	assert.Equal(t, len(outputs), summary.Kept)
	assert.Equal(t, len(scaffold), summary.Deleted)
	assert.Zero(t, summary.Failed)
	assert.EqualValues(t, len(scaffold), store.DeleteCalls())
	assert.Equal(t, 5, summary.ByReason[classify.ReasonCapturedStream])
	assert.Equal(t, 5, summary.ByReason[classify.ReasonReturnCodeMarker])

	for _, k := range scaffold {
		assert.False(t, store.Has(k), k)
	}
	for _, k := range outputs {
		assert.True(t, store.Has(k), k)
	}
	assert.True(t, store.Has("elsewhere/call-x/stdout"), "objects outside the prefix are never listed")
}

func TestRunDryRunIssuesNoDeletes(t *testing.T) {
	all, scaffold, _ := fixture(4)
	store := memory.New(2, all...)

	var printed []string
	s := newSweeper(t, store, Options{DryRun: true})
	s.OnWouldDelete = func(o Outcome) { printed = append(printed, o.Key) }

	summary, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, store.DeleteCalls())
	assert.Equal(t, len(all), store.Len())
	assert.True(t, summary.DryRun)
	assert.Equal(t, len(scaffold), summary.WouldDelete)
	assert.Zero(t, summary.Deleted)
	assert.ElementsMatch(t, scaffold, printed)
	assert.Equal(t, StatusSuccess, summary.Status())
}

func TestRunPartialFailure(t *testing.T) {
	all, scaffold, _ := fixture(3)
	store := memory.New(4, all...)
	denied := scaffold[2]
	store.FailDelete(denied, storage.ErrAccessDenied)

	summary, err := newSweeper(t, store, Options{}).Run(context.Background())

	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 1, incomplete.Failed)
	assert.Equal(t, StatusFailure, summary.Status())
	assert.Equal(t, len(scaffold)-1, summary.Deleted)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, denied, summary.Failures[0].Key)
	assert.Equal(t, "access-denied", summary.Failures[0].Kind)

	for _, k := range scaffold {
		assert.Equal(t, k == denied, store.Has(k), k)
	}
}

func TestRunTreatsMissingObjectAsDeleted(t *testing.T) {
	all, scaffold, _ := fixture(2)
	store := memory.New(10, all...)
	// removed by someone else between listing and deletion
	store.FailDelete(scaffold[0], storage.ErrNotFound)

	summary, err := newSweeper(t, store, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(scaffold), summary.Deleted)
	assert.Equal(t, 1, summary.AlreadyGone)
	assert.Zero(t, summary.Failed)
}

func TestRunRetriesTransientDeletes(t *testing.T) {
	all, scaffold, _ := fixture(2)
	store := memory.New(10, all...)
	flaky := storage.Transient(errors.New("503"))
	store.FailDelete(scaffold[0], flaky, flaky)
	store.FailDelete(scaffold[1], flaky, flaky, flaky)

	summary, err := newSweeper(t, store, Options{}).Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, len(scaffold)-1, summary.Deleted)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 4, summary.Retries)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, scaffold[1], summary.Failures[0].Key)
	assert.Equal(t, "transient", summary.Failures[0].Kind)
	assert.Equal(t, 2, summary.Failures[0].Retries)
	assert.False(t, store.Has(scaffold[0]))
	// 3 attempts for each faulty key plus one per healthy key
	assert.EqualValues(t, 3+3+len(scaffold)-2, store.DeleteCalls())
}

func TestRunConcurrencyBound(t *testing.T) {
	all, scaffold, _ := fixture(20)
	store := memory.New(7, all...)
	store.SetDeleteDelay(5 * time.Millisecond)

	summary, err := newSweeper(t, store, Options{Workers: 3, QueueSize: 5}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(scaffold), summary.Deleted)
	assert.LessOrEqual(t, store.MaxInFlight(), int64(3))
	assert.GreaterOrEqual(t, store.MaxInFlight(), int64(1))
}

func TestRunListingFailure(t *testing.T) {
	all, _, _ := fixture(2)

	t.Run("transient page recovers", func(t *testing.T) {
		store := memory.New(2, all...)
		store.FailList(storage.Transient(errors.New("429")))

		summary, err := newSweeper(t, store, Options{}).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, len(all), summary.Listed)
	})

	t.Run("permanent page stops listing", func(t *testing.T) {
		store := memory.New(2, all...)
		store.FailList(storage.ErrAccessDenied)

		summary, err := newSweeper(t, store, Options{}).Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrAccessDenied)

		var listErr *ListError
		require.ErrorAs(t, summary.ListErr, &listErr)
		assert.Equal(t, 1, listErr.Page)
		assert.Zero(t, summary.Listed)
		assert.Equal(t, StatusFailure, summary.Status())
	})
}

func TestRunInterruptedBeforeStart(t *testing.T) {
	all, _, _ := fixture(3)
	store := memory.New(2, all...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newSweeper(t, store, Options{}).Run(ctx)
	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.True(t, incomplete.Interrupted)
	assert.True(t, summary.Interrupted)
	assert.Nil(t, summary.ListErr)
	assert.Zero(t, store.DeleteCalls())
	assert.Equal(t, len(all), store.Len())
}

func TestRunEmptyPrefix(t *testing.T) {
	store := memory.New(10, "unrelated/key")

	summary, err := newSweeper(t, store, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Listed)
	assert.Equal(t, StatusSuccess, summary.Status())
}

func TestSummaryWriteText(t *testing.T) {
	s := &Summary{
		Location: "gs://b/p",
		Listed:   4,
		Kept:     1,
		Deleted:  2,
		Failed:   1,
		ByReason: map[classify.Reason]int{classify.ReasonCapturedStream: 2},
		Failures: []Failure{{Key: "p/x/call-a/rc", Kind: "access-denied", Err: "denied"}},
	}

	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, "status:")
	assert.Contains(t, out, "failure")
	assert.Contains(t, out, "captured-stream:")
	assert.Contains(t, out, "p/x/call-a/rc [access-denied]")
}

func TestRunInterruptedMidRun(t *testing.T) {
	_, scaffold, _ := fixture(3)
	store := memory.New(10, scaffold...)
	store.SetDeleteDelay(30 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	summary, err := newSweeper(t, store, Options{Workers: 2, QueueSize: 1}).Run(ctx)

	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.True(t, summary.Interrupted)
	assert.Zero(t, summary.Failed, "in-flight deletes run on a detached context")
	assert.Positive(t, summary.Deleted)
	assert.Positive(t, summary.NotAttempted)
	assert.EqualValues(t, summary.Deleted, store.DeleteCalls())
	assert.LessOrEqual(t, summary.Deleted+summary.NotAttempted, len(scaffold))

	gone := 0
	for _, k := range scaffold {
		if !store.Has(k) {
			gone++
		}
	}
	assert.Equal(t, summary.Deleted, gone)
}

func TestRunListingWaitsForSlowDeletes(t *testing.T) {
	var keys []string
	for i := 0; i < 200; i++ {
		keys = append(keys, fmt.Sprintf("%s/wf/1234/call-align/shard-%d/stdout", root, i))
	}
	store := memory.New(1, keys...)
	store.SetDeleteDelay(100 * time.Millisecond)

	sw := newSweeper(t, store, Options{Workers: 1, QueueSize: 2})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Summary, 1)
	go func() {
		summary, _ := sw.Run(ctx)
		done <- summary
	}()

	time.Sleep(50 * time.Millisecond)
	// one object per page: in flight, the task queue, the classifier hand-off,
	// the object buffer and the enumerator's pending send
	listed := store.ListCalls()
	assert.LessOrEqual(t, listed, int64(10), "listing must stall while the queue is full")
	cancel()

	summary := <-done
	require.NotNil(t, summary)
	assert.True(t, summary.Interrupted)
	assert.Less(t, summary.Listed, len(keys))
	assert.LessOrEqual(t, store.ListCalls(), int64(12))
}
