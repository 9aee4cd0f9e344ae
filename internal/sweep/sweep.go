package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dev-tams/cromwell-cleaner/internal/classify"
	"github.com/dev-tams/cromwell-cleaner/internal/location"
	"github.com/dev-tams/cromwell-cleaner/internal/metrics"
	"github.com/dev-tams/cromwell-cleaner/internal/retry"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

const defaultRequestTimeout = 30 * time.Second

type Options struct {
	DryRun         bool
	Workers        int
	QueueSize      int
	RequestTimeout time.Duration
	Policy         retry.Policy
	// RateLimit is delete requests per second across all workers; 0 disables the cap.
	RateLimit float64
}

// Sweeper wires one run of the pipeline. Build a new one per run.
type Sweeper struct {
	Store      storage.Store
	Location   location.Location
	Classifier *classify.Classifier
	Options    Options
	Log        zerolog.Logger
	Metrics    *metrics.Metrics
	// OnWouldDelete is called from the aggregation goroutine for every
	// would-delete outcome in a dry run.
	OnWouldDelete func(Outcome)
}

func (s *Sweeper) defaults() {
	if s.Options.Workers < 1 {
		s.Options.Workers = 1
	}
	if s.Options.QueueSize < 1 {
		s.Options.QueueSize = s.Options.Workers
	}
	if s.Options.RequestTimeout <= 0 {
		s.Options.RequestTimeout = defaultRequestTimeout
	}
	if s.Options.Policy.Retryable == nil {
		s.Options.Policy.Retryable = storage.IsTransient
	}
	if s.Metrics == nil {
		s.Metrics = metrics.New()
	}
}

// Run lists the location, classifies every object and deletes the scaffold.
// The summary is always returned; the error is non-nil when the run was not
// clean (see Summary.Err).
func (s *Sweeper) Run(ctx context.Context) (*Summary, error) {
	s.defaults()
	opts := s.Options
	log := s.Log.With().Str("run_id", uuid.NewString()).Str("location", s.Location.String()).Logger()
	log.Info().Bool("dry_run", opts.DryRun).Int("workers", opts.Workers).Msg("sweep started")

	started := time.Now()
	reporter := NewReporter(s.Location.String(), opts.DryRun, started)

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	enum := &Enumerator{
		Store:          s.Store,
		Prefix:         s.Location.ListPrefix(),
		Policy:         opts.Policy,
		RequestTimeout: opts.RequestTimeout,
		Log:            log,
		Metrics:        s.Metrics,
	}
	sched := &Scheduler{
		Store:          s.Store,
		Workers:        opts.Workers,
		DryRun:         opts.DryRun,
		Policy:         opts.Policy,
		RequestTimeout: opts.RequestTimeout,
		Limiter:        limiter,
		Log:            log,
		Metrics:        s.Metrics,
	}

	objects := make(chan storage.Object, opts.QueueSize)
	tasks := make(chan Task, opts.QueueSize)
	results := make(chan Outcome, opts.Workers)

	var (
		listErr   error
		listed    int
		kept      int
		notQueued int
	)

	var g errgroup.Group

	g.Go(func() error {
		defer close(objects)
		_, err := enum.Run(ctx, objects)
		if err != nil && !errors.Is(err, context.Canceled) {
			listErr = err
			log.Error().Err(err).Msg("listing stopped")
		}
		return nil
	})

	g.Go(func() error {
		defer close(tasks)
		for obj := range objects {
			listed++
			c := s.Classifier.Classify(obj.Key)
			s.Metrics.Classified.WithLabelValues(c.Action.String(), string(c.Reason)).Inc()
			if !c.IsDelete() {
				kept++
				continue
			}
			if ctx.Err() != nil {
				notQueued++
				continue
			}
			select {
			case tasks <- Task{Object: obj, Class: c}:
			case <-ctx.Done():
				notQueued++
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(results)
		sched.Run(ctx, tasks, results)
		return nil
	})

	g.Go(func() error {
		for o := range results {
			reporter.Record(o)
			s.Metrics.Deletions.WithLabelValues(string(o.State)).Inc()
			if o.State == StateSucceeded && !o.AlreadyGone {
				s.Metrics.BytesReclaimed.Add(float64(o.Size))
			}
			if o.State == StateWouldDelete && s.OnWouldDelete != nil {
				s.OnWouldDelete(o)
			}
		}
		return nil
	})

	_ = g.Wait()

	finished := time.Now()
	summary := reporter.Finish(listed, kept, notQueued, listErr, ctx.Err() != nil, finished)
	s.Metrics.ObserveRun(summary.Status() == StatusSuccess, summary.Duration, finished)

	ev := log.Info()
	if summary.Status() != StatusSuccess {
		ev = log.Warn()
	}
	ev.Str("status", summary.Status()).
		Int("listed", summary.Listed).
		Int("kept", summary.Kept).
		Int("deleted", summary.Deleted).
		Int("would_delete", summary.WouldDelete).
		Int("failed", summary.Failed).
		Int("not_attempted", summary.NotAttempted).
		Int64("bytes", summary.BytesReclaimed).
		Dur("duration", summary.Duration).
		Msg("sweep finished")

	return summary, summary.Err()
}
