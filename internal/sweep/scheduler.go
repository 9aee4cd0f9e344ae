package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dev-tams/cromwell-cleaner/internal/metrics"
	"github.com/dev-tams/cromwell-cleaner/internal/retry"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

// Scheduler deletes queued tasks with a fixed number of workers.
//
// A task moves Pending → InFlight → {Succeeded, Retrying, Failed}. Errors the
// policy's Retryable predicate accepts sleep for the policy backoff and go
// back in flight until the policy runs out of attempts. Not-found counts as
// success. In dry-run mode no
// request is made and the task ends as WouldDelete.
//
// Once ctx is done no new task is started; queued tasks are drained as
// NotAttempted. Requests already in flight run on a context that ignores
// cancellation and is bounded only by RequestTimeout.
type Scheduler struct {
	Store          storage.Store
	Workers        int
	DryRun         bool
	Policy         retry.Policy
	RequestTimeout time.Duration
	// Limiter caps delete requests across all workers. Nil means unlimited.
	Limiter *rate.Limiter
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Run returns once tasks is closed and every worker has drained it. It does
// not close results.
func (s *Scheduler) Run(ctx context.Context, tasks <-chan Task, results chan<- Outcome) {
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- s.process(ctx, t)
			}
		}()
	}
	wg.Wait()
}

func (s *Scheduler) process(ctx context.Context, t Task) Outcome {
	out := newOutcome(t)
	log := s.Log.With().Str("key", t.Object.Key).Str("reason", string(t.Class.Reason)).Logger()

	if ctx.Err() != nil {
		out.State = StateNotAttempted
		return out
	}
	if s.DryRun {
		out.State = StateWouldDelete
		out.Succeeded = true
		return out
	}

	bo := s.Policy.NewBackOff()
	for attempt := 1; ; attempt++ {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				if !out.Attempted {
					out.State = StateNotAttempted
					return out
				}
				return s.fail(log, out, err, "canceled")
			}
		}

		out.State = StateInFlight
		out.Attempted = true
		err := s.deleteOnce(ctx, t.Object.Key)

		switch {
		case err == nil:
			out.State = StateSucceeded
			out.Succeeded = true
			log.Debug().Int("retries", out.Retries).Msg("deleted")
			return out

		case errors.Is(err, storage.ErrNotFound):
			out.State = StateSucceeded
			out.Succeeded = true
			out.AlreadyGone = true
			log.Debug().Msg("already deleted")
			return out

		case s.Policy.ShouldRetry(err) && attempt < s.Policy.Attempts():
			out.State = StateRetrying
			delay := bo.NextBackOff()
			log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("delete failed, retrying")
			if sleepErr := retry.Sleep(ctx, delay); sleepErr != nil {
				return s.fail(log, out, err, "canceled")
			}
			out.Retries++
			s.Metrics.DeleteRetries.Inc()

		default:
			return s.fail(log, out, err, storage.Kind(err))
		}
	}
}

func (s *Scheduler) fail(log zerolog.Logger, out Outcome, err error, kind string) Outcome {
	out.State = StateFailed
	out.Err = err
	out.ErrorKind = kind
	log.Error().Err(err).Str("kind", kind).Int("retries", out.Retries).Msg("delete failed")
	return out
}

func (s *Scheduler) deleteOnce(ctx context.Context, key string) error {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.RequestTimeout)
	defer cancel()

	started := time.Now()
	err := s.Store.Delete(reqCtx, key)
	s.Metrics.DeleteDuration.Observe(time.Since(started).Seconds())
	return err
}
