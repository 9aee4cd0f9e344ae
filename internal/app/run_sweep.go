package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/dev-tams/cromwell-cleaner/internal/config"
	"github.com/dev-tams/cromwell-cleaner/internal/location"
	"github.com/dev-tams/cromwell-cleaner/internal/metrics"
	"github.com/dev-tams/cromwell-cleaner/internal/notify"
	"github.com/dev-tams/cromwell-cleaner/internal/retry"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
	"github.com/dev-tams/cromwell-cleaner/internal/sweep"
)

const notificationTimeout = 5 * time.Second

// Runner carries what a sweep needs besides its config. Out receives the
// report and, in a dry run, one URL per object that would be deleted.
type Runner struct {
	Out io.Writer
	Log zerolog.Logger
	// OpenStore defaults to the package-level OpenStore.
	OpenStore func(ctx context.Context, loc location.Location, cfg *config.Config) (storage.Store, error)
}

func RunSweep(ctx context.Context, cfg *config.Config, out io.Writer, log zerolog.Logger) (*sweep.Summary, error) {
	r := &Runner{Out: out, Log: log}
	return r.Run(ctx, cfg)
}

// Run validates cfg, checks the bucket, sweeps it, prints the report and
// fans the result out to metrics and notifications. The summary is nil when
// the run failed before listing started.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*sweep.Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := location.Parse(cfg.Bucket)
	if err != nil {
		return nil, err
	}

	classifier, err := BuildClassifier(cfg)
	if err != nil {
		return nil, err
	}

	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	log := r.Log.With().Str("location", loc.String()).Logger()
	started := time.Now()
	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Retryable:   storage.IsTransient,
	}

	open := r.OpenStore
	if open == nil {
		open = OpenStore
	}
	store, err := open(ctx, loc, cfg)
	if err != nil {
		err = fmt.Errorf("open %s: %w", loc, err)
		r.notifyResult(ctx, dispatcher, log, failedEvent(loc, cfg.DryRun, started, err))
		return nil, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close storage client")
		}
	}()

	if err := preflight(ctx, store, policy, cfg.RequestTimeout, log); err != nil {
		err = fmt.Errorf("preflight %s: %w", loc, err)
		r.notifyResult(ctx, dispatcher, log, failedEvent(loc, cfg.DryRun, started, err))
		return nil, err
	}

	m := metrics.New()
	sw := &sweep.Sweeper{
		Store:      store,
		Location:   loc,
		Classifier: classifier,
		Options: sweep.Options{
			DryRun:         cfg.DryRun,
			Workers:        cfg.Workers,
			QueueSize:      cfg.QueueSize,
			RequestTimeout: cfg.RequestTimeout,
			Policy:         policy,
			RateLimit:      cfg.RateLimit,
		},
		Log:     log,
		Metrics: m,
	}
	if cfg.DryRun {
		sw.OnWouldDelete = func(o sweep.Outcome) {
			fmt.Fprintln(r.Out, loc.URL(o.Key))
		}
	}

	summary, runErr := sw.Run(ctx)

	if err := summary.WriteText(r.Out); err != nil {
		log.Warn().Err(err).Msg("write report")
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("metrics not written")
		}
	}

	r.notifyResult(ctx, dispatcher, log, summaryEvent(summary, runErr))
	return summary, runErr
}

// preflight confirms the bucket exists and is readable. Access denied at
// this point means the resolved credential is the wrong one.
func preflight(ctx context.Context, store storage.Store, policy retry.Policy, timeout time.Duration, log zerolog.Logger) error {
	_, err := policy.Do(ctx, func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return store.Check(checkCtx)
	}, func(attempt int, delay time.Duration, err error) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("bucket check failed, retrying")
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccessDenied) {
			return fmt.Errorf("%w: %w", storage.ErrAuthentication, err)
		}
		return err
	}
	log.Info().Str("store", store.Name()).Msg("bucket reachable")
	return nil
}

func summaryEvent(s *sweep.Summary, err error) notify.Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return notify.Event{
		Location:     s.Location,
		Status:       s.Status(),
		DryRun:       s.DryRun,
		Listed:       s.Listed,
		Kept:         s.Kept,
		Deleted:      s.Deleted,
		WouldDelete:  s.WouldDelete,
		Failed:       s.Failed,
		NotAttempted: s.NotAttempted,
		Bytes:        s.BytesReclaimed,
		Duration:     s.Duration.Round(time.Millisecond).String(),
		Error:        errMsg,
	}
}

func failedEvent(loc location.Location, dryRun bool, started time.Time, err error) notify.Event {
	return notify.Event{
		Location: loc.String(),
		Status:   notify.StatusFailure,
		DryRun:   dryRun,
		Duration: time.Since(started).Round(time.Millisecond).String(),
		Error:    err.Error(),
	}
}

func (r *Runner) notifyResult(ctx context.Context, dispatcher *notify.Dispatcher, log zerolog.Logger, event notify.Event) {
	notifyCtx, cancel := notificationContext(ctx)
	defer cancel()

	if err := dispatcher.Notify(notifyCtx, event); err != nil {
		log.Warn().Err(err).Str("status", event.Status).Msg("notification failed")
	}
}

// notificationContext outlives an interrupted run so the failure still gets reported.
func notificationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), notificationTimeout)
	}
	return context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
}
