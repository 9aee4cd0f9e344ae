package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dev-tams/cromwell-cleaner/internal/config"
	"github.com/dev-tams/cromwell-cleaner/internal/exitcodes"
	"github.com/dev-tams/cromwell-cleaner/internal/schedule"
)

// RunDaemon sweeps on cfg.Schedule until ctx is done. A run that ends with
// failed deletions is logged and the daemon waits for the next slot; bad
// configuration or credentials stop it.
func (r *Runner) RunDaemon(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	spec, err := schedule.Parse(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	log := r.Log.With().Str("schedule", spec.String()).Logger()
	log.Info().Time("next", spec.Next(time.Now())).Msg("daemon started")

	loop := &schedule.Loop{Spec: spec}
	err = loop.Run(ctx, func(ctx context.Context, slot time.Time) error {
		runCtx := ctx
		cancel := func() {}
		if cfg.RunTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		}
		defer cancel()

		log.Info().Time("slot", slot).Msg("scheduled sweep")
		_, err := r.Run(runCtx, cfg)
		if err == nil || ctx.Err() != nil {
			return nil
		}

		switch ExitCode(err) {
		case exitcodes.InvalidConfig, exitcodes.AuthFailure:
			return err
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Dur("run_timeout", cfg.RunTimeout).Msg("scheduled sweep timed out")
		} else {
			log.Warn().Err(err).Msg("scheduled sweep incomplete")
		}
		log.Info().Time("next", spec.Next(time.Now())).Msg("waiting for next slot")
		return nil
	})
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	log.Info().Msg("daemon stopped")
	return nil
}
