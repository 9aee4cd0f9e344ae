package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dev-tams/cromwell-cleaner/internal/metrics"
	"github.com/dev-tams/cromwell-cleaner/internal/retry"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

// ListError reports a listing page that could not be fetched. Enumeration
// can't continue past it because the next page token is unknown.
type ListError struct {
	Page  int
	Token string
	Err   error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list page %d: %v", e.Page, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// Enumerator walks every page under Prefix from the start. Each call to Run
// starts a fresh listing; there is no mid-stream resume.
type Enumerator struct {
	Store          storage.Store
	Prefix         string
	Policy         retry.Policy
	RequestTimeout time.Duration
	Log            zerolog.Logger
	Metrics        *metrics.Metrics
}

// Run sends every listed object to out in backend order and returns how many
// were sent. It blocks while out is full.
func (e *Enumerator) Run(ctx context.Context, out chan<- storage.Object) (int, error) {
	sent := 0
	token := ""

	for page := 1; ; page++ {
		p, err := e.fetch(ctx, page, token)
		if err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			return sent, &ListError{Page: page, Token: token, Err: err}
		}
		e.Metrics.ListPages.Inc()
		e.Log.Debug().Int("page", page).Int("objects", len(p.Objects)).Msg("listed page")

		for _, obj := range p.Objects {
			select {
			case out <- obj:
				sent++
				e.Metrics.ObjectsListed.Inc()
			case <-ctx.Done():
				return sent, ctx.Err()
			}
		}

		if p.NextToken == "" {
			return sent, nil
		}
		if p.NextToken == token {
			return sent, &ListError{Page: page, Token: token, Err: errors.New("backend returned the same page token twice")}
		}
		token = p.NextToken
	}
}

func (e *Enumerator) fetch(ctx context.Context, page int, token string) (storage.Page, error) {
	var result storage.Page
	_, err := e.Policy.Do(ctx, func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, e.RequestTimeout)
		defer cancel()

		p, err := e.Store.ListPage(reqCtx, e.Prefix, token)
		if err != nil {
			return err
		}
		result = p
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		e.Metrics.ListRetries.Inc()
		e.Log.Warn().Err(err).Int("page", page).Int("attempt", attempt).Dur("backoff", delay).Msg("list page failed, retrying")
	})
	return result, err
}
