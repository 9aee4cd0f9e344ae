package sweep

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dev-tams/cromwell-cleaner/internal/classify"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Failure is one task that ended in StateFailed.
type Failure struct {
	Key     string
	Kind    string
	Err     string
	Retries int
}

// Summary is the only thing a run leaves behind.
type Summary struct {
	Location string
	DryRun   bool

	Listed       int
	Kept         int
	Deleted      int
	AlreadyGone  int
	WouldDelete  int
	Failed       int
	NotAttempted int

	// BytesReclaimed counts deleted objects, or would-delete objects in a dry run.
	BytesReclaimed int64
	Retries        int
	ByReason       map[classify.Reason]int
	Failures       []Failure

	ListErr     error
	Interrupted bool

	Started  time.Time
	Duration time.Duration
}

func (s *Summary) Status() string {
	if s.Failed > 0 || s.ListErr != nil || s.Interrupted {
		return StatusFailure
	}
	return StatusSuccess
}

// IncompleteError is returned when a run finished but not cleanly.
type IncompleteError struct {
	Failed      int
	ListErr     error
	Interrupted bool
}

func (e *IncompleteError) Error() string {
	var parts []string
	if e.Interrupted {
		parts = append(parts, "interrupted")
	}
	if e.ListErr != nil {
		parts = append(parts, fmt.Sprintf("listing stopped early: %v", e.ListErr))
	}
	if e.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d deletion(s) failed", e.Failed))
	}
	return "sweep incomplete: " + strings.Join(parts, "; ")
}

func (e *IncompleteError) Unwrap() error { return e.ListErr }

// Err is nil for a successful run.
func (s *Summary) Err() error {
	if s.Status() == StatusSuccess {
		return nil
	}
	return &IncompleteError{Failed: s.Failed, ListErr: s.ListErr, Interrupted: s.Interrupted}
}

// Reporter folds outcomes into a Summary. It is not safe for concurrent use;
// a single aggregation goroutine owns it.
type Reporter struct {
	summary Summary
}

func NewReporter(location string, dryRun bool, started time.Time) *Reporter {
	return &Reporter{summary: Summary{
		Location: location,
		DryRun:   dryRun,
		ByReason: make(map[classify.Reason]int),
		Started:  started,
	}}
}

func (r *Reporter) Record(o Outcome) {
	s := &r.summary
	s.Retries += o.Retries

	switch o.State {
	case StateSucceeded:
		s.Deleted++
		s.ByReason[o.Reason]++
		if o.AlreadyGone {
			s.AlreadyGone++
		} else {
			s.BytesReclaimed += o.Size
		}
	case StateWouldDelete:
		s.WouldDelete++
		s.ByReason[o.Reason]++
		s.BytesReclaimed += o.Size
	case StateFailed:
		s.Failed++
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		s.Failures = append(s.Failures, Failure{Key: o.Key, Kind: o.ErrorKind, Err: msg, Retries: o.Retries})
	case StateNotAttempted:
		s.NotAttempted++
	}
}

// Finish fills in the counts owned by other stages and returns the summary.
func (r *Reporter) Finish(listed, kept, notQueued int, listErr error, interrupted bool, finished time.Time) *Summary {
	s := r.summary
	s.Listed = listed
	s.Kept = kept
	s.NotAttempted += notQueued
	s.ListErr = listErr
	s.Interrupted = interrupted
	s.Duration = finished.Sub(s.Started)
	return &s
}

// WriteText renders the human-readable report.
func (s *Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	mode := "delete"
	if s.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(tw, "location:\t%s\n", s.Location)
	fmt.Fprintf(tw, "mode:\t%s\n", mode)
	fmt.Fprintf(tw, "status:\t%s\n", s.Status())
	fmt.Fprintf(tw, "listed:\t%d\n", s.Listed)
	fmt.Fprintf(tw, "kept:\t%d\n", s.Kept)
	if s.DryRun {
		fmt.Fprintf(tw, "would delete:\t%d\n", s.WouldDelete)
	} else {
		fmt.Fprintf(tw, "deleted:\t%d\t(%d already gone)\n", s.Deleted, s.AlreadyGone)
	}
	fmt.Fprintf(tw, "failed:\t%d\n", s.Failed)
	if s.NotAttempted > 0 {
		fmt.Fprintf(tw, "not attempted:\t%d\n", s.NotAttempted)
	}
	fmt.Fprintf(tw, "bytes:\t%d\n", s.BytesReclaimed)
	fmt.Fprintf(tw, "retries:\t%d\n", s.Retries)
	fmt.Fprintf(tw, "duration:\t%s\n", s.Duration.Round(time.Millisecond))

	for _, reason := range classify.Reasons() {
		if n := s.ByReason[reason]; n > 0 {
			fmt.Fprintf(tw, "  %s:\t%d\n", reason, n)
		}
	}
	if s.ListErr != nil {
		fmt.Fprintf(tw, "listing error:\t%v\n", s.ListErr)
	}
	if s.Interrupted {
		fmt.Fprintf(tw, "interrupted:\ttrue\n")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(s.Failures) > 0 {
		fmt.Fprintln(w, "failures:")
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s [%s] retries=%d: %s\n", f.Key, f.Kind, f.Retries, f.Err)
		}
	}
	return nil
}
