package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dev-tams/cromwell-cleaner/internal/config"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is the end-of-run payload shared by all notifier implementations.
type Event struct {
	Location     string `json:"location"`
	Status       string `json:"status"`
	DryRun       bool   `json:"dry_run"`
	Listed       int    `json:"listed"`
	Kept         int    `json:"kept"`
	Deleted      int    `json:"deleted"`
	WouldDelete  int    `json:"would_delete"`
	Failed       int    `json:"failed"`
	NotAttempted int    `json:"not_attempted"`
	Bytes        int64  `json:"bytes"`
	Duration     string `json:"duration"`
	Error        string `json:"error,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// trigger selects which run outcomes a route hears about. "changes" fires
// only for runs that touched at least one object.
type trigger struct {
	success bool
	failure bool
	changes bool
}

type route struct {
	on       trigger
	notifier Notifier
}

type Dispatcher struct {
	routes []route
}

func NewDispatcher(cfgs []config.NotificationConfig) (*Dispatcher, error) {
	routes := make([]route, 0, len(cfgs))
	for i, n := range cfgs {
		on, err := parseOn(n.On)
		if err != nil {
			return nil, fmt.Errorf("notifications[%d]: %w", i, err)
		}

		var nf Notifier
		switch strings.ToLower(strings.TrimSpace(n.Type)) {
		case "webhook":
			nf, err = NewWebhook(n.Config.URL, n.Config.Headers)
		case "email":
			nf, err = NewEmail(n.Config.SMTPHost, n.Config.SMTPPort, n.Config.From, n.Config.To, n.Config.Username, n.Config.Password)
		default:
			return nil, fmt.Errorf("notifications[%d]: unsupported notification type %q", i, n.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("notifications[%d] %s: %w", i, n.Type, err)
		}
		routes = append(routes, route{on: on, notifier: nf})
	}
	return &Dispatcher{routes: routes}, nil
}

func (d *Dispatcher) Notify(ctx context.Context, event Event) error {
	if d == nil || len(d.routes) == 0 {
		return nil
	}

	var errs []error
	for i, r := range d.routes {
		if !r.on.wants(event) {
			continue
		}
		if err := r.notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("notification route %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (t trigger) wants(e Event) bool {
	switch {
	case e.Status == StatusSuccess && t.success:
		return true
	case e.Status == StatusFailure && t.failure:
		return true
	case t.changes:
		return e.Deleted+e.WouldDelete+e.Failed > 0
	default:
		return false
	}
}

func parseOn(raw []string) (trigger, error) {
	var t trigger
	for _, v := range raw {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "success":
			t.success = true
		case "failure":
			t.failure = true
		case "both":
			t.success = true
			t.failure = true
		case "changes":
			t.changes = true
		default:
			return trigger{}, fmt.Errorf("on contains unsupported value %q", v)
		}
	}

	if t == (trigger{}) {
		return trigger{}, fmt.Errorf("on must include success, failure, both or changes")
	}
	return t, nil
}
