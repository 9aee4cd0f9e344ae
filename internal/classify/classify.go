// Package classify decides, from an object key alone, whether the object is
// Cromwell execution scaffolding that may be deleted.
//
// Keys without a call-<name> directory are always kept, as are leaves under
// a call directory that no rule names. Only an explicit rule match yields
// Delete.
package classify

import (
	"fmt"

	"github.com/google/uuid"
)

type Action int

const (
	Keep Action = iota
	Delete
)

func (a Action) String() string {
	if a == Delete {
		return "delete"
	}
	return "keep"
}

type Classification struct {
	Action Action
	Reason Reason
	// Rule is the name of the matching rule; empty for Keep.
	Rule string
}

func (c Classification) IsDelete() bool { return c.Action == Delete }

type Options struct {
	// RequireWorkflowUUID only accepts execution paths whose workflow id
	// segment is a UUID, as Cromwell names them.
	RequireWorkflowUUID bool
}

// Classifier applies a validated rule table. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	rules []Rule
	opts  Options
}

// New validates rules and builds a Classifier. A nil table means DefaultRules.
func New(rules []Rule, opts Options) (*Classifier, error) {
	if rules == nil {
		rules = DefaultRules()
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: rule table is empty", ErrInvalidRule)
	}

	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("rules[%d]: %w: duplicate name %q", i, ErrInvalidRule, r.Name)
		}
		seen[r.Name] = struct{}{}
	}

	return &Classifier{
		rules: append([]Rule(nil), rules...),
		opts:  opts,
	}, nil
}

// Rules returns a copy of the effective table.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

func (c *Classifier) Classify(key string) Classification {
	ep, ok := ParseExecutionPath(key)
	if !ok {
		return Classification{Action: Keep}
	}
	if c.opts.RequireWorkflowUUID {
		if _, err := uuid.Parse(ep.WorkflowID); len(ep.WorkflowID) != 36 || err != nil {
			return Classification{Action: Keep}
		}
	}

	for _, r := range c.rules {
		if r.matches(ep.Leaf) {
			return Classification{Action: Delete, Reason: r.Reason, Rule: r.Name}
		}
	}
	return Classification{Action: Keep}
}
