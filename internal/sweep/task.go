// Package sweep runs the list → classify → delete pipeline over one bucket
// location and aggregates the per-object outcomes into a Summary.
package sweep

import (
	"github.com/dev-tams/cromwell-cleaner/internal/classify"
	"github.com/dev-tams/cromwell-cleaner/internal/storage"
)

// State is where a deletion task ended up.
type State string

const (
	StatePending      State = "pending"
	StateInFlight     State = "in-flight"
	StateRetrying     State = "retrying"
	StateSucceeded    State = "deleted"
	StateWouldDelete  State = "would-delete"
	StateFailed       State = "failed"
	StateNotAttempted State = "not-attempted"
)

// Task is a Delete-classified object waiting for a worker.
type Task struct {
	Object storage.Object
	Class  classify.Classification
}

// Outcome is the terminal record of one Task. Keep-classified objects never
// produce one.
type Outcome struct {
	Key    string
	Size   int64
	Reason classify.Reason
	Rule   string
	State  State

	Attempted bool
	Succeeded bool
	// AlreadyGone is set when the backend reported the object missing.
	AlreadyGone bool
	ErrorKind   string
	Err         error
	Retries     int
}

func newOutcome(t Task) Outcome {
	return Outcome{
		Key:    t.Object.Key,
		Size:   t.Object.Size,
		Reason: t.Class.Reason,
		Rule:   t.Class.Rule,
		State:  StatePending,
	}
}
