package classify

import (
	"strconv"
	"strings"
)

// ExecutionPath is a key decomposed around its call-execution directory.
type ExecutionPath struct {
	WorkflowName string
	WorkflowID   string
	CallName     string
	Shard        *int
	Attempt      *int
	// Leaf is everything below the call (and shard/attempt) directories, slash-joined.
	Leaf string
}

const (
	callPrefix    = "call-"
	shardPrefix   = "shard-"
	attemptPrefix = "attempt-"
)

// ParseExecutionPath finds the innermost call-<name> segment that has
// something beneath it. Subworkflow calls nest, so the innermost one is the
// task whose scaffold the leaf belongs to.
func ParseExecutionPath(key string) (ExecutionPath, bool) {
	segs := strings.Split(key, "/")

	call := -1
	for i := len(segs) - 2; i >= 0; i-- {
		if name, ok := strings.CutPrefix(segs[i], callPrefix); ok && name != "" {
			call = i
			break
		}
	}
	if call < 0 {
		return ExecutionPath{}, false
	}

	ep := ExecutionPath{CallName: strings.TrimPrefix(segs[call], callPrefix)}
	if call >= 1 {
		ep.WorkflowID = segs[call-1]
	}
	if call >= 2 {
		ep.WorkflowName = segs[call-2]
	}

	rest := segs[call+1:]
	if n, ok := indexed(rest, shardPrefix); ok {
		ep.Shard = &n
		rest = rest[1:]
	}
	if n, ok := indexed(rest, attemptPrefix); ok {
		ep.Attempt = &n
		rest = rest[1:]
	}

	ep.Leaf = strings.Join(rest, "/")
	if ep.Leaf == "" {
		return ExecutionPath{}, false
	}
	return ep, true
}

// indexed reports whether segs[0] is prefix followed by a non-negative integer,
// and segs[0] is not the last segment.
func indexed(segs []string, prefix string) (int, bool) {
	if len(segs) < 2 {
		return 0, false
	}
	digits, ok := strings.CutPrefix(segs[0], prefix)
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
