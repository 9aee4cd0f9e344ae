package classify

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidRule is returned for a rule table that can't be applied safely.
var ErrInvalidRule = errors.New("invalid classification rule")

// Reason says why an object counts as disposable scaffolding.
type Reason string

const (
	ReasonScaffoldScript     Reason = "scaffold-script"
	ReasonCapturedStream     Reason = "captured-stream"
	ReasonReturnCodeMarker   Reason = "return-code-marker"
	ReasonTemporaryFile      Reason = "temporary-file"
	ReasonLocalizationScript Reason = "localization-script"
	ReasonPipelineLog        Reason = "pipeline-log"
)

var knownReasons = map[Reason]struct{}{
	ReasonScaffoldScript:     {},
	ReasonCapturedStream:     {},
	ReasonReturnCodeMarker:   {},
	ReasonTemporaryFile:      {},
	ReasonLocalizationScript: {},
	ReasonPipelineLog:        {},
}

// Reasons lists every reason in a stable order.
func Reasons() []Reason {
	return []Reason{
		ReasonScaffoldScript,
		ReasonCapturedStream,
		ReasonReturnCodeMarker,
		ReasonTemporaryFile,
		ReasonLocalizationScript,
		ReasonPipelineLog,
	}
}

type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
	MatchGlob   MatchKind = "glob"
	// MatchDir globs the leading segments of the leaf and requires at least
	// one segment below them, so a file named like the directory is kept.
	MatchDir MatchKind = "dir"
)

// Rule matches the leaf of an execution path (the part under the call,
// shard and attempt directories).
type Rule struct {
	Name    string    `yaml:"name"`
	Match   MatchKind `yaml:"match"`
	Pattern string    `yaml:"pattern"`
	Reason  Reason    `yaml:"reason"`
}

func (r Rule) matches(leaf string) bool {
	switch r.Match {
	case MatchExact:
		return leaf == r.Pattern
	case MatchPrefix:
		return strings.HasPrefix(leaf, r.Pattern)
	case MatchGlob:
		ok, _ := path.Match(r.Pattern, leaf)
		return ok
	case MatchDir:
		n := strings.Count(r.Pattern, "/") + 1
		segs := strings.SplitN(leaf, "/", n+1)
		if len(segs) <= n || segs[n] == "" {
			return false
		}
		ok, _ := path.Match(r.Pattern, strings.Join(segs[:n], "/"))
		return ok
	default:
		return false
	}
}

func (r Rule) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.Pattern == "" {
		return fmt.Errorf("%w: rule %q: pattern is required", ErrInvalidRule, r.Name)
	}
	if _, ok := knownReasons[r.Reason]; !ok {
		return fmt.Errorf("%w: rule %q: unknown reason %q", ErrInvalidRule, r.Name, r.Reason)
	}
	switch r.Match {
	case MatchExact:
	case MatchPrefix:
		// a bare "/" or "." prefix would sweep whole call directories
		if strings.Trim(r.Pattern, "/.") == "" {
			return fmt.Errorf("%w: rule %q: prefix %q is too broad", ErrInvalidRule, r.Name, r.Pattern)
		}
	case MatchGlob, MatchDir:
		if _, err := path.Match(r.Pattern, ""); err != nil {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, r.Name, err)
		}
		if strings.Trim(r.Pattern, "*/") == "" {
			return fmt.Errorf("%w: rule %q: glob %q matches everything", ErrInvalidRule, r.Name, r.Pattern)
		}
	default:
		return fmt.Errorf("%w: rule %q: unknown match kind %q (want exact, prefix, glob or dir)", ErrInvalidRule, r.Name, r.Match)
	}
	return nil
}

// DefaultRules is the built-in table of Cromwell scaffold files. It covers the
// flat layout of the Google Pipelines backends and the execution/ layout of
// the local and HPC backends. Print it with `cromwell-cleaner rules`.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "script", Match: MatchExact, Pattern: "script", Reason: ReasonScaffoldScript},
		{Name: "script-submit", Match: MatchExact, Pattern: "script.submit", Reason: ReasonScaffoldScript},
		{Name: "script-background", Match: MatchExact, Pattern: "script.background", Reason: ReasonScaffoldScript},
		{Name: "stdout", Match: MatchExact, Pattern: "stdout", Reason: ReasonCapturedStream},
		{Name: "stderr", Match: MatchExact, Pattern: "stderr", Reason: ReasonCapturedStream},
		{Name: "stdout-background", Match: MatchExact, Pattern: "stdout.background", Reason: ReasonCapturedStream},
		{Name: "stderr-background", Match: MatchExact, Pattern: "stderr.background", Reason: ReasonCapturedStream},
		{Name: "rc", Match: MatchExact, Pattern: "rc", Reason: ReasonReturnCodeMarker},
		{Name: "gcs-localization", Match: MatchExact, Pattern: "gcs_localization.sh", Reason: ReasonLocalizationScript},
		{Name: "gcs-delocalization", Match: MatchExact, Pattern: "gcs_delocalization.sh", Reason: ReasonLocalizationScript},
		{Name: "gcs-transfer", Match: MatchExact, Pattern: "gcs_transfer.sh", Reason: ReasonLocalizationScript},
		{Name: "pipelines-logs-stdout", Match: MatchGlob, Pattern: "pipelines-logs/action/*/stdout", Reason: ReasonPipelineLog},
		{Name: "pipelines-logs-stderr", Match: MatchGlob, Pattern: "pipelines-logs/action/*/stderr", Reason: ReasonPipelineLog},
		{Name: "execution-script", Match: MatchExact, Pattern: "execution/script", Reason: ReasonScaffoldScript},
		{Name: "execution-stdout", Match: MatchExact, Pattern: "execution/stdout", Reason: ReasonCapturedStream},
		{Name: "execution-stderr", Match: MatchExact, Pattern: "execution/stderr", Reason: ReasonCapturedStream},
		{Name: "execution-rc", Match: MatchExact, Pattern: "execution/rc", Reason: ReasonReturnCodeMarker},
		{Name: "tmp-dir", Match: MatchDir, Pattern: "tmp.*", Reason: ReasonTemporaryFile},
		{Name: "execution-tmp-dir", Match: MatchDir, Pattern: "execution/tmp.*", Reason: ReasonTemporaryFile},
	}
}
