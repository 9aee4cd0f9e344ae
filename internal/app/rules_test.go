package app

import (
	"bytes"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dev-tams/cromwell-cleaner/internal/classify"
	"github.com/dev-tams/cromwell-cleaner/internal/config"
)

func TestBuildClassifierDefaults(t *testing.T) {
	c, err := BuildClassifier(&config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Rules()) != len(classify.DefaultRules()) {
		t.Fatalf("expected built-in table, got %d rules", len(c.Rules()))
	}
}

func TestBuildClassifierCustomTable(t *testing.T) {
	cfg := &config.Config{Rules: []config.RuleConfig{
		{Name: "stdout", Match: "exact", Pattern: "stdout", Reason: "captured-stream"},
	}}
	c, err := BuildClassifier(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Classify("r/wf/id/call-a/stdout"); !got.IsDelete() {
		t.Fatalf("expected stdout to be deleted, got %+v", got)
	}
	if got := c.Classify("r/wf/id/call-a/rc"); got.IsDelete() {
		t.Fatal("rc is not in the custom table and must be kept")
	}
}

func TestBuildClassifierInvalidRule(t *testing.T) {
	cfg := &config.Config{Rules: []config.RuleConfig{
		{Name: "x", Match: "regex", Pattern: "stdout", Reason: "captured-stream"},
	}}
	_, err := BuildClassifier(cfg)
	if !errors.Is(err, config.ErrInvalid) || !errors.Is(err, classify.ErrInvalidRule) {
		t.Fatalf("expected config and rule errors, got %v", err)
	}
}

func TestWriteRulesIsLoadable(t *testing.T) {
	c, err := BuildClassifier(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteRules(&buf, c); err != nil {
		t.Fatalf("WriteRules: %v", err)
	}

	var doc struct {
		Rules []config.RuleConfig `yaml:"rules"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not yaml: %v", err)
	}
	if len(doc.Rules) != len(classify.DefaultRules()) || doc.Rules[0].Name != "script" {
		t.Fatalf("unexpected rules document:\n%s", buf.String())
	}

	// the printed table must be accepted back as configuration
	if _, err := BuildClassifier(&config.Config{Rules: doc.Rules}); err != nil {
		t.Fatalf("printed table rejected: %v", err)
	}
}
