package app

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dev-tams/cromwell-cleaner/internal/classify"
	"github.com/dev-tams/cromwell-cleaner/internal/config"
)

// BuildClassifier returns the classifier for cfg. An empty rules list in the
// config selects the built-in table.
func BuildClassifier(cfg *config.Config) (*classify.Classifier, error) {
	var rules []classify.Rule
	for _, r := range cfg.Rules {
		rules = append(rules, classify.Rule{
			Name:    r.Name,
			Match:   classify.MatchKind(r.Match),
			Pattern: r.Pattern,
			Reason:  classify.Reason(r.Reason),
		})
	}

	c, err := classify.New(rules, classify.Options{RequireWorkflowUUID: cfg.Classifier.RequireWorkflowUUID})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return c, nil
}

type rulesDocument struct {
	Rules []classify.Rule `yaml:"rules"`
}

// WriteRules prints the effective table in the same shape the config file accepts.
func WriteRules(w io.Writer, c *classify.Classifier) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rulesDocument{Rules: c.Rules()}); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
