package rules

import (
	"context"
	"os"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/customeros/mailsorter/dto"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/tracing"
)

// rulesFile is the on-disk layout. Rules under "rules" apply to every owner,
// rules under "owners" only to the owner they are keyed by.
//
//	rules:
//	  - name: Jobs
//	    prompt: Emails about job applications
//	owners:
//	  user_abc:
//	    - name: Travel
//	      prompt: Flight and hotel bookings
type rulesFile struct {
	Rules  []dto.Rule            `yaml:"rules"`
	Owners map[string][]dto.Rule `yaml:"owners"`
}

type fileSource struct {
	file rulesFile
}

func NewFileSource(path string) (interfaces.RuleSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read rules file %s", path)
	}
	return Parse(data)
}

// Parse builds a rule source from YAML content.
func Parse(data []byte) (interfaces.RuleSource, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "unable to parse rules")
	}
	if err := validate(file.Rules); err != nil {
		return nil, err
	}
	for owner, rules := range file.Owners {
		if err := validate(rules); err != nil {
			return nil, errors.Wrapf(err, "owner %s", owner)
		}
	}
	return &fileSource{file: file}, nil
}

func validate(rules []dto.Rule) error {
	for i, rule := range rules {
		if strings.TrimSpace(rule.Name) == "" {
			return errors.Errorf("rule %d has no name", i)
		}
		if strings.TrimSpace(rule.Prompt) == "" {
			return errors.Errorf("rule %q has no prompt", rule.Name)
		}
	}
	return nil
}

func (s *fileSource) GetRules(ctx context.Context, owner string) ([]dto.Rule, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "fileSource.GetRules")
	defer span.Finish()
	tracing.TagOwner(span, owner)

	out := make([]dto.Rule, 0, len(s.file.Rules)+len(s.file.Owners[owner]))
	out = append(out, s.file.Rules...)
	out = append(out, s.file.Owners[owner]...)
	span.LogKV("count", len(out))
	return out, nil
}
