package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gridwork/hubcap/pkg/compat"
)

// RuleSet is the on-disk rule configuration format.
type RuleSet struct {
	Version string     `yaml:"version"`
	Rules   []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule as written in YAML.
type RuleSpec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	SourceField  string `yaml:"source_field,omitempty"`
	TargetField  string `yaml:"target_field,omitempty"`
	Condition    string `yaml:"condition,omitempty"`
	DefaultLevel string `yaml:"compatibility_type,omitempty"`
	Message      string `yaml:"message,omitempty"`
}

// DefaultRuleSet returns the built-in rule configuration: the power draw
// check every category gets unless configured otherwise.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Version: "v1",
		Rules: []RuleSpec{
			{
				ID:          "power-draw",
				Name:        compat.PowerRuleName,
				Description: "Target power supply must cover the source's draw",
				SourceField: "power_consumption",
				TargetField: "power_output",
			},
		},
	}
}

// Load reads a rule set from a YAML file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &set, nil
}

var configNames = []string{"hubcap-rules.yaml", "hubcap-rules.yml", ".hubcap-rules.yaml", ".hubcap-rules.yml"}

// FindInDir returns the path of the rule file in a directory, if one exists.
func FindInDir(dir string) (string, bool) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// LoadFromDir searches for a rule file in a directory, falling back to the
// built-in default set when none is found.
func LoadFromDir(dir string) (*RuleSet, error) {
	if path, ok := FindInDir(dir); ok {
		return Load(path)
	}
	return DefaultRuleSet(), nil
}

// Save writes a rule set to a YAML file.
func Save(set *RuleSet, path string) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Compile converts the on-disk specs to engine rules, validating each one.
func (s *RuleSet) Compile() ([]compat.Rule, error) {
	rules := make([]compat.Rule, 0, len(s.Rules))
	for _, spec := range s.Rules {
		level, err := parseLevel(spec.DefaultLevel)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.ID, err)
		}
		rule := compat.Rule{
			ID:           spec.ID,
			Name:         spec.Name,
			Description:  spec.Description,
			SourceField:  spec.SourceField,
			TargetField:  spec.TargetField,
			Condition:    spec.Condition,
			DefaultLevel: level,
			Message:      spec.Message,
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseLevel(s string) (compat.Level, error) {
	if s == "" {
		return compat.LevelFull, nil
	}
	return compat.ParseLevel(s)
}
