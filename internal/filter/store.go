package filter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v3"
)

// ruleSpec is the on-disk shape of a rule. Rules persist as a YAML list and
// are re-validated (including regex compilation) when loaded back.
type ruleSpec struct {
	Pattern string  `yaml:"pattern"`
	Mode    Mode    `yaml:"mode"`
	Target  Target  `yaml:"target"`
	Penalty Penalty `yaml:"penalty"`
}

// Load reads rules from path. A missing file is not an error; it returns an
// empty set. Entries that fail validation are reported through onSkip (may
// be nil) and excluded, so one bad rule does not take down the rest.
func Load(path string, onSkip func(pattern string, err error)) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var specs []ruleSpec
	if err := yaml.Unmarshal(b, &specs); err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(specs))
	for _, sp := range specs {
		r, err := New(sp.Pattern, sp.Mode, sp.Target, sp.Penalty)
		if err != nil {
			if onSkip != nil {
				onSkip(sp.Pattern, err)
			}
			continue
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Save writes the rule set to path atomically (tmp file + rename).
func Save(path string, rules []Rule) error {
	specs := make([]ruleSpec, 0, len(rules))
	for _, r := range rules {
		specs = append(specs, ruleSpec{Pattern: r.Pattern, Mode: r.Mode, Target: r.Target, Penalty: r.Penalty})
	}

	b, err := yaml.Marshal(specs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
