package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRuleFiles reads every *.yaml file in dir as a list of narration
// rules. Files are read in name order; rules without a name are named after
// their file. A missing directory yields no rules.
func LoadRuleFiles(dir string) ([]RuleConfig, error) {
	names, err := listYAMLFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule files: %w", err)
	}

	var rules []RuleConfig
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read rule file %s: %w", name, err)
		}
		content = []byte(interpolateEnv(string(content)))

		var fileRules []RuleConfig
		if err := yaml.Unmarshal(content, &fileRules); err != nil {
			return nil, fmt.Errorf("failed to parse rule file %s: %w", name, err)
		}
		for i := range fileRules {
			if fileRules[i].Name == "" {
				fileRules[i].Name = fmt.Sprintf("%s#%d", stripExt(name), i+1)
			}
		}
		rules = append(rules, fileRules...)
	}
	return rules, nil
}

// AllRules returns the inline narration rules followed by those loaded from
// rules_dir.
func (n *NarrationConfig) AllRules() ([]RuleConfig, error) {
	rules := append([]RuleConfig(nil), n.Rules...)
	if n.RulesDir == "" {
		return rules, nil
	}
	fromDir, err := LoadRuleFiles(n.RulesDir)
	if err != nil {
		return nil, err
	}
	return append(rules, fromDir...), nil
}

func listYAMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names, nil
}

func stripExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}
