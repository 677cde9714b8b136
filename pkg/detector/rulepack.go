package detector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulePack is a YAML file of additional patterns, typically a pattern set
// for another language.
//
//	name: spanish
//	version: 1.0.0
//	context_keywords: [clinico]
//	categories:
//	  harmful_content:
//	    - name: es_violence
//	      pattern: '\b(matar|asesinar)\s+(a\s+)?(alguien|gente)\b'
type RulePack struct {
	Name            string                          `yaml:"name"`
	Version         string                          `yaml:"version"`
	ContextKeywords []string                        `yaml:"context_keywords"`
	Categories      map[ViolationType][]PatternSpec `yaml:"categories"`
}

// PatternSpec is an uncompiled pattern from a rule pack.
type PatternSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// RulePackError collects every problem found in a rule pack.
type RulePackError struct {
	Path   string
	Errors []string
}

// Error implements the error interface.
func (e *RulePackError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("rule pack %s: %s", e.Path, e.Errors[0])
	}
	return fmt.Sprintf("rule pack %s: %d errors:\n  - %s",
		e.Path, len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// LoadRulePack reads and validates a rule pack file.
func LoadRulePack(path string) (*RulePack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}

	pack, err := ParseRulePack(data)
	if err != nil {
		var rpe *RulePackError
		if errors.As(err, &rpe) {
			rpe.Path = path
			return nil, rpe
		}
		return nil, fmt.Errorf("failed to parse rule pack %s: %w", path, err)
	}

	if pack.Name == "" {
		pack.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return pack, nil
}

// ParseRulePack decodes and validates rule pack YAML.
func ParseRulePack(data []byte) (*RulePack, error) {
	var pack RulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}

	if err := pack.Validate(); err != nil {
		return nil, err
	}

	return &pack, nil
}

// Validate checks category names and compiles every pattern.
func (p *RulePack) Validate() error {
	var problems []string

	types := make([]string, 0, len(p.Categories))
	for vt := range p.Categories {
		types = append(types, string(vt))
	}
	sort.Strings(types)

	for _, name := range types {
		vt := ViolationType(name)
		specs := p.Categories[vt]
		if _, err := ParseViolationType(string(vt)); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		caseSensitive := vt == ViolationPrivacy
		for i, spec := range specs {
			if spec.Pattern == "" {
				problems = append(problems, fmt.Sprintf("%s[%d]: pattern is required", vt, i))
				continue
			}
			if _, err := compilePattern(spec, caseSensitive); err != nil {
				problems = append(problems, fmt.Sprintf("%s[%d]: %v", vt, i, err))
			}
		}
	}

	if len(problems) > 0 {
		return &RulePackError{Path: p.Name, Errors: problems}
	}
	return nil
}

// PatternCount returns the number of patterns in the pack.
func (p *RulePack) PatternCount() int {
	n := 0
	for _, specs := range p.Categories {
		n += len(specs)
	}
	return n
}

// LoadRuleSet builds the default rule set extended with each pack in order.
func LoadRuleSet(paths []string) (*RuleSet, error) {
	rs := DefaultRuleSet()
	for _, path := range paths {
		pack, err := LoadRulePack(path)
		if err != nil {
			return nil, err
		}
		rs, err = rs.Extend(pack)
		if err != nil {
			return nil, err
		}
	}
	return rs, nil
}
