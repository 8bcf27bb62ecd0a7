package style

import (
	"fmt"
	"regexp"

	"github.com/wegman-software/chainmerge/internal/point"
)

// Rules selects the reference features that belong to a chain
type Rules struct {
	// NamePattern is a case-insensitive regular expression matched against the name tag
	NamePattern string `yaml:"name_pattern,omitempty"`
	// NameKeys lists the tags checked against NamePattern, default [name]
	NameKeys []string `yaml:"name_keys,omitempty"`
	// RequireAny specifies that at least one of these tags must be present
	RequireAny []string `yaml:"require_any,omitempty"`
	// Include specifies which tag keys/values are accepted; empty values accept any value
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude is applied after include rules
	Exclude map[string][]string `yaml:"exclude,omitempty"`
}

// Filter checks if tags match a compiled rule set
type Filter struct {
	rules    Rules
	name     *regexp.Regexp
	nameKeys []string
}

// NewFilter compiles the rules
func NewFilter(rules Rules) (*Filter, error) {
	f := &Filter{rules: rules, nameKeys: rules.NameKeys}
	if len(f.nameKeys) == 0 {
		f.nameKeys = []string{"name"}
	}
	if rules.NamePattern != "" {
		re, err := regexp.Compile("(?i)" + rules.NamePattern)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern %q: %w", rules.NamePattern, err)
		}
		f.name = re
	}
	return f, nil
}

// Match checks if the given tags match the filter rules
func (f *Filter) Match(tags point.Tags) bool {
	if f.name != nil {
		found := false
		for _, key := range f.nameKeys {
			if v, ok := tags[key]; ok && f.name.MatchString(v) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.rules.RequireAny) > 0 {
		found := false
		for _, key := range f.rules.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.rules.Include) > 0 {
		matched := false
		for key, values := range f.rules.Include {
			if v, ok := tags[key]; ok && valueListed(values, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for key, values := range f.rules.Exclude {
		if v, ok := tags[key]; ok && valueListed(values, v) {
			return false
		}
	}

	return true
}

// valueListed reports whether v is accepted by a rule value list.
// An empty list or "*" accepts any value.
func valueListed(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, allowed := range values {
		if allowed == v || allowed == "*" {
			return true
		}
	}
	return false
}

// Apply returns the points whose tags match, preserving order
func (f *Filter) Apply(points []point.Point) []point.Point {
	if !f.HasFilter() {
		return points
	}
	out := make([]point.Point, 0, len(points))
	for _, p := range points {
		if f.Match(p.Tags) {
			out = append(out, p)
		}
	}
	return out
}

// HasFilter returns true if any rule is set
func (f *Filter) HasFilter() bool {
	return f.name != nil || len(f.rules.Include) > 0 || len(f.rules.Exclude) > 0 || len(f.rules.RequireAny) > 0
}
