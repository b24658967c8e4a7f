package tagnorm

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"archivist/internal/catalog"
)

// fold case-folds s. Casers carry state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Rules maps tag variants to their canonical spelling.
type Rules struct {
	Merge map[string]string `yaml:"merge"`
	Drop  []string          `yaml:"drop,omitempty"`

	merge map[string]string
	drop  map[string]struct{}
}

// LoadRules reads a rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag rules: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse tag rules %s: %w", path, err)
	}
	if err := rules.compile(); err != nil {
		return nil, fmt.Errorf("tag rules %s: %w", path, err)
	}
	return &rules, nil
}

// NewRules builds rules from an in-memory mapping.
func NewRules(merge map[string]string, drop ...string) (*Rules, error) {
	rules := &Rules{Merge: merge, Drop: drop}
	if err := rules.compile(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *Rules) compile() error {
	r.merge = make(map[string]string, len(r.Merge))
	for variant, canonical := range r.Merge {
		canonical = strings.TrimSpace(canonical)
		if canonical == "" {
			return fmt.Errorf("variant %q maps to an empty tag", variant)
		}
		r.merge[fold(strings.TrimSpace(variant))] = canonical
	}
	// Resolve chains so a -> b -> c rewrites a straight to c.
	for key, target := range r.merge {
		seen := map[string]bool{key: true}
		for {
			next, ok := r.merge[fold(target)]
			if !ok || next == target {
				break
			}
			if seen[fold(target)] {
				return fmt.Errorf("merge cycle through %q", target)
			}
			seen[fold(target)] = true
			target = next
		}
		r.merge[key] = target
	}
	r.drop = make(map[string]struct{}, len(r.Drop))
	for _, tag := range r.Drop {
		r.drop[fold(strings.TrimSpace(tag))] = struct{}{}
	}
	return nil
}

// Len reports the number of merge rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.merge)
}

// Apply rewrites tags through the rules, removes dropped tags and
// case-insensitive duplicates, and keeps the input order.
func (r *Rules) Apply(tags []string) []string {
	if r == nil {
		return catalog.NormalizeTagSet(tags)
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := fold(tag)
		if _, drop := r.drop[key]; drop {
			continue
		}
		if canonical, ok := r.merge[key]; ok {
			tag = canonical
		}
		out = append(out, tag)
	}
	return catalog.NormalizeTagSet(out)
}

// Encode renders the rules as YAML with variants sorted.
func (r *Rules) Encode() ([]byte, error) {
	type sortedRules struct {
		Merge yaml.Node `yaml:"merge"`
		Drop  []string  `yaml:"drop,omitempty"`
	}
	variants := make([]string, 0, len(r.Merge))
	for v := range r.Merge {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	node := yaml.Node{Kind: yaml.MappingNode}
	for _, v := range variants {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: v},
			&yaml.Node{Kind: yaml.ScalarNode, Value: r.Merge[v]},
		)
	}
	return yaml.Marshal(sortedRules{Merge: node, Drop: r.Drop})
}
