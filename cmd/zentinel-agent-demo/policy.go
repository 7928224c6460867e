package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyRule matches a request path prefix and names the verdict.
type PolicyRule struct {
	Prefix   string `yaml:"prefix"`
	Action   string `yaml:"action"`
	Status   int    `yaml:"status"`
	Body     string `yaml:"body"`
	Location string `yaml:"location"`
	RuleID   string `yaml:"rule_id"`
}

// Policy is the demo agent's on-disk configuration.
type Policy struct {
	Name  string       `yaml:"name"`
	Tags  []string     `yaml:"tags"`
	Rules []PolicyRule `yaml:"rules"`
}

// LoadPolicy reads and validates a YAML policy file.
func LoadPolicy(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if p.Name == "" {
		p.Name = "zentinel-demo"
	}
	for i := range p.Rules {
		r := &p.Rules[i]
		if r.Prefix == "" {
			return nil, fmt.Errorf("rule %d: missing prefix", i)
		}
		switch r.Action {
		case "block":
			if r.Status == 0 {
				r.Status = 403
			}
		case "redirect":
			if r.Location == "" {
				return nil, fmt.Errorf("rule %d: redirect needs a location", i)
			}
		case "challenge":
		default:
			return nil, fmt.Errorf("rule %d: unknown action %q", i, r.Action)
		}
	}
	return &p, nil
}

// Match returns the first rule whose prefix matches path.
func (p *Policy) Match(path string) (*PolicyRule, bool) {
	for i := range p.Rules {
		if strings.HasPrefix(path, p.Rules[i].Prefix) {
			return &p.Rules[i], true
		}
	}
	return nil, false
}
