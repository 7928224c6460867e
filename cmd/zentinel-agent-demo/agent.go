package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

// demoConfig is what the proxy can push at runtime via configure_update.
type demoConfig struct {
	Enabled bool
	// Blocklist adds path prefixes on top of the static policy rules.
	Blocklist []string
}

// demoAgent enforces a path-prefix policy loaded from YAML, with an optional
// proxy-pushed blocklist layered on top.
type demoAgent struct {
	agent.BaseAgent
	policy *Policy

	seen    atomic.Int64
	blocked atomic.Int64
}

func (a *demoAgent) Name() string { return a.policy.Name }

func (a *demoAgent) Capabilities() *agent.Capabilities {
	return agent.NewCapabilities().
		HandleRequestHeaders().
		HandleRequestComplete().
		WithHealthCheck().
		WithMetrics()
}

func (a *demoAgent) OnRequestHeaders(_ context.Context, req *protocol.Request, cfg any) *protocol.Decision {
	a.seen.Add(1)
	dc := cfg.(*demoConfig)
	if !dc.Enabled {
		return agent.Allow()
	}
	for _, prefix := range dc.Blocklist {
		if prefix != "" && strings.HasPrefix(req.Path, prefix) {
			a.blocked.Add(1)
			d := agent.Block(403, "Access denied")
			d.ReasonCode = "blocklist"
			d.Tags = a.policy.Tags
			return d
		}
	}
	rule, ok := a.policy.Match(req.Path)
	if !ok {
		return agent.Allow()
	}
	var d *protocol.Decision
	switch rule.Action {
	case "block":
		a.blocked.Add(1)
		d = agent.Block(rule.Status, rule.Body)
	case "redirect":
		d = agent.Redirect(rule.Location)
	case "challenge":
		d = agent.Challenge()
	default:
		return agent.Allow()
	}
	d.RuleID = rule.RuleID
	d.Tags = a.policy.Tags
	return d
}

func (a *demoAgent) ParseConfig(raw map[string]any) (any, error) {
	cfg := &demoConfig{Enabled: true}
	if v, ok := raw["enabled"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("enabled must be a bool, got %T", v)
		}
		cfg.Enabled = b
	}
	if v, ok := raw["blocklist"]; ok {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("blocklist must be a list, got %T", v)
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("blocklist entries must be strings, got %T", item)
			}
			cfg.Blocklist = append(cfg.Blocklist, s)
		}
	}
	return cfg, nil
}

func (a *demoAgent) DefaultConfig() any { return &demoConfig{Enabled: true} }

func (a *demoAgent) Metrics(context.Context) map[string]float64 {
	return map[string]float64{
		"requests_seen":    float64(a.seen.Load()),
		"requests_blocked": float64(a.blocked.Load()),
	}
}
