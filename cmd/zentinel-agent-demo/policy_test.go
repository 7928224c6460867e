package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zentinelproxy/zentinel-agent-go/protocol"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const samplePolicy = `
name: demo
tags: [edge]
rules:
  - prefix: /admin
    action: block
    status: 403
    body: Access denied
    rule_id: r-admin
  - prefix: /old
    action: redirect
    location: /new
`

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, samplePolicy))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "demo" || len(p.Rules) != 2 {
		t.Fatalf("policy = %+v", p)
	}
	rule, ok := p.Match("/admin/users")
	if !ok || rule.RuleID != "r-admin" || rule.Status != 403 {
		t.Fatalf("match = %+v, %v", rule, ok)
	}
	if _, ok := p.Match("/public"); ok {
		t.Fatal("unexpected match")
	}
}

func TestLoadPolicyRejectsBadRules(t *testing.T) {
	for _, content := range []string{
		"rules:\n  - action: block\n",                     // missing prefix
		"rules:\n  - prefix: /x\n    action: redirect\n",  // redirect without location
		"rules:\n  - prefix: /x\n    action: teleport\n",  // unknown action
	} {
		if _, err := LoadPolicy(writePolicy(t, content)); err == nil {
			t.Fatalf("expected error for %q", content)
		}
	}
}

func TestLoadPolicyDefaultsBlockStatus(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, "rules:\n  - prefix: /a\n    action: block\n"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Rules[0].Status != 403 {
		t.Fatalf("status = %d", p.Rules[0].Status)
	}
}

func TestDemoAgentDecisions(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, samplePolicy))
	if err != nil {
		t.Fatal(err)
	}
	a := &demoAgent{policy: p}
	cfg := a.DefaultConfig()

	d := a.OnRequestHeaders(context.Background(), &protocol.Request{Method: "GET", Path: "/admin/x"}, cfg)
	if d.Action != protocol.ActionBlock || d.RuleID != "r-admin" {
		t.Fatalf("decision = %+v", d)
	}
	d = a.OnRequestHeaders(context.Background(), &protocol.Request{Method: "GET", Path: "/old/page"}, cfg)
	if d.Action != protocol.ActionRedirect {
		t.Fatalf("decision = %+v", d)
	}
	d = a.OnRequestHeaders(context.Background(), &protocol.Request{Method: "GET", Path: "/public"}, cfg)
	if d.Action != protocol.ActionAllow {
		t.Fatalf("decision = %+v", d)
	}
}

func TestDemoAgentRuntimeBlocklist(t *testing.T) {
	p, err := LoadPolicy(writePolicy(t, samplePolicy))
	if err != nil {
		t.Fatal(err)
	}
	a := &demoAgent{policy: p}

	cfg, err := a.ParseConfig(map[string]any{"blocklist": []any{"/beta"}})
	if err != nil {
		t.Fatal(err)
	}
	d := a.OnRequestHeaders(context.Background(), &protocol.Request{Method: "GET", Path: "/beta/feature"}, cfg)
	if d.Action != protocol.ActionBlock || d.ReasonCode != "blocklist" {
		t.Fatalf("decision = %+v", d)
	}

	if _, err := a.ParseConfig(map[string]any{"blocklist": "oops"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := a.ParseConfig(map[string]any{"enabled": "yes"}); err == nil {
		t.Fatal("expected parse error")
	}

	disabled, err := a.ParseConfig(map[string]any{"enabled": false})
	if err != nil {
		t.Fatal(err)
	}
	d = a.OnRequestHeaders(context.Background(), &protocol.Request{Method: "GET", Path: "/admin/x"}, disabled)
	if d.Action != protocol.ActionAllow {
		t.Fatalf("disabled agent should allow, got %+v", d)
	}
}
