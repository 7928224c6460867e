package dispatch

import (
	"fmt"

	"github.com/zentinelproxy/zentinel-agent-go/agent"
	"github.com/zentinelproxy/zentinel-agent-go/agenterrors"
)

// ConfigManager owns one connection's typed config. It delegates parsing to
// the agent and keeps the previous value on failure; configuration never
// silently falls back.
//
// It is owned by a single session goroutine, so a successful Apply is visible
// to the next dispatched event and never mid-event.
type ConfigManager struct {
	agent   agent.Agent
	current any
}

// NewConfigManager seeds the manager with the agent's declared default.
func NewConfigManager(a agent.Agent) *ConfigManager {
	return &ConfigManager{agent: a, current: a.DefaultConfig()}
}

// Current returns the active typed config.
func (m *ConfigManager) Current() any { return m.current }

// Apply parses raw and replaces the active config on success. On failure the
// previous config stays in effect and the error is returned for the ack.
// A panicking ParseConfig is contained like any other parse failure.
func (m *ConfigManager) Apply(raw map[string]any) error {
	cfg, err := m.parse(raw)
	if err != nil {
		return agenterrors.Wrap(agenterrors.StageConfig, agenterrors.CodeConfigInvalid, err)
	}
	m.current = cfg
	return nil
}

func (m *ConfigManager) parse(raw map[string]any) (cfg any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg = nil
			err = fmt.Errorf("config parse panic: %v", r)
		}
	}()
	if raw == nil {
		raw = map[string]any{}
	}
	return m.agent.ParseConfig(raw)
}
