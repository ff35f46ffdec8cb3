// Package fleet loads the agent roster manifest and registers it with
// the store at startup.
package fleet

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codefleet/foreman/internal/state"
	"github.com/codefleet/foreman/pkg/models"
)

// AgentSpec declares one agent in the manifest.
type AgentSpec struct {
	// ID is the agent identity, e.g. "coder-01".
	ID string `yaml:"id"`
	// Capability is the agent's capability kind: coder, qa, or cto.
	Capability models.Capability `yaml:"capability"`
}

// Manifest is the YAML agent roster.
type Manifest struct {
	Agents []AgentSpec `yaml:"agents"`
}

// LoadManifest reads and validates an agent roster.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse fleet manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("fleet manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks IDs are unique and capabilities are known.
func (m *Manifest) Validate() error {
	if len(m.Agents) == 0 {
		return fmt.Errorf("no agents declared")
	}
	seen := make(map[string]bool, len(m.Agents))
	for i, spec := range m.Agents {
		if spec.ID == "" {
			return fmt.Errorf("agent %d: missing id", i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("agent %s declared twice", spec.ID)
		}
		seen[spec.ID] = true
		if !spec.Capability.Valid() {
			return fmt.Errorf("agent %s: unknown capability %q", spec.ID, spec.Capability)
		}
	}
	return nil
}

// Register upserts every declared agent. New agents start idle; agents
// the store already knows keep their live status and stats, only the
// capability is refreshed.
func (m *Manifest) Register(store state.AgentStore) error {
	now := time.Now().UTC()
	for _, spec := range m.Agents {
		agent := &models.Agent{
			ID:         spec.ID,
			Capability: spec.Capability,
			Status:     models.AgentStatusIdle,
			CreatedAt:  now,
		}
		if err := store.UpsertAgent(agent); err != nil {
			return fmt.Errorf("register agent %s: %w", spec.ID, err)
		}
	}
	return nil
}
