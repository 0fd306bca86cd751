package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// SupportedSchemaVersion is the artifact schema this build can load.
const SupportedSchemaVersion = 1

// Node is one decision node in a tree. Leaves carry Value; internal nodes
// split on FeatureIndex against Threshold (left when value <= threshold).
type Node struct {
	Leaf         bool    `json:"leaf,omitempty"`
	Value        float64 `json:"value,omitempty"`
	FeatureIndex int     `json:"feature,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	Left         int     `json:"left,omitempty"`
	Right        int     `json:"right,omitempty"`
}

// Tree is a flat node-array decision tree; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Model is the deserialized ensemble artifact. The artifact is read-only:
// the engine loads it once at startup and never writes it.
type Model struct {
	SchemaVersion int      `json:"schemaVersion"`
	FeatureOrder  []string `json:"featureOrder"`
	Trees         []Tree   `json:"trees"`
}

// LoadModel reads and validates an ensemble artifact from disk.
func LoadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}
	return &m, nil
}

// Validate rejects artifacts this build cannot evaluate safely.
func (m *Model) Validate() error {
	if m.SchemaVersion != SupportedSchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", m.SchemaVersion, SupportedSchemaVersion)
	}
	if len(m.FeatureOrder) == 0 {
		return fmt.Errorf("empty feature order")
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("no trees")
	}
	for i, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d: no nodes", i)
		}
		for j, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.FeatureIndex < 0 || n.FeatureIndex >= len(m.FeatureOrder) {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", i, j, n.FeatureIndex)
			}
			if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range", i, j)
			}
		}
	}
	return nil
}

// eval walks one tree against a serialized feature array. Walk depth is
// bounded by the node count to survive a cyclic (corrupt) artifact.
func (t *Tree) eval(input []float64) float64 {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value
		}
		if input[n.FeatureIndex] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return 0
}
