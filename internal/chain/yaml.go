package chain

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of a chain config file: a list of named
// chains plus which one (if any) LoadFile marks with IsDefault.
type FileConfig struct {
	Chains    []Chain `yaml:"chains"`
	DefaultID string  `yaml:"default_id,omitempty"`
}

// LoadFile reads a YAML chain config from path and seeds a MemoryStore
// with it, always preserving BuiltinSmartID alongside whatever the file
// declares.
func LoadFile(path string, builtin Chain) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chain: read %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("chain: parse %s: %w", path, err)
	}

	store := NewMemoryStore(builtin)
	for _, c := range fc.Chains {
		if c.ID == BuiltinSmartID {
			continue // the builtin chain is never overridden by file content
		}
		if c.ID == fc.DefaultID {
			c.IsDefault = true
		}
		if _, err := store.UpsertChain(context.Background(), c); err != nil {
			return nil, fmt.Errorf("chain: load %q: %w", c.ID, err)
		}
	}
	return store, nil
}
