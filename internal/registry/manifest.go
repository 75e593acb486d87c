package registry

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Manifest is the small YAML descriptor a plugin ships alongside its
// code: its declared name/kind and the model patterns it requires.
// ParseManifest decodes and validates one; Registry.Register and
// Expose do not read manifests.
type Manifest struct {
	Name              string   `yaml:"name"`
	Kind              string   `yaml:"kind"`
	ModelRequirements []string `yaml:"modelRequirements,omitempty"`
}

// ParseManifest decodes and validates a plugin manifest.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("registry: parse manifest: %w", err)
	}
	if m.Name == "" {
		return Manifest{}, fmt.Errorf("registry: manifest missing name")
	}
	switch m.Kind {
	case "tool", "gc", "session":
	default:
		return Manifest{}, fmt.Errorf("registry: manifest %q has unrecognized kind %q", m.Name, m.Kind)
	}
	return m, nil
}
