package dispatch

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is an optional file at the working-copy root that overrides
// the built-in platform to entry-point mapping, letting a source tree
// relocate its scripts without a new dotup release.
const ManifestFile = "platforms.yaml"

type manifest struct {
	EntryPoints map[string]string `yaml:"entry_points"`
}

// loadManifest reads the override manifest if present. A missing file is
// not an error; a malformed one is.
func loadManifest(root string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// apply returns base with the manifest's entries layered on top. base is
// not mutated.
func (m *manifest) apply(base map[string]string) map[string]string {
	merged := make(map[string]string, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range m.EntryPoints {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}
