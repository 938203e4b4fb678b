package bake

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the name of the manifest in a bake directory.
const ManifestFile = "manifest.toml"

// Level describes one prefiltered level of a bake.
type Level struct {
	Level     uint32  `toml:"level"`
	Roughness float32 `toml:"roughness"`
	Size      uint32  `toml:"size"`
	GGX       string  `toml:"ggx"`
	Charlie   string  `toml:"charlie"`
}

// Manifest lists the files of a bake next to the irradiance coefficients and the
// configuration they were produced with. File names are relative to the manifest.
type Manifest struct {
	Source string         `toml:"source"`
	Frames uint64         `toml:"frames"`
	LUT    string         `toml:"lut"`
	SH     environment.SH `toml:"sh"`
	Levels []Level        `toml:"levels"`
	Config ibl.Config     `toml:"config"`
}

// Irradiance returns a copy of the coefficients, ready for environment.Source.Irradiance.
func (m *Manifest) Irradiance() *environment.SH {
	sh := m.SH
	return &sh
}

// Write encodes the manifest into dir as ManifestFile.
//
// Parameters:
//   - dir: the bake directory
//
// Returns:
//   - error: an encoding or write error
func (m *Manifest) Write(dir string) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest of a bake directory.
//
// Parameters:
//   - dir: the bake directory
//
// Returns:
//   - *Manifest: the manifest
//   - error: a read or decode error
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
