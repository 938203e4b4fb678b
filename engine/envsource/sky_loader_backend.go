package envsource

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultSkySize is the face size a sky description renders at when none is requested.
const DefaultSkySize = 256

// skyLoaderBackend renders TOML or YAML sky descriptions.
type skyLoaderBackend struct{}

var _ loaderBackend = skyLoaderBackend{}

func (skyLoaderBackend) Load(path string, size uint32) (*Cubemap, error) {
	s, err := LoadSky(path)
	if err != nil {
		return nil, err
	}
	return NewSky(path, s, common.Coalesce(size, DefaultSkySize))
}

// LoadSky reads a sky description. Fields the file omits keep the DefaultSky values.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//
// Returns:
//   - Sky: the description
//   - error: a read or parse error, or an unsupported extension
func LoadSky(path string) (Sky, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sky{}, fmt.Errorf("failed to read sky: %w", err)
	}
	s := DefaultSky()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		return Sky{}, fmt.Errorf("unsupported sky format %q", filepath.Ext(path))
	}
	if err != nil {
		return Sky{}, fmt.Errorf("failed to parse sky %s: %w", path, err)
	}
	return s, nil
}
