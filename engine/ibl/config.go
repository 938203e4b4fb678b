package ibl

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Profile names a tuned set of sample counts.
type Profile string

const (
	ProfileDesktop Profile = "desktop"
	ProfileMobile  Profile = "mobile"
)

// Config holds every size and sample count of the pipeline.
type Config struct {
	// ResampleSize is the face size of the normalized cubemap. Zero keeps the source size.
	ResampleSize uint32 `toml:"resample_size" yaml:"resample_size"`

	// PrefilterSize is the face size of level 0 of the prefiltered cube arrays.
	PrefilterSize uint32 `toml:"prefilter_size" yaml:"prefilter_size"`

	// MipLevelCount is the number of prefiltered roughness levels. Zero derives the
	// full chain from PrefilterSize.
	MipLevelCount uint32 `toml:"mip_level_count" yaml:"mip_level_count"`

	GGXSampleCount     uint32 `toml:"ggx_sample_count" yaml:"ggx_sample_count"`
	CharlieSampleCount uint32 `toml:"charlie_sample_count" yaml:"charlie_sample_count"`

	LUTSize        uint32 `toml:"lut_size" yaml:"lut_size"`
	LUTSampleCount uint32 `toml:"lut_sample_count" yaml:"lut_sample_count"`

	// SHSampleSize is the face size of the mip read back for the SH projection.
	SHSampleSize uint32 `toml:"sh_sample_size" yaml:"sh_sample_size"`

	// LODBias is added to the filtered importance sampling source level.
	LODBias float32 `toml:"lod_bias" yaml:"lod_bias"`

	Profile Profile `toml:"profile" yaml:"profile"`
}

// DefaultConfig returns the desktop configuration.
func DefaultConfig() Config {
	return Config{
		ResampleSize:       256,
		PrefilterSize:      256,
		GGXSampleCount:     1024,
		CharlieSampleCount: 64,
		LUTSize:            256,
		LUTSampleCount:     512,
		SHSampleSize:       16,
		LODBias:            1.0,
		Profile:            ProfileDesktop,
	}
}

// MobileConfig returns the configuration with reduced sampling for tile-based GPUs.
func MobileConfig() Config {
	return Config{
		ResampleSize:       128,
		PrefilterSize:      128,
		GGXSampleCount:     256,
		CharlieSampleCount: 32,
		LUTSize:            128,
		LUTSampleCount:     256,
		SHSampleSize:       8,
		LODBias:            1.0,
		Profile:            ProfileMobile,
	}
}

// ConfigForProfile returns the defaults of p.
//
// Parameters:
//   - p: the profile name
//
// Returns:
//   - Config: the profile defaults
//   - error: an error for an unknown profile
func ConfigForProfile(p Profile) (Config, error) {
	switch p {
	case ProfileDesktop, "":
		return DefaultConfig(), nil
	case ProfileMobile:
		return MobileConfig(), nil
	}
	return Config{}, fmt.Errorf("unknown profile %q", p)
}

// MipLevels returns the resolved number of prefiltered levels.
func (c Config) MipLevels() uint32 {
	if c.MipLevelCount == 0 {
		return common.MipLevelCount(c.PrefilterSize)
	}
	return c.MipLevelCount
}

// Validate reports the first invalid field.
//
// Returns:
//   - error: nil if the configuration can drive the pipeline
func (c Config) Validate() error {
	var errs []error
	if c.PrefilterSize == 0 {
		errs = append(errs, errors.New("prefilter_size must be positive"))
	} else if n := common.MipLevelCount(c.PrefilterSize); c.MipLevelCount > n {
		errs = append(errs, fmt.Errorf("mip_level_count %d exceeds the %d levels of a %d texel face", c.MipLevelCount, n, c.PrefilterSize))
	}
	if c.GGXSampleCount == 0 || c.CharlieSampleCount == 0 {
		errs = append(errs, errors.New("prefilter sample counts must be positive"))
	}
	if c.LUTSize == 0 || c.LUTSampleCount == 0 {
		errs = append(errs, errors.New("lut_size and lut_sample_count must be positive"))
	}
	if c.SHSampleSize == 0 {
		errs = append(errs, errors.New("sh_sample_size must be positive"))
	} else if c.ResampleSize != 0 && c.SHSampleSize > c.ResampleSize {
		errs = append(errs, fmt.Errorf("sh_sample_size %d exceeds resample_size %d", c.SHSampleSize, c.ResampleSize))
	}
	if math.IsNaN(float64(c.LODBias)) || math.IsInf(float64(c.LODBias), 0) {
		errs = append(errs, errors.New("lod_bias must be finite"))
	}
	switch c.Profile {
	case "", ProfileDesktop, ProfileMobile:
	default:
		errs = append(errs, fmt.Errorf("unknown profile %q", c.Profile))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid ibl config: %w", errors.Join(errs...))
	}
	return nil
}

// LoadConfig reads a TOML or YAML configuration by file extension. Fields the file
// omits keep the defaults of the profile it names.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//
// Returns:
//   - Config: the validated configuration
//   - error: an error if the file cannot be read, parsed or validated
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var unmarshal func([]byte, any) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		unmarshal = toml.Unmarshal
	case ".yaml", ".yml":
		unmarshal = yaml.Unmarshal
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	var probe struct {
		Profile Profile `toml:"profile" yaml:"profile"`
	}
	if err := unmarshal(data, &probe); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg, err := ConfigForProfile(probe.Profile)
	if err != nil {
		return Config{}, err
	}
	if err := unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteTOML encodes c as TOML.
func (c Config) WriteTOML(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
