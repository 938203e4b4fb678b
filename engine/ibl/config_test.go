package ibl

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(9), cfg.MipLevels())
	assert.Equal(t, uint32(1024), cfg.GGXSampleCount)
	assert.Equal(t, uint32(64), cfg.CharlieSampleCount)
	assert.Equal(t, uint32(512), cfg.LUTSampleCount)
	assert.Equal(t, float32(1), cfg.LODBias)

	mobile := MobileConfig()
	require.NoError(t, mobile.Validate())
	assert.Less(t, mobile.GGXSampleCount, cfg.GGXSampleCount)
	assert.Equal(t, uint32(8), mobile.MipLevels())
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"levels beyond chain": func(c *Config) { c.MipLevelCount = 10 },
		"zero ggx samples":    func(c *Config) { c.GGXSampleCount = 0 },
		"zero lut":            func(c *Config) { c.LUTSize = 0 },
		"sh above resample":   func(c *Config) { c.SHSampleSize = 512 },
		"unknown profile":     func(c *Config) { c.Profile = "console" },
		"zero prefilter size": func(c *Config) { c.PrefilterSize = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "ibl.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("prefilter_size = 128\nggx_sample_count = 2048\n"), 0o644))
	cfg, err := LoadConfig(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), cfg.PrefilterSize)
	assert.Equal(t, uint32(2048), cfg.GGXSampleCount)
	assert.Equal(t, DefaultConfig().CharlieSampleCount, cfg.CharlieSampleCount)

	yamlPath := filepath.Join(dir, "ibl.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("profile: mobile\nlod_bias: 0.5\n"), 0o644))
	cfg, err = LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, ProfileMobile, cfg.Profile)
	assert.Equal(t, MobileConfig().GGXSampleCount, cfg.GGXSampleCount)
	assert.Equal(t, float32(0.5), cfg.LODBias)

	badPath := filepath.Join(dir, "ibl.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("mip_level_count: 40\n"), 0o644))
	_, err = LoadConfig(badPath)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "ibl.json"))
	assert.Error(t, err)
}

func TestWriteTOMLLoadsBack(t *testing.T) {
	cfg := MobileConfig()
	cfg.LODBias = 2
	var buf bytes.Buffer
	require.NoError(t, cfg.WriteTOML(&buf))

	path := filepath.Join(t.TempDir(), "out.toml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSHLevel(t *testing.T) {
	cfg := DefaultConfig()
	c := newSourceCache(nil, cfg, nil)
	assert.Equal(t, uint32(4), c.shLevel(ResampleMetadata{Size: 256, MipLevelCount: 9}))

	c.cfg.SHSampleSize = 1024
	assert.Equal(t, uint32(0), c.shLevel(ResampleMetadata{Size: 256, MipLevelCount: 9}))

	c.cfg.SHSampleSize = 1
	assert.Equal(t, uint32(8), c.shLevel(ResampleMetadata{Size: 256, MipLevelCount: 9}))
}
