package envsource

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mrjoshuak/go-openexr/half"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faceColors paints every face a distinct color that half floats represent exactly.
var faceColors = [common.CubeFaceCount][4]float32{
	{1, 0, 0, 1},
	{0, 1, 0, 1},
	{0, 0, 1, 1},
	{1, 1, 0, 1},
	{0.5, 0.25, 2, 1},
	{4, 0.5, 0.125, 1},
}

func paintedCube(size uint32) *Cubemap {
	c := NewCubemap("painted", size)
	for face := range c.Faces {
		for i := 0; i < len(c.Faces[face]); i += 4 {
			copy(c.Faces[face][i:], faceColors[face][:])
		}
	}
	return c
}

func faceCenter(face common.CubeFace) [3]float32 {
	return common.FaceDirection(face, 0.5, 0.5)
}

func TestCubemapSample(t *testing.T) {
	c := paintedCube(4)
	for face := range c.Faces {
		assert.Equal(t, faceColors[face], c.Sample(faceCenter(common.CubeFace(face))))
	}

	c.Faces[0][0] = 1
	c.Faces[0][4] = 3
	d := common.FaceDirection(common.FacePositiveX, 0.25, 0.125)
	assert.InDelta(t, 2, c.Sample(d)[0], 1e-5)
}

func TestCubemapValidate(t *testing.T) {
	c := paintedCube(4)
	require.NoError(t, c.Validate())

	c.Faces[2] = c.Faces[2][:8]
	assert.ErrorIs(t, c.Validate(), ErrInvalidCubemap)

	c = paintedCube(4)
	c.Format = wgpu.TextureFormatRGBA8Unorm
	assert.ErrorIs(t, c.Validate(), ErrInvalidCubemap)
}

func TestCubemapUpload(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	c := paintedCube(4)
	tex, err := c.Upload(dev)
	require.NoError(t, err)

	desc := tex.Descriptor()
	assert.True(t, desc.IsCube())
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, desc.Format)
	assert.Len(t, backend.Textures(), 1)

	data := tex.(*renderertest.Texture).Data(4, 0)
	require.Len(t, data, 4*4*8)
	texels := make([]float32, 4*4*4)
	half.ConvertBytesToFloat32(texels, data)
	assert.Equal(t, faceColors[4][:], texels[:4])

	back, err := FromHalfFaces("back", 4, [common.CubeFaceCount][]byte{
		tex.(*renderertest.Texture).Data(0, 0), tex.(*renderertest.Texture).Data(1, 0),
		tex.(*renderertest.Texture).Data(2, 0), tex.(*renderertest.Texture).Data(3, 0),
		tex.(*renderertest.Texture).Data(4, 0), tex.(*renderertest.Texture).Data(5, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, c.Faces, back.Faces)

	c.Format = wgpu.TextureFormatRGBA32Float
	tex, err = c.Upload(dev)
	require.NoError(t, err)
	assert.Len(t, tex.(*renderertest.Texture).Data(0, 0), 4*4*16)
}

func TestEXRCubeStripRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.exr")
	require.NoError(t, WriteEXR(path, paintedCube(8)))

	c, err := LoadEXR(path, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), c.Size)
	for face := range c.Faces {
		got := c.Texel(common.CubeFace(face), 3, 4)
		for ch := 0; ch < 3; ch++ {
			assert.InDelta(t, faceColors[face][ch], got[ch], 1e-3, "face %s channel %d", common.CubeFace(face), ch)
		}
	}

	resized, err := LoadEXR(path, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), resized.Size)
}

func TestFromLatLong(t *testing.T) {
	const w, h = 16, 8
	pix := make([]float32, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32(0.5)
			if y < h/2 {
				v = 2
			}
			copy(pix[(y*w+x)*4:], []float32{v, v, v, 1})
		}
	}

	c, err := FromLatLong("pano", w, h, pix, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(h/2), c.Size)
	assert.InDelta(t, 2, c.Sample([3]float32{0, 1, 0})[0], 1e-4)
	assert.InDelta(t, 0.5, c.Sample([3]float32{0, -1, 0})[0], 1e-4)

	_, err = FromLatLong("short", w, h, pix[:10], 0)
	assert.ErrorIs(t, err, ErrInvalidCubemap)
}

func TestLoadImageLinearizes(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 188, B: 0, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "pano.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	c, err := LoadImage(path, 2)
	require.NoError(t, err)
	got := c.Texel(common.FacePositiveZ, 0, 0)
	assert.InDelta(t, 1, got[0], 1e-4)
	assert.InDelta(t, SRGBToLinear(188.0/255), got[1], 1e-4)
	assert.InDelta(t, 0.5, got[1], 0.02)
	assert.Zero(t, got[2])
}

func TestSRGBToLinear(t *testing.T) {
	assert.Zero(t, SRGBToLinear(0))
	assert.InDelta(t, 1, SRGBToLinear(1), 1e-6)
	assert.InDelta(t, 0.04/12.92, SRGBToLinear(0.04), 1e-7)
}

func TestNewSky(t *testing.T) {
	sky := DefaultSky()
	c, err := NewSky("sky", sky, 16)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	up := c.Sample([3]float32{0, 1, 0})
	down := c.Sample([3]float32{0, -1, 0})
	assert.InDelta(t, sky.Zenith[2], up[2], 0.1)
	assert.InDelta(t, sky.Ground[0], down[0], 0.1)

	sun := sky.Radiance(sky.SunDirection)
	assert.Greater(t, sun[0], sky.SunColor[0])

	_, err = NewSky("empty", sky, 0)
	assert.ErrorIs(t, err, ErrInvalidCubemap)
}

func TestLoaderCachesByPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "env.exr")
	require.NoError(t, WriteEXR(path, paintedCube(4)))

	dev, backend := renderertest.NewDevice()
	l := NewLoader(WithDevice(dev), WithFaceSize(4))
	first, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.exr", first.Label)

	require.NoError(t, os.Remove(path))
	again, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, again)

	tex, err := l.LoadTexture(path)
	require.NoError(t, err)
	same, err := l.LoadTexture(path)
	require.NoError(t, err)
	assert.Same(t, tex, same)
	assert.Len(t, backend.Textures(), 1)

	l.Forget(path)
	assert.True(t, tex.Released())
	assert.Nil(t, l.Get(path))
	_, err = l.Load(path)
	assert.Error(t, err)

	_, err = l.Load(filepath.Join(dir, "env.hdr"))
	assert.ErrorContains(t, err, "unsupported")
}

func TestLoaderPrepopulatedSky(t *testing.T) {
	sky, err := NewSky("sky", DefaultSky(), 4)
	require.NoError(t, err)
	dev, _ := renderertest.NewDevice()
	l := NewLoader(WithDevice(dev), WithCubemap("sky", sky))

	got, err := l.Load("sky")
	require.NoError(t, err)
	assert.Same(t, sky, got)
	tex, err := l.LoadTexture("sky")
	require.NoError(t, err)
	assert.Len(t, l.Cubemaps(), 1)

	l.Release()
	assert.True(t, tex.Released())

	_, err = NewLoader().LoadTexture("sky")
	assert.Error(t, err)
}

func TestLoadSky(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "dusk.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("zenith = [0.1, 0.1, 0.3]\nsun_angular_radius = 0.0\n"), 0o644))
	yamlPath := filepath.Join(dir, "noon.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("ground: [0.5, 0.4, 0.3]\n"), 0o644))

	s, err := LoadSky(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0.1, 0.1, 0.3}, s.Zenith)
	assert.Zero(t, s.SunAngularRadius)
	assert.Equal(t, DefaultSky().Horizon, s.Horizon)

	s, err = LoadSky(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, [3]float32{0.5, 0.4, 0.3}, s.Ground)
	assert.Equal(t, DefaultSky().SunColor, s.SunColor)

	_, err = LoadSky(filepath.Join(dir, "sky.json"))
	assert.Error(t, err)

	l := NewLoader(WithFaceSize(8))
	c, err := l.Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "dusk.toml", c.Label)
	assert.Equal(t, uint32(8), c.Size)
	up := c.Sample([3]float32{0, 1, 0})
	assert.InDelta(t, 0.3, up[2], 0.05)
}
