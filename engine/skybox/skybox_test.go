package skybox_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/skybox"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGPUSkyboxUniformLayout(t *testing.T) {
	u := skybox.GPUSkyboxUniform{LOD: 2, Exposure: 0.5}
	common.Identity(u.InverseViewProjection[:])
	assert.Equal(t, 80, u.Size())

	b := u.Marshal()
	require.Len(t, b, 80)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, b[0:4], "m[0] = 1")
	assert.Equal(t, []byte{0, 0, 0, 0x40}, b[64:68], "lod = 2")
	assert.Equal(t, []byte{0, 0, 0, 0x3f}, b[68:72], "exposure = 0.5")
	assert.Equal(t, make([]byte, 8), b[72:80])
}

func TestSkyboxDraw(t *testing.T) {
	r, backend := renderertest.NewRenderer()
	sky := skybox.NewSkybox(r, r.SurfaceFormat(), skybox.WithExposure(2))
	t.Cleanup(sky.Release)

	pass, err := r.BeginFrame()
	require.NoError(t, err)
	drew, err := sky.Draw(pass)
	require.NoError(t, err)
	assert.False(t, drew, "nothing to draw without a texture")

	tex, err := r.CreateTexture(resource.TextureDescriptor{
		Label:     "cube",
		Width:     16,
		Height:    16,
		Layers:    common.CubeFaceCount,
		MipLevels: 5,
		Format:    wgpu.TextureFormatRGBA16Float,
		Usage:     wgpu.TextureUsageTextureBinding,
	})
	require.NoError(t, err)
	sky.SetTexture(tex)
	sky.SetLOD(10)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, v := range r.ShaderCache().Variants() {
		_, err := v.Wait(ctx)
		require.NoError(t, err, "variant %s", v.Key())
	}

	drew, err = sky.Draw(pass)
	require.NoError(t, err)
	assert.True(t, drew)
	require.NoError(t, r.EndFrame())

	passes := backend.Passes()
	require.NotEmpty(t, passes)
	frame := passes[len(passes)-1]
	assert.Equal(t, "frame", frame.Label)
	require.Len(t, frame.Draws, 1)
	assert.Equal(t, renderertest.Draw{VertexCount: 3, InstanceCount: 1}, frame.Draws[0])
	assert.Equal(t, resource.CubeView(tex), frame.Views[0][1])

	u := sky.Uniform()
	assert.Equal(t, float32(4), u.LOD, "lod is clamped to the last level")
	assert.Equal(t, float32(2), u.Exposure)

	var uniform *renderertest.Buffer
	for _, b := range backend.Buffers() {
		if strings.HasPrefix(b.Label(), "Skybox cube") {
			uniform = b
		}
	}
	require.NotNil(t, uniform)
	assert.Equal(t, u.Marshal(), uniform.Bytes())
}

func TestSkyboxSkipsReleasedTexture(t *testing.T) {
	r, _ := renderertest.NewRenderer()
	sky := skybox.NewSkybox(r, r.SurfaceFormat())
	tex, err := r.CreateTexture(resource.TextureDescriptor{
		Label: "gone", Width: 4, Height: 4, Layers: 6, MipLevels: 1,
		Format: wgpu.TextureFormatRGBA16Float,
	})
	require.NoError(t, err)
	tex.Release()
	sky.SetTexture(tex)

	pass, err := r.BeginFrame()
	require.NoError(t, err)
	drew, err := sky.Draw(pass)
	require.NoError(t, err)
	assert.False(t, drew)
	require.NoError(t, r.EndFrame())
}
