package ibl_test

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFlags(t *testing.T) {
	cube := cubeDescriptor("cube", 16)
	assert.Equal(t, shader.Flags{View: shader.ViewCube}, ibl.SourceFlags(cube))

	array := cube
	array.Width = 32
	assert.Equal(t, shader.Flags{View: shader.View2DArray}, ibl.SourceFlags(array))

	ms := cube
	ms.SampleCount = 4
	assert.Equal(t, shader.Flags{View: shader.View2D, Multisampled: true}, ibl.SourceFlags(ms))

	depth := cube
	depth.Format = wgpu.TextureFormatDepth32Float
	assert.Equal(t, shader.Flags{View: shader.ViewCube, Depth: true}, ibl.SourceFlags(depth))
}

func TestResampleNodeRejectsNonCubes(t *testing.T) {
	dev, _ := renderertest.NewDevice()
	flat, err := dev.CreateTexture(resource.TextureDescriptor{Label: "flat", Width: 4, Height: 4, Format: wgpu.TextureFormatRGBA16Float})
	require.NoError(t, err)

	_, err = ibl.NewResampleNode(flat)
	assert.ErrorIs(t, err, ibl.ErrInvalidSource)
	_, err = ibl.NewResampleNode(nil)
	assert.ErrorIs(t, err, ibl.ErrInvalidSource)
}

func TestResampleNodeIsSingleShot(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	src := newCube(t, dev, "sky")

	node, err := ibl.NewResampleNode(src, ibl.WithConfig(testConfig()))
	require.NoError(t, err)
	enc, err := dev.BeginCommands("early")
	require.NoError(t, err)
	assert.ErrorIs(t, node.Run(enc, rendernode.RunContext{}), rendernode.ErrNotConfigured)
	enc.Discard()

	require.NoError(t, node.Reconfigure(dev))
	defer node.Destroy()
	assert.Equal(t, rendernode.StateConfigured, node.State())

	meta := node.Metadata()
	assert.Equal(t, uint32(16), meta.Size)
	assert.Equal(t, uint32(testLevels), meta.MipLevelCount)
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, meta.OutputFormat)
	out := node.Output().Descriptor()
	assert.Equal(t, uint32(common.CubeFaceCount), out.Layers)
	assert.Equal(t, uint32(testLevels), out.MipLevels)

	waitVariants(t, dev.ShaderCache())
	run(t, dev, node, 1)
	require.True(t, node.Done())

	passes := backend.Passes()
	require.Len(t, passes, resamplePasses)
	for face := uint32(0); face < common.CubeFaceCount; face++ {
		p := passes[face]
		assert.Same(t, node.Output(), p.Target.Texture)
		assert.Equal(t, face, p.Target.Layer)
		assert.Zero(t, p.Target.Level)
		require.Len(t, p.Draws, 1)
		assert.Equal(t, renderertest.Draw{VertexCount: 3, InstanceCount: 1, FirstVertex: face * 3}, p.Draws[0])
		assert.Equal(t, wgpu.TextureViewDimensionCube, p.Views[0][0].Dimension)
	}
	for i, p := range passes[common.CubeFaceCount:] {
		assert.Equal(t, uint32(1+i/common.CubeFaceCount), p.Target.Level, "mip pass %d", i)
	}

	run(t, dev, node, 2)
	assert.Len(t, backend.Passes(), resamplePasses)
}

func TestResampleNodeDepthSource(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	desc := cubeDescriptor("shadow", 8)
	desc.Format = wgpu.TextureFormatDepth32Float
	src, err := dev.CreateTexture(desc)
	require.NoError(t, err)

	node, err := ibl.NewResampleNode(src, ibl.WithSize(8))
	require.NoError(t, err)
	require.NoError(t, node.Reconfigure(dev))
	defer node.Destroy()
	assert.Equal(t, wgpu.TextureFormatDepth32Float, node.Output().Descriptor().Format)
	assert.True(t, node.Metadata().Flags.Depth)

	waitVariants(t, dev.ShaderCache())
	run(t, dev, node, 1)
	assert.True(t, node.Done())
	assert.Len(t, backend.Passes(), common.CubeFaceCount*4)

	_, err = ibl.NewPrefilterNode(node.Output())
	assert.ErrorIs(t, err, ibl.ErrDepthSource)
}

func TestResampleNodeMultisampledSourceBindsLayers(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	desc := cubeDescriptor("msaa", 8)
	desc.SampleCount = 4
	src, err := dev.CreateTexture(desc)
	require.NoError(t, err)

	node, err := ibl.NewResampleNode(src, ibl.WithSize(8))
	require.NoError(t, err)
	require.NoError(t, node.Reconfigure(dev))
	defer node.Destroy()

	waitVariants(t, dev.ShaderCache())
	run(t, dev, node, 1)
	require.True(t, node.Done())

	for face, p := range backend.Passes()[:common.CubeFaceCount] {
		view := p.Views[0][0]
		assert.Equal(t, wgpu.TextureViewDimension2D, view.Dimension)
		assert.Equal(t, uint32(face), view.BaseArrayLayer)
	}
}

func TestResampleNodeReconfigureFailure(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	src := newCube(t, dev, "sky")
	node, err := ibl.NewResampleNode(src)
	require.NoError(t, err)

	backend.CreateTextureErr = assert.AnError
	err = node.Reconfigure(dev)
	var resErr *ibl.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, rendernode.StateUnconfigured, node.State())
}

func newPrefilter(t *testing.T, options ...ibl.NodeBuilderOption) (ibl.PrefilterNode, *renderertest.Backend, func(uint64)) {
	t.Helper()
	dev, backend := renderertest.NewDevice()
	desc := cubeDescriptor("resampled", 16)
	desc.MipLevels = testLevels
	src, err := dev.CreateTexture(desc)
	require.NoError(t, err)

	node, err := ibl.NewPrefilterNode(src, append([]ibl.NodeBuilderOption{ibl.WithConfig(testConfig())}, options...)...)
	require.NoError(t, err)
	require.NoError(t, node.Reconfigure(dev))
	t.Cleanup(node.Destroy)
	waitVariants(t, dev.ShaderCache())
	return node, backend, func(frame uint64) { run(t, dev, node, frame) }
}

func TestPrefilterNodeOneLevelPerRun(t *testing.T) {
	node, backend, runOnce := newPrefilter(t)
	require.Equal(t, uint32(testLevels), node.MipLevelCount())

	for level := uint32(0); level < testLevels; level++ {
		before := backend.PassCount()
		runOnce(uint64(level))
		passes := backend.Passes()[before:]
		require.Len(t, passes, ibl.PassesPerLevel, "level %d", level)
		assert.Equal(t, level+1, node.LevelsCompleted())

		for i, p := range passes {
			face := uint32(i / 2)
			want := node.GGX()
			if i%2 == 1 {
				want = node.Charlie()
			}
			assert.Same(t, want, p.Target.Texture)
			assert.Equal(t, face, p.Target.Layer)
			assert.Equal(t, level, p.Target.Level)
			assert.Equal(t, face*3, p.Draws[0].FirstVertex)
		}
	}
	assert.True(t, node.Done())

	before := backend.PassCount()
	runOnce(testLevels)
	assert.Equal(t, before, backend.PassCount())
	assert.Equal(t, uint32(testLevels), node.LevelsCompleted())
}

func TestPrefilterNodeDiscardedLevelIsRecordedAgain(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	desc := cubeDescriptor("resampled", 16)
	desc.MipLevels = testLevels
	src, err := dev.CreateTexture(desc)
	require.NoError(t, err)
	node, err := ibl.NewPrefilterNode(src, ibl.WithConfig(testConfig()))
	require.NoError(t, err)
	require.NoError(t, node.Reconfigure(dev))
	defer node.Destroy()
	waitVariants(t, dev.ShaderCache())

	enc, err := dev.BeginCommands("discarded")
	require.NoError(t, err)
	require.NoError(t, node.Run(enc, rendernode.RunContext{Frame: 1}))
	assert.Zero(t, node.LevelsCompleted(), "a level counts only once submitted")
	enc.Discard()
	assert.Zero(t, node.LevelsCompleted())
	assert.Zero(t, backend.PassCount())

	run(t, dev, node, 2)
	passes := backend.Passes()
	require.Len(t, passes, ibl.PassesPerLevel)
	for _, p := range passes {
		assert.Zero(t, p.Target.Level)
	}
	assert.Equal(t, uint32(1), node.LevelsCompleted())
}

func TestPrefilterNodeReconfigureDropsPendingLevel(t *testing.T) {
	dev, _ := renderertest.NewDevice()
	desc := cubeDescriptor("resampled", 16)
	desc.MipLevels = testLevels
	src, err := dev.CreateTexture(desc)
	require.NoError(t, err)
	node, err := ibl.NewPrefilterNode(src, ibl.WithConfig(testConfig()))
	require.NoError(t, err)
	require.NoError(t, node.Reconfigure(dev))
	defer node.Destroy()
	waitVariants(t, dev.ShaderCache())

	enc, err := dev.BeginCommands("stale")
	require.NoError(t, err)
	require.NoError(t, node.Run(enc, rendernode.RunContext{Frame: 1}))

	other, _ := renderertest.NewDevice()
	require.NoError(t, node.Reconfigure(other))
	require.NoError(t, enc.Finish())
	assert.Zero(t, node.LevelsCompleted())
	assert.False(t, node.Done())
}

func TestPrefilterNodeRoughness(t *testing.T) {
	node, _, _ := newPrefilter(t)
	assert.Zero(t, node.Roughness(0))
	assert.InDelta(t, 0.25, node.Roughness(1), 1e-6)
	assert.InDelta(t, 1, node.Roughness(testLevels-1), 1e-6)

	single, _, runOnce := newPrefilter(t, ibl.WithMipLevelCount(1))
	assert.Equal(t, uint32(1), single.MipLevelCount())
	assert.Zero(t, single.Roughness(0))
	runOnce(0)
	assert.True(t, single.Done())
}

func TestPrefilterNodeWritesLevelParameters(t *testing.T) {
	node, backend, runOnce := newPrefilter(t)
	runOnce(0)
	runOnce(1)

	find := func(suffix string) []byte {
		for _, b := range backend.Buffers() {
			if strings.HasSuffix(b.Label(), suffix) {
				return b.Bytes()
			}
		}
		return nil
	}
	f := func(data []byte, i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	level1 := find(node.Label() + " Level 1 Buffer 2")
	require.Len(t, level1, 16)
	assert.Equal(t, float32(16), f(level1, 0))
	assert.Equal(t, float32(testLevels), f(level1, 1))
	assert.Equal(t, float32(8), f(level1, 2))
	assert.Equal(t, float32(1), f(level1, 3))
}

func TestPrefilterNodeValidation(t *testing.T) {
	dev, _ := renderertest.NewDevice()
	array, err := dev.CreateTexture(resource.TextureDescriptor{Label: "array", Width: 8, Height: 4, Layers: 6, Format: wgpu.TextureFormatRGBA16Float})
	require.NoError(t, err)
	_, err = ibl.NewPrefilterNode(array)
	assert.ErrorIs(t, err, ibl.ErrInvalidSource)

	cube := newCube(t, dev, "cube")
	_, err = ibl.NewPrefilterNode(cube, ibl.WithConfig(testConfig()), ibl.WithMipLevelCount(6))
	assert.Error(t, err)
}

func TestLUTNodeRecordsOnce(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	lut := ibl.NewLUTNode(ibl.WithConfig(testConfig()))
	require.NoError(t, lut.Reconfigure(dev))
	defer lut.Destroy()
	assert.Equal(t, uint32(8), lut.Size())
	assert.Equal(t, uint32(8), lut.Output().Descriptor().Width)

	waitVariants(t, dev.ShaderCache())
	backend.FinishErr = assert.AnError
	enc, err := dev.BeginCommands("failed")
	require.NoError(t, err)
	require.NoError(t, lut.Run(enc, rendernode.RunContext{Frame: 1}))
	assert.ErrorIs(t, enc.Finish(), assert.AnError)
	assert.False(t, lut.Done())
	backend.FinishErr = nil

	run(t, dev, lut, 2)
	run(t, dev, lut, 3)

	require.Equal(t, 1, backend.PassCount())
	assert.Same(t, lut.Output(), backend.Passes()[0].Target.Texture)
	assert.True(t, lut.Done())

	lut.Destroy()
	assert.Equal(t, rendernode.StateUnconfigured, lut.State())
	assert.Nil(t, lut.Output())
}

func TestRequestVariantsMatchesPipeline(t *testing.T) {
	cache := shader.NewCache(shader.BackendWGSL)
	vs := ibl.RequestVariants(cache, testConfig(), shader.Flags{View: shader.ViewCube})
	assert.Len(t, vs, 3+2*testLevels)
	assert.Equal(t, len(vs), cache.Len())

	dev, _ := renderertest.NewDevice(renderer.WithShaderCache(cache))
	sys, err := ibl.NewSystem(dev, ibl.WithConfig(testConfig()))
	require.NoError(t, err)
	t.Cleanup(sys.Destroy)
	o, err := sys.NewOrchestrator("Scene")
	require.NoError(t, err)
	_, err = sys.Tick(o, &environment.Source{Cubemap: newCube(t, dev, "sky")})
	require.NoError(t, err)
	assert.Equal(t, len(vs), cache.Len(), "the pipeline requests no variant beyond the predicted set")

	depth := ibl.RequestVariants(shader.NewCache(shader.BackendWGSL), testConfig(), shader.Flags{View: shader.ViewCube, Depth: true})
	assert.Len(t, depth, 3)
}

func TestPrefilterFlags(t *testing.T) {
	cfg := testConfig()
	f := ibl.PrefilterFlags(cfg, shader.DistributionCharlie, 2, testLevels)
	assert.Equal(t, shader.ViewCube, f.View)
	assert.Equal(t, float32(0.5), f.Roughness)
	assert.Equal(t, cfg.CharlieSampleCount, f.SampleCount)
	assert.Equal(t, cfg.GGXSampleCount, ibl.PrefilterFlags(cfg, shader.DistributionGGX, 0, 1).SampleCount)
	assert.Zero(t, ibl.PrefilterFlags(cfg, shader.DistributionGGX, 0, 1).Roughness)
	assert.Equal(t, shader.Flags{View: shader.View2D, SampleCount: cfg.LUTSampleCount}, ibl.LUTFlags(cfg))
}
