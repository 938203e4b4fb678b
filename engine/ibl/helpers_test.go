package ibl_test

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/require"
)

// testConfig keeps every texture tiny: a 16 texel prefilter target has 5 levels and
// the SH is read back from level 2 (4 texels).
func testConfig() ibl.Config {
	return ibl.Config{
		ResampleSize:       16,
		PrefilterSize:      16,
		GGXSampleCount:     16,
		CharlieSampleCount: 8,
		LUTSize:            8,
		LUTSampleCount:     16,
		SHSampleSize:       4,
		LODBias:            1,
		Profile:            ibl.ProfileDesktop,
	}
}

const (
	testLevels     = 5
	resamplePasses = common.CubeFaceCount * testLevels
	testSHLevel    = 2
	compileTimeout = 30 * time.Second
)

func cubeDescriptor(label string, size uint32) resource.TextureDescriptor {
	return resource.TextureDescriptor{
		Label:     label,
		Width:     size,
		Height:    size,
		Layers:    common.CubeFaceCount,
		MipLevels: 1,
		Format:    wgpu.TextureFormatRGBA16Float,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	}
}

func newCube(t *testing.T, dev renderer.Device, label string) resource.Texture {
	t.Helper()
	tex, err := dev.CreateTexture(cubeDescriptor(label, 16))
	require.NoError(t, err)
	return tex
}

// waitVariants blocks until every variant requested from cache so far has compiled.
func waitVariants(t *testing.T, cache shader.Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()
	for _, v := range cache.Variants() {
		_, err := v.Wait(ctx)
		require.NoError(t, err, "variant %s", v.Key())
	}
}

// run records one Run of node on a fresh encoder and submits it.
func run(t *testing.T, dev renderer.Device, node rendernode.Node, frame uint64) {
	t.Helper()
	enc, err := dev.BeginCommands("test")
	require.NoError(t, err)
	require.NoError(t, node.Run(enc, rendernode.RunContext{Frame: frame}))
	require.NoError(t, enc.Finish())
	dev.Poll()
}

// warmSystem returns a system whose shader variants for 16 texel cube sources have
// compiled and whose LUT has been recorded, so every later tick records exactly one
// unit of work.
func warmSystem(t *testing.T, options ...ibl.NodeBuilderOption) (ibl.System, ibl.Orchestrator, *renderertest.Backend) {
	t.Helper()
	dev, backend := renderertest.NewDevice()
	sys, err := ibl.NewSystem(dev, append([]ibl.NodeBuilderOption{ibl.WithConfig(testConfig())}, options...)...)
	require.NoError(t, err)
	t.Cleanup(sys.Destroy)

	o, err := sys.NewOrchestrator("Scene")
	require.NoError(t, err)

	warm := newCube(t, dev, "warm")
	_, err = sys.Tick(o, &environment.Source{Cubemap: warm})
	require.NoError(t, err)
	waitVariants(t, dev.ShaderCache())
	sys.Evict(warm)

	_, err = sys.Tick(o, nil)
	require.NoError(t, err)
	require.True(t, sys.LUT().Done())
	return sys, o, backend
}

// tick runs one system tick and returns the passes and readbacks it recorded.
func tick(t *testing.T, sys ibl.System, o ibl.Orchestrator, backend *renderertest.Backend, src *environment.Source) (*environment.Environment, []renderertest.Pass, []renderertest.Readback) {
	t.Helper()
	passes, readbacks := len(backend.Passes()), len(backend.Readbacks())
	env, err := sys.Tick(o, src)
	require.NoError(t, err)
	return env, backend.Passes()[passes:], backend.Readbacks()[readbacks:]
}
