package ibl_test

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/rendernode"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mrjoshuak/go-openexr/half"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constantReadback resolves every readback with a face of uniform radiance.
func constantReadback(r, g, b float32) renderertest.ReadbackFunc {
	return func(tex resource.Texture, _, level uint32) ([]byte, error) {
		w, h := tex.Descriptor().MipSize(level)
		texels := make([]float32, 0, w*h*4)
		for i := uint32(0); i < w*h; i++ {
			texels = append(texels, r, g, b, 1)
		}
		data := make([]byte, len(texels)*2)
		half.ConvertFloat32ToBytes(data, texels)
		return data, nil
	}
}

func TestSystemNilEnvironment(t *testing.T) {
	sys, o, backend := warmSystem(t)
	env, passes, readbacks := tick(t, sys, o, backend, nil)
	assert.Nil(t, env)
	assert.Empty(t, passes)
	assert.Empty(t, readbacks)
	assert.False(t, o.Done())

	var zero ibl.GPUEnvironmentUniform
	buf := o.UniformBuffer().(*renderertest.Buffer)
	assert.Equal(t, zero.Marshal(), buf.Bytes())
}

func TestSystemProgressiveSchedule(t *testing.T) {
	sys, o, backend := warmSystem(t)
	backend.ReadbackFunc = constantReadback(1, 1, 1)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}

	env, passes, readbacks := tick(t, sys, o, backend, src)
	require.NotNil(t, env)
	assert.Len(t, passes, resamplePasses)
	assert.Empty(t, readbacks)
	assert.Equal(t, uint32(testLevels), env.MipLevelCount)
	assert.Zero(t, env.LevelsReady)
	assert.Same(t, src.Cubemap, env.Source)
	assert.NotNil(t, env.LUT)
	assert.False(t, env.Complete)

	for level := uint32(1); level <= testLevels; level++ {
		env, passes, readbacks = tick(t, sys, o, backend, src)
		assert.Len(t, passes, ibl.PassesPerLevel)
		assert.Empty(t, readbacks, "prefilter tick %d read back", level)
		assert.Equal(t, level, env.LevelsReady)
		assert.Equal(t, uint32(testLevels), env.MipLevelCount)
		assert.Nil(t, env.SH)
		assert.False(t, env.Complete)

		maxLevel, ok := env.MaxSampleLevel()
		assert.True(t, ok)
		assert.Equal(t, level-1, maxLevel)
	}

	env, passes, readbacks = tick(t, sys, o, backend, src)
	assert.Empty(t, passes)
	require.Len(t, readbacks, common.CubeFaceCount)
	for face, rb := range readbacks {
		assert.Equal(t, uint32(face), rb.Layer)
		assert.Equal(t, uint32(testSHLevel), rb.Level)
	}
	assert.Nil(t, env.SH)
	assert.False(t, env.Complete)

	env, passes, readbacks = tick(t, sys, o, backend, src)
	assert.Empty(t, passes)
	assert.Empty(t, readbacks)
	require.NotNil(t, env.SH)
	assert.True(t, env.Complete)
	assert.True(t, o.Done())
	got := env.SH.Evaluate([3]float32{0, 1, 0})
	assert.InDelta(t, 1, got[0], 1e-2)

	buf := o.UniformBuffer().(*renderertest.Buffer)
	want := ibl.NewGPUEnvironmentUniform(env)
	assert.Equal(t, want.Marshal(), buf.Bytes())

	final, passes, readbacks := tick(t, sys, o, backend, src)
	assert.Empty(t, passes)
	assert.Empty(t, readbacks)
	assert.True(t, final.Complete)
	assert.NotSame(t, env, final)
	assert.Equal(t, 1, sys.Stats().ReadbackAttempts)
}

func TestSystemSuppliedIrradianceSkipsReadback(t *testing.T) {
	sys, o, backend := warmSystem(t)
	sh := environment.SH{{0.5, 0.5, 0.5}}
	src := &environment.Source{
		Cubemap:    newCube(t, sys.Device(), "sky"),
		Irradiance: &sh,
		Bounds:     &environment.Bounds{Min: [3]float32{-5, 0, -5}, Max: [3]float32{5, 3, 5}},
	}

	var env *environment.Environment
	for i := 0; i < 1+testLevels; i++ {
		env, _, _ = tick(t, sys, o, backend, src)
	}
	assert.True(t, env.Complete)
	assert.Empty(t, backend.Readbacks())
	assert.True(t, env.Localized)
	assert.Equal(t, *src.Bounds, env.Bounds)
	assert.Equal(t, sh, *env.SH)
	assert.NotSame(t, src.Irradiance, env.SH)
}

func completeSource(t *testing.T, sys ibl.System, o ibl.Orchestrator, backend *renderertest.Backend, src *environment.Source) *environment.Environment {
	t.Helper()
	var env *environment.Environment
	for i := 0; i < 2+testLevels+1; i++ {
		env, _, _ = tick(t, sys, o, backend, src)
	}
	require.True(t, env.Complete)
	return env
}

func TestSystemReadbackFailureRetries(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}

	failing := true
	ok := constantReadback(1, 1, 1)
	backend.ReadbackFunc = func(tex resource.Texture, layer, level uint32) ([]byte, error) {
		if failing && layer == 3 {
			return nil, errors.New("device lost")
		}
		return ok(tex, layer, level)
	}

	var env *environment.Environment
	for i := 0; i < 1+testLevels+1; i++ {
		env, _, _ = tick(t, sys, o, backend, src)
	}
	require.Len(t, backend.Readbacks(), common.CubeFaceCount)

	env, _, _ = tick(t, sys, o, backend, src)
	assert.False(t, env.Complete)
	assert.Nil(t, env.SH)
	assert.Equal(t, 1, sys.Stats().ReadbackFailures)
	assert.Zero(t, sys.Stats().ReadbacksPending)

	failing = false
	_, _, readbacks := tick(t, sys, o, backend, src)
	assert.Len(t, readbacks, common.CubeFaceCount)
	env, _, _ = tick(t, sys, o, backend, src)
	assert.True(t, env.Complete)
	assert.Equal(t, 2, sys.Stats().ReadbackAttempts)
	assert.Equal(t, 1, sys.Stats().Harmonics)
}

func TestSystemMalformedReadbackRetries(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}
	backend.ReadbackFunc = func(resource.Texture, uint32, uint32) ([]byte, error) {
		return []byte{1, 2, 3}, nil
	}

	for i := 0; i < 1+testLevels+2; i++ {
		tick(t, sys, o, backend, src)
	}
	assert.Equal(t, 1, sys.Stats().ReadbackFailures)
	assert.False(t, o.Done())
}

func TestSystemSharesSourcesBetweenScenes(t *testing.T) {
	sys, first, backend := warmSystem(t)
	backend.ReadbackFunc = constantReadback(0.2, 0.4, 0.6)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}
	want := completeSource(t, sys, first, backend, src)

	second, err := sys.NewOrchestrator("Second Scene")
	require.NoError(t, err)
	env, passes, readbacks := tick(t, sys, second, backend, src)
	assert.Empty(t, passes)
	assert.Empty(t, readbacks)
	assert.True(t, env.Complete)
	assert.Same(t, want.GGX, env.GGX)
	assert.Equal(t, *want.SH, *env.SH)
	assert.Equal(t, 1, sys.Stats().Resamples)
}

func TestSystemTracksSourcesIndependently(t *testing.T) {
	sys, o, backend := warmSystem(t)
	a := &environment.Source{Cubemap: newCube(t, sys.Device(), "a")}
	b := &environment.Source{Cubemap: newCube(t, sys.Device(), "b")}

	tick(t, sys, o, backend, a)
	tick(t, sys, o, backend, a)
	envB, passes, _ := tick(t, sys, o, backend, b)
	assert.Len(t, passes, resamplePasses)
	assert.Zero(t, envB.LevelsReady)

	envA, passes, _ := tick(t, sys, o, backend, a)
	assert.Len(t, passes, ibl.PassesPerLevel)
	assert.Equal(t, uint32(2), envA.LevelsReady)
	assert.NotSame(t, envA.GGX, envB.GGX)
	assert.Equal(t, 2, sys.Stats().Prefilters)
}

func TestSystemDepthSourceRejectedOnce(t *testing.T) {
	sys, o, backend := warmSystem(t)
	desc := cubeDescriptor("shadow", 16)
	desc.Format = wgpu.TextureFormatDepth32Float
	depth, err := sys.Device().CreateTexture(desc)
	require.NoError(t, err)

	discards := backend.Discards()
	src := &environment.Source{Cubemap: depth}
	_, err = sys.Tick(o, src)
	assert.ErrorIs(t, err, ibl.ErrDepthSource)
	assert.Equal(t, discards+1, backend.Discards())
	assert.Zero(t, sys.Stats().Resamples)
	assert.Equal(t, 1, sys.Stats().Rejected)

	textures := len(backend.Textures())
	env, passes, _ := tick(t, sys, o, backend, src)
	assert.Nil(t, env)
	assert.Empty(t, passes)
	assert.Equal(t, textures, len(backend.Textures()), "a rejected source builds no jobs")

	sys.Evict(depth)
	assert.Zero(t, sys.Stats().Rejected)
	_, err = sys.Tick(o, src)
	assert.ErrorIs(t, err, ibl.ErrDepthSource)
}

// lutPasses returns the passes that targeted the lookup table.
func lutPasses(sys ibl.System, passes []renderertest.Pass) int {
	n := 0
	for _, p := range passes {
		if p.Target.Texture == sys.LUT().Output() {
			n++
		}
	}
	return n
}

func TestSystemInvalidSourceKeepsLUTPending(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	sys, err := ibl.NewSystem(dev, ibl.WithConfig(testConfig()))
	require.NoError(t, err)
	t.Cleanup(sys.Destroy)
	o, err := sys.NewOrchestrator("Scene")
	require.NoError(t, err)
	waitVariants(t, dev.ShaderCache())

	desc := cubeDescriptor("flat", 16)
	desc.Layers = 1
	flat, err := dev.CreateTexture(desc)
	require.NoError(t, err)

	_, err = sys.Tick(o, &environment.Source{Cubemap: flat})
	assert.ErrorIs(t, err, ibl.ErrInvalidSource)
	assert.False(t, sys.LUT().Done())
	assert.Zero(t, backend.PassCount())

	_, passes, _ := tick(t, sys, o, backend, nil)
	assert.Equal(t, 1, lutPasses(sys, passes))
	assert.True(t, sys.LUT().Done())
}

func TestSystemFailedSubmitRecordsLUTAgain(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	sys, err := ibl.NewSystem(dev, ibl.WithConfig(testConfig()))
	require.NoError(t, err)
	t.Cleanup(sys.Destroy)
	o, err := sys.NewOrchestrator("Scene")
	require.NoError(t, err)
	waitVariants(t, dev.ShaderCache())

	backend.FinishErr = assert.AnError
	_, err = sys.Tick(o, nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, sys.LUT().Done())
	assert.Nil(t, o.Environment())

	backend.FinishErr = nil
	_, passes, _ := tick(t, sys, o, backend, nil)
	assert.Equal(t, 1, lutPasses(sys, passes))
	assert.True(t, sys.LUT().Done())
}

func TestSystemFailedSubmitRetriesPrefilterLevel(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}
	tick(t, sys, o, backend, src)
	env, _, _ := tick(t, sys, o, backend, src)
	require.Equal(t, uint32(1), env.LevelsReady)

	backend.FinishErr = assert.AnError
	env, err := sys.Tick(o, src)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, uint32(1), env.LevelsReady, "the published record is kept")

	backend.FinishErr = nil
	env, passes, _ := tick(t, sys, o, backend, src)
	require.Len(t, passes, ibl.PassesPerLevel)
	for _, p := range passes {
		assert.Equal(t, uint32(1), p.Target.Level, "pass %s", p.Label)
	}
	assert.Equal(t, uint32(2), env.LevelsReady)
}

func TestSystemFailedSubmitRetriesResample(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}

	backend.FinishErr = assert.AnError
	_, err := sys.Tick(o, src)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, o.Environment())

	backend.FinishErr = nil
	env, passes, _ := tick(t, sys, o, backend, src)
	assert.Len(t, passes, resamplePasses)
	assert.Zero(t, env.LevelsReady)
	assert.Equal(t, 1, sys.Stats().Resamples)
}

func TestSystemResourceFailure(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}
	backend.CreateTextureErr = assert.AnError

	_, err := sys.Tick(o, src)
	var resErr *ibl.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, sys.Stats().Resamples)

	backend.CreateTextureErr = nil
	env, passes, _ := tick(t, sys, o, backend, src)
	assert.Len(t, passes, resamplePasses)
	assert.NotNil(t, env)
}

func TestSystemEvictReleasesJobs(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}
	env, _, _ := tick(t, sys, o, backend, src)
	live := backend.LiveTextures()

	sys.Evict(src.Cubemap)
	assert.Nil(t, o.Environment())
	assert.True(t, env.GGX.Released())
	assert.True(t, env.Charlie.Released())
	assert.Equal(t, live-3, backend.LiveTextures())
	assert.Equal(t, ibl.Stats{}, sys.Stats())

	_, passes, _ := tick(t, sys, o, backend, src)
	assert.Len(t, passes, resamplePasses)
}

func TestSystemDestroy(t *testing.T) {
	sys, o, backend := warmSystem(t)
	src := &environment.Source{Cubemap: newCube(t, sys.Device(), "sky")}
	tick(t, sys, o, backend, src)

	sys.Destroy()
	sys.Destroy()
	assert.ErrorIs(t, func() error { _, err := sys.Tick(o, src); return err }(), ibl.ErrSystemDestroyed)
	_, err := sys.NewOrchestrator("late")
	assert.ErrorIs(t, err, ibl.ErrSystemDestroyed)
	assert.Nil(t, sys.LUT().Output())
	assert.Nil(t, o.UniformBuffer())

	// only the scene-owned warm and sky cubemaps survive
	assert.False(t, src.Cubemap.Released())
	assert.Equal(t, 2, backend.LiveTextures())
}

func TestStandaloneOrchestrator(t *testing.T) {
	dev, backend := renderertest.NewDevice()
	o := ibl.NewOrchestrator(ibl.WithConfig(testConfig()), ibl.WithLabel("Standalone"))
	require.NoError(t, o.Reconfigure(dev))
	defer o.Destroy()
	require.NotNil(t, o.LUT())
	assert.Equal(t, "Standalone", o.Label())

	src := &environment.Source{Cubemap: newCube(t, dev, "sky")}
	enc, err := dev.BeginCommands("standalone")
	require.NoError(t, err)
	require.NoError(t, o.Run(enc, rendernode.RunContext{Frame: 1, Environment: src}))
	require.NoError(t, enc.Finish())
	dev.Poll()
	waitVariants(t, dev.ShaderCache())

	for frame := uint64(2); frame < 12 && !o.Done(); frame++ {
		enc, err := dev.BeginCommands("standalone")
		require.NoError(t, err)
		require.NoError(t, o.Run(enc, rendernode.RunContext{Frame: frame, Environment: src}))
		require.NoError(t, enc.Finish())
		dev.Poll()
	}
	assert.True(t, o.Done())
	assert.Equal(t, 1, o.Stats().Harmonics)
	assert.Len(t, backend.Readbacks(), common.CubeFaceCount)
}
