// Package viewer draws the environment the IBL pipeline publishes as a skybox and
// ticks the pipeline once per frame. It is independent of windowing so it can be
// driven by engine.Engine or by a test renderer.
package viewer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/camera"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/envsource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/skybox"
)

// Mode selects which texture the skybox shows.
type Mode int

const (
	ModeGGX Mode = iota
	ModeCharlie
	ModeSource
)

func (m Mode) String() string {
	switch m {
	case ModeGGX:
		return "ggx"
	case ModeCharlie:
		return "charlie"
	case ModeSource:
		return "source"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const exposureStep = 1.25

// viewer is the implementation of the Viewer interface.
type viewer struct {
	mu *sync.Mutex

	r        renderer.Renderer
	cam      camera.Camera
	cfg      ibl.Config
	path     string
	sky      envsource.Sky
	faceSize uint32

	sys    ibl.System
	orch   ibl.Orchestrator
	loader envsource.Loader
	source resource.Texture
	// ownsSource is set when source is the procedural sky rather than a loader texture.
	ownsSource bool
	env        *environment.Environment
	sb         skybox.Skybox

	mode     Mode
	level    uint32
	exposure float32

	pendingReload bool
	pendingConfig *ibl.Config
	pendingPath   *string
	lastErr       error
}

// Viewer is an engine layer presenting the pipeline output.
type Viewer interface {
	// Prepare applies queued reloads, ticks the pipeline and updates the skybox. Call
	// it once per frame before the frame pass begins.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//
	// Returns:
	//   - error: a pipeline or load error, also kept in Err
	Prepare(dt float32) error

	// Draw records the skybox into the frame pass.
	//
	// Parameters:
	//   - pass: the frame pass
	//
	// Returns:
	//   - error: a recording error
	Draw(pass renderer.RenderPass) error

	// HandleKey applies a key binding: 1/2/3 select GGX, Charlie or the source,
	// up/down step the mip level, -/= change exposure, R reloads the source and
	// W/A/S/D orbit the camera.
	//
	// Parameters:
	//   - keyCode: a common.Key* code
	//
	// Returns:
	//   - bool: true if the key was bound
	HandleKey(keyCode uint32) bool

	Mode() Mode
	SetMode(m Mode)

	// Level returns the requested mip level. The drawn level is clamped to the levels ready.
	Level() uint32

	// StepLevel moves the requested level by delta, clamped to the configured range.
	//
	// Parameters:
	//   - delta: levels to move
	StepLevel(delta int)

	Exposure() float32
	SetExposure(exposure float32)

	// Reload queues a reload of the current source for the next Prepare.
	Reload()

	// Open queues a switch to another environment file. An empty path selects the procedural sky.
	//
	// Parameters:
	//   - path: the file to load
	Open(path string)

	// Reconfigure queues a rebuild of the pipeline with cfg. Progress restarts from zero.
	//
	// Parameters:
	//   - cfg: the new configuration
	//
	// Returns:
	//   - error: a validation error, in which case nothing is queued
	Reconfigure(cfg ibl.Config) error

	// Environment returns the last published environment.
	//
	// Returns:
	//   - *environment.Environment: the environment or nil before the first tick
	Environment() *environment.Environment

	// Config returns the configuration of the running pipeline.
	Config() ibl.Config

	// Stats returns progress attributes for the profiler.
	Stats() []slog.Attr

	// Title returns a one-line status suitable for a window title.
	Title() string

	// Err returns the last error Prepare reported, nil after a successful frame.
	Err() error

	// Release releases the pipeline, the source and the skybox.
	Release()
}

var _ Viewer = &viewer{}

// NewViewer creates a viewer over r and builds its pipeline.
//
// Parameters:
//   - r: the renderer drawing the frame
//   - cam: the camera the skybox follows
//   - options: ViewerBuilderOption values
//
// Returns:
//   - Viewer: the viewer
//   - error: an invalid configuration or a pipeline creation error
func NewViewer(r renderer.Renderer, cam camera.Camera, options ...ViewerBuilderOption) (Viewer, error) {
	v := &viewer{
		mu:       &sync.Mutex{},
		r:        r,
		cam:      cam,
		cfg:      ibl.DefaultConfig(),
		sky:      envsource.DefaultSky(),
		exposure: 1,
	}
	for _, opt := range options {
		opt(v)
	}
	if err := v.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := v.buildSystem(); err != nil {
		return nil, err
	}
	v.loader = envsource.NewLoader(envsource.WithDevice(r), envsource.WithFaceSize(v.faceSize))
	v.sb = skybox.NewSkybox(r, r.SurfaceFormat(),
		skybox.WithSampleCount(uint32(r.SampleCount())),
		skybox.WithExposure(v.exposure),
	)
	v.pendingReload = true
	return v, nil
}

func (v *viewer) buildSystem() error {
	sys, err := ibl.NewSystem(v.r, ibl.WithConfig(v.cfg), ibl.WithLabel("Viewer"))
	if err != nil {
		return err
	}
	orch, err := sys.NewOrchestrator("Viewer Environment")
	if err != nil {
		sys.Destroy()
		return err
	}
	v.sys = sys
	v.orch = orch
	v.env = nil
	return nil
}

func (v *viewer) Prepare(dt float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.applyPending(); err != nil {
		v.lastErr = err
		return err
	}
	if v.source == nil {
		return v.lastErr
	}

	env, err := v.sys.Tick(v.orch, &environment.Source{Cubemap: v.source})
	v.env = env
	v.lastErr = err

	v.cam.Update()
	v.sb.SetInverseViewProjection(v.cam.SkyboxMatrix())
	v.sb.SetExposure(v.exposure)
	tex, lod := v.selection()
	v.sb.SetTexture(tex)
	v.sb.SetLOD(float32(lod))
	return err
}

// selection picks the texture and level to draw. A prefiltered mode shows the source
// until its first level is ready. Caller must hold the mutex.
func (v *viewer) selection() (resource.Texture, uint32) {
	if v.mode == ModeSource || v.env == nil {
		return v.source, 0
	}
	maxLevel, ok := v.env.MaxSampleLevel()
	if !ok {
		return v.source, 0
	}
	tex := v.env.GGX
	if v.mode == ModeCharlie {
		tex = v.env.Charlie
	}
	return tex, min(v.level, maxLevel)
}

// applyPending performs queued rebuilds and reloads. Caller must hold the mutex.
func (v *viewer) applyPending() error {
	if cfg := v.pendingConfig; cfg != nil {
		v.pendingConfig = nil
		v.sys.Destroy()
		v.cfg = *cfg
		if err := v.buildSystem(); err != nil {
			return fmt.Errorf("rebuild pipeline: %w", err)
		}
		v.level = min(v.level, v.cfg.MipLevels()-1)
		common.Logger().Info("pipeline reconfigured",
			slog.Uint64("size", uint64(v.cfg.PrefilterSize)),
			slog.Uint64("levels", uint64(v.cfg.MipLevels())),
		)
	}
	if p := v.pendingPath; p != nil {
		v.pendingPath = nil
		v.dropSource()
		v.path = *p
		v.pendingReload = true
	}
	if v.pendingReload {
		v.pendingReload = false
		v.dropSource()
		return v.loadSource()
	}
	return nil
}

// dropSource evicts the source from the pipeline and releases it. Caller must hold the mutex.
func (v *viewer) dropSource() {
	if v.source == nil {
		return
	}
	v.sys.Evict(v.source)
	if v.ownsSource {
		v.source.Release()
	} else {
		v.loader.Forget(v.path)
	}
	v.source = nil
	v.ownsSource = false
	v.env = nil
	v.sb.SetTexture(nil)
}

// loadSource uploads the configured source. Caller must hold the mutex.
func (v *viewer) loadSource() error {
	if v.path == "" {
		c, err := envsource.NewSky("Sky", v.sky, common.Coalesce(v.faceSize, envsource.DefaultSkySize))
		if err != nil {
			return err
		}
		tex, err := c.Upload(v.r)
		if err != nil {
			return err
		}
		v.source = tex
		v.ownsSource = true
		return nil
	}
	tex, err := v.loader.LoadTexture(v.path)
	if err != nil {
		return err
	}
	v.source = tex
	return nil
}

func (v *viewer) Draw(pass renderer.RenderPass) error {
	_, err := v.sb.Draw(pass)
	return err
}

func (v *viewer) HandleKey(keyCode uint32) bool {
	ctrl := v.cam.Controller()
	switch keyCode {
	case common.Key1:
		v.SetMode(ModeGGX)
	case common.Key2:
		v.SetMode(ModeCharlie)
	case common.Key3:
		v.SetMode(ModeSource)
	case common.KeyUp:
		v.StepLevel(1)
	case common.KeyDown:
		v.StepLevel(-1)
	case common.KeyEqual:
		v.SetExposure(v.Exposure() * exposureStep)
	case common.KeyMinus:
		v.SetExposure(v.Exposure() / exposureStep)
	case common.KeyR:
		v.Reload()
	case common.KeyA, common.KeyLeft:
		if ctrl == nil {
			return false
		}
		ctrl.Orbit(-1, 0)
	case common.KeyD, common.KeyRight:
		if ctrl == nil {
			return false
		}
		ctrl.Orbit(1, 0)
	case common.KeyW:
		if ctrl == nil {
			return false
		}
		ctrl.Orbit(0, 1)
	case common.KeyS:
		if ctrl == nil {
			return false
		}
		ctrl.Orbit(0, -1)
	default:
		return false
	}
	return true
}

func (v *viewer) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

func (v *viewer) SetMode(m Mode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mode = m
}

func (v *viewer) Level() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.level
}

func (v *viewer) StepLevel(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	level := int(v.level) + delta
	level = min(max(level, 0), int(v.cfg.MipLevels())-1)
	v.level = uint32(level)
}

func (v *viewer) Exposure() float32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exposure
}

func (v *viewer) SetExposure(exposure float32) {
	if exposure <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exposure = exposure
}

func (v *viewer) Reload() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pendingReload = true
}

func (v *viewer) Open(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pendingPath = &path
}

func (v *viewer) Reconfigure(cfg ibl.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pendingConfig = &cfg
	return nil
}

func (v *viewer) Environment() *environment.Environment {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.env
}

func (v *viewer) Config() ibl.Config {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cfg
}

func (v *viewer) Stats() []slog.Attr {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ready uint32
	complete := false
	if v.env != nil {
		ready = v.env.LevelsReady
		complete = v.env.Complete
	}
	st := v.sys.Stats()
	return []slog.Attr{
		slog.String("mode", v.mode.String()),
		slog.Uint64("level", uint64(v.level)),
		slog.Uint64("levels_ready", uint64(ready)),
		slog.Uint64("levels", uint64(v.cfg.MipLevels())),
		slog.Bool("complete", complete),
		slog.Uint64("frame", v.sys.Frame()),
		slog.Int("readbacks_pending", st.ReadbacksPending),
	}
}

func (v *viewer) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	name := v.path
	if name == "" {
		name = "sky"
	}
	var ready uint32
	if v.env != nil {
		ready = v.env.LevelsReady
	}
	status := fmt.Sprintf("%d/%d levels", ready, v.cfg.MipLevels())
	if v.env != nil && v.env.Complete {
		status = "complete"
	}
	if v.lastErr != nil {
		status = "error: " + v.lastErr.Error()
	}
	return fmt.Sprintf("oxy-ibl | %s | %s level %d | exposure %.2f | %s", name, v.mode, v.level, v.exposure, status)
}

func (v *viewer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

func (v *viewer) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropSource()
	v.sb.Release()
	v.sys.Destroy()
	v.loader.Release()
}
