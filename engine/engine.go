package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/window"
)

// Layer is drawn into the frame each render iteration in ascending key order.
type Layer interface {
	// Prepare runs before the frame pass begins. Offscreen GPU work, such as a
	// pipeline tick, is recorded and submitted here.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//
	// Returns:
	//   - error: logged, the frame continues
	Prepare(dt float32) error

	// Draw records into the frame pass.
	//
	// Parameters:
	//   - pass: the frame pass
	//
	// Returns:
	//   - error: logged, the frame continues
	Draw(pass renderer.RenderPass) error
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window   window.Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)
	resizeCallback func(width, height int)

	layersMu sync.Mutex
	layers   map[int]Layer

	// pendingSize is applied by the render goroutine so the surface is never
	// reconfigured in the middle of a frame.
	sizeMu      sync.Mutex
	pendingSize *[2]int

	renderFrameLimit time.Duration
}

// Engine orchestrates the engine loop, the render loop and window management.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer the frame is drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer, nil if none was set
	Renderer() renderer.Renderer

	// Profiler returns the profiler reporting frame statistics.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for input processing and camera updates.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetResizeCallback registers the function called after the surface was resized.
	// Runs on the render goroutine.
	//
	// Parameters:
	//   - callback: function receiving the new size in pixels
	SetResizeCallback(callback func(width, height int))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddLayer registers a layer at the given key, replacing any layer already there.
	//
	// Parameters:
	//   - key: the draw order (lower draws first)
	//   - l: the Layer to register
	AddLayer(key int, l Layer)

	// RemoveLayer removes the layer at key.
	//
	// Parameters:
	//   - key: the key of the layer to remove
	RemoveLayer(key int)

	// Layer returns the layer at key, nil if none.
	Layer(key int) Layer

	// Run starts the engine and render goroutines and runs the window message loop
	// on the calling goroutine. Blocks until the window closes or Quit is called. A
	// window closed by the user is left for the caller to Close.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		layers:          make(map[int]Layer),
		profiler:        profiler.NewProfiler(time.Second),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.sizeMu.Lock()
			e.pendingSize = &[2]int{width, height}
			e.sizeMu.Unlock()
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() {
	e.running = true
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				// The surface must outlive the render goroutine.
				e.wg.Wait()
				_ = e.window.Close()
			default:
			}
		})
		e.window.ProcessMessages()
	}
	e.signalQuit()
	e.wg.Wait()
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel exactly once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate tick loop. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// sortedLayers returns the layers in ascending key order.
func (e *engine) sortedLayers() []Layer {
	e.layersMu.Lock()
	defer e.layersMu.Unlock()
	keys := make([]int, 0, len(e.layers))
	for k := range e.layers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Layer, len(keys))
	for i, k := range keys {
		out[i] = e.layers[k]
	}
	return out
}

func (e *engine) applyResize() {
	e.sizeMu.Lock()
	size := e.pendingSize
	e.pendingSize = nil
	e.sizeMu.Unlock()
	if size == nil || e.renderer == nil {
		return
	}
	if err := e.renderer.Resize(size[0], size[1]); err != nil {
		common.Logger().Error("resize failed", slog.Int("width", size[0]), slog.Int("height", size[1]), slog.String("error", err.Error()))
		return
	}
	if e.resizeCallback != nil {
		e.resizeCallback(size[0], size[1])
	}
}

// frame runs one Prepare, Draw and Present cycle over every layer.
func (e *engine) frame(dt float32) {
	e.applyResize()
	layers := e.sortedLayers()
	if e.renderer == nil || len(layers) == 0 {
		return
	}

	for _, l := range layers {
		if err := l.Prepare(dt); err != nil {
			common.Logger().Warn("layer prepare failed", slog.String("error", err.Error()))
		}
	}

	pass, err := e.renderer.BeginFrame()
	if err != nil {
		common.Logger().Debug("frame skipped", slog.String("error", err.Error()))
		return
	}
	for _, l := range layers {
		if err := l.Draw(pass); err != nil {
			common.Logger().Warn("layer draw failed", slog.String("error", err.Error()))
		}
	}
	if err := e.renderer.EndFrame(); err != nil {
		common.Logger().Error("frame submission failed", slog.String("error", err.Error()))
		return
	}
	e.renderer.Present()
}

// handleRender runs the render loop. A panic is logged and stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", slog.String("panic", fmt.Sprint(r)))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.frame(dt)

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate. A running engine picks the change up on its next tick.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetResizeCallback(callback func(width, height int)) {
	e.resizeCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddLayer(key int, l Layer) {
	e.layersMu.Lock()
	defer e.layersMu.Unlock()
	e.layers[key] = l
}

func (e *engine) RemoveLayer(key int) {
	e.layersMu.Lock()
	defer e.layersMu.Unlock()
	delete(e.layers, key)
}

func (e *engine) Layer(key int) Layer {
	e.layersMu.Lock()
	defer e.layersMu.Unlock()
	return e.layers[key]
}
