// Command iblview shows an environment while the IBL pipeline prefilters it, one
// level per frame.
//
// Usage:
//
//	iblview [options] [environment]
//
// The environment is any file iblbake accepts; without one the procedural sky is
// shown. Dropping a file on the window opens it. The environment and the config
// file are reloaded when they change on disk.
//
// Keys:
//
//	1 2 3       show GGX, Charlie or the source
//	up down     step the mip level
//	- =         decrease or increase exposure
//	W A S D     orbit, or drag with the left mouse button
//	R           reload the environment
//	Esc         quit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine"
	"github.com/Carmen-Shannon/oxy-ibl/engine/camera"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/viewer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/window"
)

var (
	configPath = flag.String("config", "", "pipeline config file (.toml, .yaml), reloaded on change")
	profile    = flag.String("profile", "desktop", "config profile when no config file is given (desktop, mobile)")
	faceSize   = flag.Uint("size", 0, "source face size (default: derived from the input)")
	width      = flag.Int("width", 1280, "window width")
	height     = flag.Int("height", 720, "window height")
	exposure   = flag.Float64("exposure", 1, "initial exposure")
	msaa       = flag.Bool("msaa", false, "enable 4x MSAA")
	vsync      = flag.Bool("vsync", true, "wait for vertical blank")
	software   = flag.Bool("software", false, "force the software fallback adapter")
	noWatch    = flag.Bool("no-watch", false, "do not reload files when they change")
	profiling  = flag.Bool("profile-log", false, "log frame statistics every second")
	verbose    = flag.Bool("v", false, "log debug output")
)

const titleInterval = 250 * time.Millisecond

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := flag.Arg(0)

	win, err := window.NewWindow(window.WithTitle("oxy-ibl"), window.WithSize(*width, *height))
	if err != nil {
		return err
	}
	defer win.Close()

	presentMode := renderer.PresentModeVSync
	if !*vsync {
		presentMode = renderer.PresentModeUncapped
	}
	sampleCount := renderer.MSAAOff
	if *msaa {
		sampleCount = renderer.MSAA4x
	}
	r, err := renderer.NewRenderer(win,
		renderer.WithPresentMode(presentMode),
		renderer.WithMSAA(sampleCount),
		renderer.WithForceSoftwareRenderer(*software),
	)
	if err != nil {
		return fmt.Errorf("no GPU renderer: %w", err)
	}
	defer r.Release()

	ctrl := camera.NewOrbitController()
	cam := camera.NewCamera(
		camera.WithController(ctrl),
		camera.WithAspect(float32(win.Width())/float32(max(win.Height(), 1))),
	)

	v, err := viewer.NewViewer(r, cam,
		viewer.WithConfig(cfg),
		viewer.WithSourcePath(path),
		viewer.WithFaceSize(uint32(*faceSize)),
		viewer.WithExposure(float32(*exposure)),
	)
	if err != nil {
		return err
	}
	defer v.Release()

	e := engine.NewEngine(
		engine.WithWindow(win),
		engine.WithRenderer(r),
		engine.WithLayer(0, v),
		engine.WithProfiling(*profiling),
	)
	e.Profiler().SetStatsFunc(v.Stats)
	e.SetResizeCallback(func(w, h int) {
		cam.SetAspect(float32(w) / float32(h))
	})

	var lastTitle time.Time
	e.SetRenderCallback(func(float32) {
		if now := time.Now(); now.Sub(lastTitle) >= titleInterval {
			lastTitle = now
			win.SetTitle(v.Title())
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		e.Quit()
	}()

	var watcher *viewer.Watcher
	if !*noWatch {
		watcher, err = watch(ctx, v, path)
		if err != nil {
			common.Logger().Warn("file watching disabled", slog.String("error", err.Error()))
		} else {
			defer watcher.Close()
		}
	}

	bindInput(win, v, ctrl, cam, watcher)
	e.Run()
	return nil
}

// watch reloads the environment and the config when they change on disk.
func watch(ctx context.Context, v viewer.Viewer, path string) (*viewer.Watcher, error) {
	w, err := viewer.NewWatcher(viewer.DefaultDebounce)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := w.Watch(path, v.Reload); err != nil {
			w.Close()
			return nil, err
		}
	}
	if *configPath != "" {
		err := w.Watch(*configPath, func() {
			cfg, err := ibl.LoadConfig(*configPath)
			if err == nil {
				err = v.Reconfigure(cfg)
			}
			if err != nil {
				common.Logger().Error("config reload failed", slog.String("path", *configPath), slog.String("error", err.Error()))
			}
		})
		if err != nil {
			w.Close()
			return nil, err
		}
	}
	go w.Run(ctx)
	return w, nil
}

func bindInput(win window.Window, v viewer.Viewer, ctrl camera.CameraController, cam camera.Camera, watcher *viewer.Watcher) {
	var dragging bool
	var lastX, lastY int32

	win.SetKeyDownCallback(func(keyCode uint32) {
		v.HandleKey(keyCode)
	})
	win.SetMouseButtonCallback(func(button window.MouseButton, pressed bool, x, y int32) {
		if button == window.MouseButtonLeft {
			dragging = pressed
			lastX, lastY = x, y
		}
	})
	win.SetMouseMoveCallback(func(x, y int32) {
		if dragging {
			ctrl.Drag(float32(x-lastX), float32(y-lastY))
		}
		lastX, lastY = x, y
	})
	win.SetScrollCallback(func(delta float32) {
		cam.SetFov(cam.Fov() - delta*0.05)
	})
	win.SetDropCallback(func(paths []string) {
		v.Open(paths[0])
		if watcher != nil {
			if err := watcher.Watch(paths[0], v.Reload); err != nil {
				common.Logger().Warn("cannot watch dropped file", slog.String("path", paths[0]), slog.String("error", err.Error()))
			}
		}
	})
}

func loadConfig() (ibl.Config, error) {
	if *configPath != "" {
		return ibl.LoadConfig(*configPath)
	}
	return ibl.ConfigForProfile(ibl.Profile(*profile))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: iblview [options] [environment]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  iblview studio.exr                      View an EXR environment\n")
	fmt.Fprintf(os.Stderr, "  iblview -config ibl.toml sky.toml       Edit a sky and its config live\n")
	fmt.Fprintf(os.Stderr, "  iblview -profile mobile -msaa           Preview the mobile profile\n")
}
