// Command iblbake precomputes the image based lighting of an environment offline.
//
// Usage:
//
//	iblbake [options] <environment>
//
// The environment is an OpenEXR cube strip or lat-long map, an LDR panorama or a
// TOML/YAML sky description. Without an argument the default procedural sky is baked.
//
// Examples:
//
//	iblbake -o out studio.exr                   # Bake with the desktop profile
//	iblbake -config mobile.yaml -o out sky.toml # Bake a sky with a config file
//	iblbake -dump-shaders shaders -backend glsl # Write every GLSL variant
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/bake"
	"github.com/Carmen-Shannon/oxy-ibl/engine/envsource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
)

var (
	output      = flag.String("o", "bake", "output directory")
	configPath  = flag.String("config", "", "pipeline config file (.toml, .yaml)")
	profile     = flag.String("profile", "desktop", "config profile when no config file is given (desktop, mobile)")
	faceSize    = flag.Uint("size", 0, "source face size (default: derived from the input)")
	software    = flag.Bool("software", false, "force the software fallback adapter")
	timeout     = flag.Duration("timeout", 10*time.Minute, "abort the bake after this long")
	maxTicks    = flag.Int("max-ticks", 4096, "abort the bake after this many pipeline ticks")
	dumpShaders = flag.String("dump-shaders", "", "write every shader variant into this directory and exit")
	backendName = flag.String("backend", "wgsl", "shader backend for -dump-shaders (wgsl, glsl)")
	verbose     = flag.Bool("v", false, "log debug output")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if *dumpShaders != "" {
		backend, err := shader.ParseBackend(*backendName)
		if err != nil {
			return err
		}
		paths, err := bake.DumpShaders(ctx, shader.NewCache(backend), cfg, *dumpShaders)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d %s shader files to %s\n", len(paths), backend, *dumpShaders)
		return nil
	}

	src, err := loadSource(flag.Arg(0))
	if err != nil {
		return err
	}

	dev, err := renderer.NewHeadlessDevice(renderer.WithForceSoftwareRenderer(*software))
	if err != nil {
		return fmt.Errorf("no GPU device: %w", err)
	}
	defer dev.Release()

	m, err := bake.NewBaker(dev, bake.WithConfig(cfg), bake.WithMaxTicks(*maxTicks)).Bake(ctx, src, *output)
	if err != nil {
		return err
	}
	fmt.Printf("Baked %s in %d frames: %d levels, manifest %s\n", m.Source, m.Frames, len(m.Levels), filepath.Join(*output, bake.ManifestFile))
	return nil
}

func loadConfig() (ibl.Config, error) {
	if *configPath != "" {
		return ibl.LoadConfig(*configPath)
	}
	return ibl.ConfigForProfile(ibl.Profile(*profile))
}

func loadSource(path string) (*envsource.Cubemap, error) {
	if path == "" {
		return envsource.NewSky("default sky", envsource.DefaultSky(), uint32(common.Coalesce(*faceSize, envsource.DefaultSkySize)))
	}
	return envsource.NewLoader(envsource.WithFaceSize(uint32(*faceSize))).Load(path)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: iblbake [options] [environment]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  iblbake -o out studio.exr                    Bake an EXR environment\n")
	fmt.Fprintf(os.Stderr, "  iblbake -profile mobile -o out sky.toml      Bake a sky description\n")
	fmt.Fprintf(os.Stderr, "  iblbake -dump-shaders shaders -backend glsl  Write every GLSL variant\n")
}
