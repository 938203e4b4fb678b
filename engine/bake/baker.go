// Package bake runs the IBL pipeline headless and writes its results to disk: the
// prefiltered GGX and Charlie cube arrays as one cube strip per level, the BRDF
// lookup table and a TOML manifest holding the irradiance coefficients.
package bake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/envsource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
)

// ErrIncomplete is returned when the environment is not complete after the tick limit.
var ErrIncomplete = errors.New("environment incomplete")

// baker is the implementation of the Baker interface.
type baker struct {
	dev      renderer.Device
	cfg      ibl.Config
	maxTicks int
}

// Baker drives an ibl.System until a source is fully precomputed and writes the result.
type Baker interface {
	// Bake uploads src, ticks the pipeline until its environment is complete and
	// writes every output into dir.
	//
	// Parameters:
	//   - ctx: bounds the bake, including shader compilation and readbacks
	//   - src: the source cubemap
	//   - dir: the output directory, created if missing
	//
	// Returns:
	//   - *Manifest: the manifest written to dir
	//   - error: ErrIncomplete, a pipeline error or a write error
	Bake(ctx context.Context, src *envsource.Cubemap, dir string) (*Manifest, error)

	// Config returns the pipeline configuration.
	//
	// Returns:
	//   - ibl.Config: the configuration
	Config() ibl.Config
}

var _ Baker = &baker{}

// NewBaker creates a baker recording onto dev.
//
// Parameters:
//   - dev: the device, usually renderer.NewHeadlessDevice
//   - options: BakerBuilderOption values
//
// Returns:
//   - Baker: the baker
func NewBaker(dev renderer.Device, options ...BakerBuilderOption) Baker {
	b := &baker{dev: dev, cfg: ibl.DefaultConfig(), maxTicks: 4096}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *baker) Config() ibl.Config {
	return b.cfg
}

func (b *baker) Bake(ctx context.Context, src *envsource.Cubemap, dir string) (*Manifest, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	start := time.Now()

	tex, err := src.Upload(b.dev)
	if err != nil {
		return nil, err
	}
	defer tex.Release()

	sys, err := ibl.NewSystem(b.dev, ibl.WithConfig(b.cfg), ibl.WithLabel("Bake"))
	if err != nil {
		return nil, err
	}
	defer sys.Destroy()
	o, err := sys.NewOrchestrator("Bake " + src.Label)
	if err != nil {
		return nil, err
	}

	env, err := b.run(ctx, sys, o, &environment.Source{Cubemap: tex})
	if err != nil {
		return nil, err
	}
	common.Logger().Info("bake pipeline complete",
		slog.String("source", src.Label),
		slog.Uint64("frames", sys.Frame()),
		slog.Duration("elapsed", time.Since(start)),
	)

	m, err := b.write(ctx, env, dir)
	if err != nil {
		return nil, err
	}
	m.Source = src.Label
	m.Frames = sys.Frame()
	if err := m.Write(dir); err != nil {
		return nil, err
	}
	return m, nil
}

// run ticks o until the published environment is complete. Ticks that record
// nothing wait for the pending shader variants.
func (b *baker) run(ctx context.Context, sys ibl.System, o ibl.Orchestrator, src *environment.Source) (*environment.Environment, error) {
	for i := 0; i < b.maxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env, err := sys.Tick(o, src)
		if err != nil {
			return nil, err
		}
		if env != nil && env.Complete {
			return env, nil
		}
		if err := waitVariants(ctx, b.dev.ShaderCache()); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d ticks", ErrIncomplete, b.maxTicks)
}

// waitVariants blocks until every variant requested from cache has compiled.
func waitVariants(ctx context.Context, cache shader.Cache) error {
	for _, v := range cache.Variants() {
		if v.Ready() {
			continue
		}
		if _, err := v.Wait(ctx); err != nil {
			return fmt.Errorf("variant %s: %w", v.Key(), err)
		}
	}
	for _, v := range cache.Variants() {
		if _, err := v.Program(); err != nil {
			return fmt.Errorf("variant %s: %w", v.Key(), err)
		}
	}
	return nil
}
