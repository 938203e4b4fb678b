package bake

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/environment"
	"github.com/Carmen-Shannon/oxy-ibl/engine/envsource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"golang.org/x/sync/errgroup"
)

// LUTFile is the name of the lookup table image in a bake directory.
const LUTFile = "brdf_lut.exr"

// cubeReadback is the readback of every face of one level of a prefiltered cube array.
type cubeReadback struct {
	dist  shader.Distribution
	level uint32
	faces [common.CubeFaceCount]*common.Future[[]byte]
}

// LevelFile returns the name of the cube strip holding level of d.
//
// Parameters:
//   - d: the distribution
//   - level: the mip level
//
// Returns:
//   - string: a name such as "ggx_03.exr"
func LevelFile(d shader.Distribution, level uint32) string {
	return fmt.Sprintf("%s_%02d.exr", d, level)
}

// write reads back every output of env and encodes them into dir. Files are
// encoded concurrently while the remaining readbacks resolve.
func (b *baker) write(ctx context.Context, env *environment.Environment, dir string) (*Manifest, error) {
	enc, err := b.dev.BeginCommands("Bake Readback")
	if err != nil {
		return nil, err
	}
	var cubes []cubeReadback
	for _, t := range []struct {
		dist shader.Distribution
		tex  resource.Texture
	}{{shader.DistributionGGX, env.GGX}, {shader.DistributionCharlie, env.Charlie}} {
		for level := uint32(0); level < env.MipLevelCount; level++ {
			r := cubeReadback{dist: t.dist, level: level}
			for face := range r.faces {
				r.faces[face] = enc.ReadTexture(t.tex, uint32(face), level)
			}
			cubes = append(cubes, r)
		}
	}
	lut := enc.ReadTexture(env.LUT, 0, 0)
	if err := enc.Finish(); err != nil {
		return nil, fmt.Errorf("failed to submit readbacks: %w", err)
	}

	size := env.GGX.Descriptor().Width
	m := &Manifest{
		LUT:    LUTFile,
		Levels: make([]Level, env.MipLevelCount),
		Config: b.cfg,
	}
	if env.SH != nil {
		m.SH = *env.SH
	}
	for level := range m.Levels {
		l := uint32(level)
		m.Levels[level] = Level{
			Level:     l,
			Roughness: ibl.PrefilterFlags(b.cfg, shader.DistributionGGX, l, env.MipLevelCount).Roughness,
			Size:      common.MipSize(size, l),
			GGX:       LevelFile(shader.DistributionGGX, l),
			Charlie:   LevelFile(shader.DistributionCharlie, l),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range cubes {
		var faces [common.CubeFaceCount][]byte
		for face, f := range r.faces {
			data, err := await(gctx, b.dev, f)
			if err != nil {
				g.Wait()
				return nil, fmt.Errorf("readback of %s level %d face %s: %w", r.dist, r.level, common.CubeFace(face), err)
			}
			faces[face] = data
		}
		name := LevelFile(r.dist, r.level)
		levelSize := common.MipSize(size, r.level)
		g.Go(func() error {
			c, err := envsource.FromHalfFaces(name, levelSize, faces)
			if err != nil {
				return err
			}
			return envsource.WriteEXR(filepath.Join(dir, name), c)
		})
	}

	data, err := await(gctx, b.dev, lut)
	if err != nil {
		g.Wait()
		return nil, fmt.Errorf("readback of the lookup table: %w", err)
	}
	lutSize := env.LUT.Descriptor().Width
	g.Go(func() error {
		pix, err := ibl.DecodeHalfRGBA(data, lutSize)
		if err != nil {
			return err
		}
		return envsource.WriteImage(filepath.Join(dir, LUTFile), int(lutSize), int(lutSize), pix)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	common.Logger().Info("bake written",
		slog.String("dir", dir),
		slog.Int("files", len(cubes)+1),
	)
	return m, nil
}

// await polls dev until f resolves or ctx ends.
func await(ctx context.Context, dev renderer.Device, f *common.Future[[]byte]) ([]byte, error) {
	for {
		select {
		case <-f.Done():
			return f.Poll()
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		dev.Poll()
	}
}
