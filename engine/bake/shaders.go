package bake

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/ibl"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-ibl/engine/skybox"
)

var fileNameReplacer = strings.NewReplacer("|", "_", "=", "", ".", "p")

// VariantFile returns the base file name a variant's sources are dumped under.
//
// Parameters:
//   - key: the variant key
//
// Returns:
//   - string: a name such as "prefilter_cube_ms0_depth0_ggx_r0p2500_n1024"
func VariantFile(key shader.VariantKey) string {
	return key.Kind.String() + "_" + fileNameReplacer.Replace(key.Flags.Key())
}

// DumpShaders compiles every variant the pipeline and the skybox use for a color cube
// source and writes their sources into dir. WGSL variants are written as one module,
// GLSL variants as a vertex and a fragment stage.
//
// Parameters:
//   - ctx: bounds compilation
//   - cache: the cache to compile on, its backend selects the language
//   - cfg: the pipeline configuration the variants are derived from
//   - dir: the output directory, created if missing
//
// Returns:
//   - []string: the written paths
//   - error: the first compilation or write error
func DumpShaders(ctx context.Context, cache shader.Cache, cfg ibl.Config, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	variants := ibl.RequestVariants(cache, cfg, shader.Flags{View: shader.ViewCube})
	variants = append(variants, cache.Variant(shader.KindSkybox, skybox.Flags()))

	var paths []string
	for _, v := range variants {
		prog, err := v.Wait(ctx)
		if err != nil {
			return paths, fmt.Errorf("variant %s: %w", v.Key(), err)
		}
		base := filepath.Join(dir, VariantFile(v.Key()))
		files := map[string]string{base + ".wgsl": prog.WGSL()}
		if cache.Backend() == shader.BackendGLSL {
			files = map[string]string{
				base + ".vert": prog.Vertex().Source(),
				base + ".frag": prog.Fragment().Source(),
			}
		}
		for path, src := range files {
			if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
				return paths, fmt.Errorf("failed to write %s: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	common.Logger().Info("shaders dumped",
		slog.String("dir", dir),
		slog.String("backend", cache.Backend().String()),
		slog.Int("variants", len(variants)),
	)
	return paths, nil
}
