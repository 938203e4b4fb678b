package envsource

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/mrjoshuak/go-openexr/exr"
)

// exrLoaderBackend reads OpenEXR environment maps. Files tagged with the envmap
// attribute keep their projection. Untagged files are read as a vertical cube strip
// when they are six times as tall as wide and as lat-long otherwise.
type exrLoaderBackend struct{}

var _ loaderBackend = exrLoaderBackend{}

func (exrLoaderBackend) Load(path string, size uint32) (*Cubemap, error) {
	return LoadEXR(path, size)
}

// LoadEXR reads an OpenEXR environment map.
//
// Parameters:
//   - path: the .exr file
//   - size: the face size, zero derives it from the image
//
// Returns:
//   - *Cubemap: the resampled cubemap
//   - error: an error if the file cannot be read
func LoadEXR(path string, size uint32) (*Cubemap, error) {
	in, err := exr.OpenRGBAInputFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	rgba, err := in.ReadRGBA()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	w, h := in.Width(), in.Height()
	kind := in.Header().Envmap()
	if !in.Header().HasEnvmap() && h == 6*w {
		kind = exr.EnvMapCube
	}

	img := exr.NewEnvMapImage(kind, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := rgba.RGBA(x, y)
			img.Set(x, y, exr.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	common.Logger().Debug("exr environment read",
		slog.String("path", path),
		slog.String("projection", kind.String()),
		slog.Int("width", w),
		slog.Int("height", h),
	)
	return FromEnvMap(path, img, size)
}

// WriteEXR writes c as a vertical cube strip tagged with the envmap attribute, the
// layout LoadEXR reads back.
//
// Parameters:
//   - path: the destination .exr file
//   - c: the cubemap
//
// Returns:
//   - error: a validation or write error
func WriteEXR(path string, c *Cubemap) error {
	if err := c.Validate(); err != nil {
		return err
	}
	n := int(c.Size)
	img := exr.NewRGBAImage(image.Rect(0, 0, n, n*common.CubeFaceCount))
	dw := exr.Box2i{Max: exr.V2i{X: int32(n - 1), Y: int32(n*common.CubeFaceCount - 1)}}
	for face := 0; face < common.CubeFaceCount; face++ {
		for py := 0; py < n; py++ {
			for px := 0; px < n; px++ {
				pos := exr.V2f{X: float32(px), Y: float32(py)}
				d := exr.DirectionFromCubeFaceAndPosition(face, pos, dw)
				rgba := c.Sample([3]float32{d.X, d.Y, d.Z})
				x, y := exr.CubePixel(face, dw, pos)
				img.SetRGBA(x, y, rgba[0], rgba[1], rgba[2], rgba[3])
			}
		}
	}

	out, err := exr.NewRGBAOutputFile(path, n, n*common.CubeFaceCount)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	out.Header().SetEnvmap(exr.EnvMapCube)
	if err := out.WriteRGBA(img); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteImage writes a 2D RGBA image such as the BRDF lookup table.
//
// Parameters:
//   - path: the destination .exr file
//   - width, height: the image dimensions
//   - pix: row-major RGBA texels
//
// Returns:
//   - error: an error if pix is short or the file cannot be written
func WriteImage(path string, width, height int, pix []float32) error {
	if len(pix) != width*height*4 {
		return fmt.Errorf("%d floats for a %dx%d image", len(pix), width, height)
	}
	img := exr.NewRGBAImage(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	if err := exr.EncodeFile(path, img); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
