package envsource

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/chewxy/math32"
	"github.com/mrjoshuak/go-openexr/exr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageLoaderBackend reads 8 and 16 bit lat-long panoramas through the registered
// image decoders and linearizes them from sRGB.
type imageLoaderBackend struct{}

var _ loaderBackend = imageLoaderBackend{}

func (imageLoaderBackend) Load(path string, size uint32) (*Cubemap, error) {
	return LoadImage(path, size)
}

// LoadImage reads an LDR lat-long panorama in PNG, JPEG, BMP, TIFF or WebP format.
//
// Parameters:
//   - path: the image file
//   - size: the face size, zero derives it from the image height
//
// Returns:
//   - *Cubemap: the resampled cubemap in linear radiance
//   - error: an error if the file cannot be decoded
func LoadImage(path string, size uint32) (*Cubemap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	img := latLongFromImage(src)
	c, err := FromEnvMap(path, img, size)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s panorama %s: %w", format, path, err)
	}
	return c, nil
}

func latLongFromImage(src image.Image) *exr.EnvMapImage {
	b := src.Bounds()
	img := exr.NewEnvMapImage(exr.EnvMapLatLong, b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(src.At(x, y)).(color.NRGBA64)
			img.Set(x-b.Min.X, y-b.Min.Y, exr.RGBA{
				R: SRGBToLinear(float32(c.R) / 0xffff),
				G: SRGBToLinear(float32(c.G) / 0xffff),
				B: SRGBToLinear(float32(c.B) / 0xffff),
				A: float32(c.A) / 0xffff,
			})
		}
	}
	return img
}

// SRGBToLinear decodes one sRGB-encoded channel.
func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}
