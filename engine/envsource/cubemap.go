// Package envsource turns environment assets on disk, or a procedural sky, into
// cubemaps the IBL pipeline can resample.
package envsource

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mrjoshuak/go-openexr/half"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidCubemap is returned for cubemaps whose faces do not match their size.
var ErrInvalidCubemap = errors.New("invalid cubemap")

// Cubemap holds six square faces of linear RGBA radiance in CubeFace order. Texels
// are row-major with v growing downwards, the layout common.FaceDirection maps.
type Cubemap struct {
	Label string
	Size  uint32

	// Format is the texture format Upload creates: RGBA16Float or RGBA32Float.
	Format wgpu.TextureFormat

	Faces [common.CubeFaceCount][]float32
}

// NewCubemap allocates a black cubemap.
//
// Parameters:
//   - label: a debug label
//   - size: the face edge length in texels
//
// Returns:
//   - *Cubemap: the cubemap
func NewCubemap(label string, size uint32) *Cubemap {
	c := &Cubemap{Label: label, Size: size, Format: wgpu.TextureFormatRGBA16Float}
	for face := range c.Faces {
		c.Faces[face] = make([]float32, size*size*4)
	}
	return c
}

// Validate reports whether every face holds Size*Size RGBA texels.
func (c *Cubemap) Validate() error {
	if c.Size == 0 {
		return fmt.Errorf("%w: %q has zero size", ErrInvalidCubemap, c.Label)
	}
	want := int(c.Size * c.Size * 4)
	for face, texels := range c.Faces {
		if len(texels) != want {
			return fmt.Errorf("%w: %q face %s holds %d floats, want %d", ErrInvalidCubemap, c.Label, common.CubeFace(face), len(texels), want)
		}
	}
	switch c.Format {
	case wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRGBA32Float:
	default:
		return fmt.Errorf("%w: %q has unsupported format %v", ErrInvalidCubemap, c.Label, c.Format)
	}
	return nil
}

// Texel returns the RGBA value at (x, y) of face.
func (c *Cubemap) Texel(face common.CubeFace, x, y uint32) [4]float32 {
	i := (y*c.Size + x) * 4
	t := c.Faces[face][i : i+4]
	return [4]float32{t[0], t[1], t[2], t[3]}
}

// Sample bilinearly filters the face d points at. Filtering is clamped to the face.
//
// Parameters:
//   - d: a direction, not necessarily normalized
//
// Returns:
//   - [4]float32: the filtered RGBA value
func (c *Cubemap) Sample(d [3]float32) [4]float32 {
	face, u, v := common.DirectionToFace(d)
	last := float32(c.Size - 1)
	x := common.Clamp(u*float32(c.Size)-0.5, 0, last)
	y := common.Clamp(v*float32(c.Size)-0.5, 0, last)
	x0, y0 := uint32(x), uint32(y)
	x1, y1 := min(x0+1, c.Size-1), min(y0+1, c.Size-1)
	fx, fy := x-float32(x0), y-float32(y0)

	a, b := c.Texel(face, x0, y0), c.Texel(face, x1, y0)
	e, f := c.Texel(face, x0, y1), c.Texel(face, x1, y1)
	var out [4]float32
	for i := range out {
		top := a[i] + (b[i]-a[i])*fx
		bottom := e[i] + (f[i]-e[i])*fx
		out[i] = top + (bottom-top)*fy
	}
	return out
}

// layerData encodes every face in Format.
func (c *Cubemap) layerData() [][]byte {
	layers := make([][]byte, common.CubeFaceCount)
	for face, texels := range c.Faces {
		if c.Format == wgpu.TextureFormatRGBA32Float {
			layers[face] = append([]byte(nil), common.SliceToBytes(texels)...)
			continue
		}
		data := make([]byte, len(texels)*2)
		half.ConvertFloat32ToBytes(data, texels)
		layers[face] = data
	}
	return layers
}

// Upload creates a six-layer texture holding the faces. The texture can be passed as
// environment.Source.Cubemap directly.
//
// Parameters:
//   - dev: the device to create the texture on
//
// Returns:
//   - resource.Texture: the texture, owned by the caller
//   - error: a validation or device error
func (c *Cubemap) Upload(dev renderer.Device) (resource.Texture, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tex, err := dev.CreateTextureWithData(resource.TextureDescriptor{
		Label:     c.Label,
		Width:     c.Size,
		Height:    c.Size,
		Layers:    common.CubeFaceCount,
		MipLevels: 1,
		Format:    c.Format,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
	}, c.layerData())
	if err != nil {
		return nil, fmt.Errorf("failed to upload cubemap %q: %w", c.Label, err)
	}
	return tex, nil
}

// FromHalfFaces builds a cubemap from six RGBA16Float readbacks.
//
// Parameters:
//   - label: a debug label
//   - size: the face edge length
//   - faces: the encoded faces in CubeFace order
//
// Returns:
//   - *Cubemap: the decoded cubemap
//   - error: ErrInvalidCubemap if a face has the wrong length
func FromHalfFaces(label string, size uint32, faces [common.CubeFaceCount][]byte) (*Cubemap, error) {
	c := &Cubemap{Label: label, Size: size, Format: wgpu.TextureFormatRGBA16Float}
	want := int(size * size * 8)
	for face, data := range faces {
		if len(data) != want {
			return nil, fmt.Errorf("%w: face %s holds %d bytes, want %d", ErrInvalidCubemap, common.CubeFace(face), len(data), want)
		}
		c.Faces[face] = make([]float32, size*size*4)
		half.ConvertBytesToFloat32(c.Faces[face], data)
	}
	return c, nil
}

// build fills a cubemap by evaluating radiance at every texel center, one face per
// goroutine.
func build(label string, size uint32, radiance func(d [3]float32) [4]float32) (*Cubemap, error) {
	if size == 0 {
		return nil, fmt.Errorf("%w: %q has zero size", ErrInvalidCubemap, label)
	}
	c := NewCubemap(label, size)
	var g errgroup.Group
	for face := range c.Faces {
		g.Go(func() error {
			texels := c.Faces[face]
			for y := uint32(0); y < size; y++ {
				for x := uint32(0); x < size; x++ {
					d := common.FaceDirection(common.CubeFace(face), (float32(x)+0.5)/float32(size), (float32(y)+0.5)/float32(size))
					rgba := radiance(d)
					for _, ch := range rgba {
						if math32.IsNaN(ch) || math32.IsInf(ch, 0) {
							return fmt.Errorf("non-finite radiance on face %s at (%d, %d)", common.CubeFace(face), x, y)
						}
					}
					copy(texels[(y*size+x)*4:], rgba[:])
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build cubemap %q: %w", label, err)
	}
	return c, nil
}
