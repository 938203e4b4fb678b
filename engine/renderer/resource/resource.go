// Package resource holds the backend-neutral handles the renderer hands out. Nodes
// and caches only ever see these types, so the same code drives the wgpu backend
// and the in-memory test backend.
package resource

import (
	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureDescriptor describes a 2D texture, a 2D array or a cube (six layers).
type TextureDescriptor struct {
	Label       string
	Width       uint32
	Height      uint32
	Layers      uint32
	MipLevels   uint32
	Format      wgpu.TextureFormat
	Usage       wgpu.TextureUsage
	SampleCount uint32
}

// IsCube reports whether the texture can be viewed as a cube.
func (d TextureDescriptor) IsCube() bool {
	return d.Layers == common.CubeFaceCount && d.Width == d.Height
}

// IsDepth reports whether Format is a depth format.
func (d TextureDescriptor) IsDepth() bool {
	return IsDepthFormat(d.Format)
}

// IsMultisampled reports whether the texture holds more than one sample per texel.
func (d TextureDescriptor) IsMultisampled() bool {
	return d.SampleCount > 1
}

// MipSize returns the edge length of level, clamped to one texel.
func (d TextureDescriptor) MipSize(level uint32) (uint32, uint32) {
	return common.MipSize(d.Width, level), common.MipSize(d.Height, level)
}

// IsDepthFormat reports whether f is one of the depth formats.
func IsDepthFormat(f wgpu.TextureFormat) bool {
	switch f {
	case wgpu.TextureFormatDepth16Unorm, wgpu.TextureFormatDepth24Plus, wgpu.TextureFormatDepth24PlusStencil8,
		wgpu.TextureFormatDepth32Float, wgpu.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

// BytesPerTexel returns the size of one texel of f for the formats the pipeline reads
// back or uploads.
//
// Parameters:
//   - f: the texture format
//
// Returns:
//   - uint32: the texel size in bytes
//   - bool: false for formats without a fixed texel size
func BytesPerTexel(f wgpu.TextureFormat) (uint32, bool) {
	switch f {
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb, wgpu.TextureFormatBGRA8Unorm,
		wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatR32Float, wgpu.TextureFormatDepth32Float,
		wgpu.TextureFormatRG16Float:
		return 4, true
	case wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRG32Float:
		return 8, true
	case wgpu.TextureFormatRGBA32Float:
		return 16, true
	case wgpu.TextureFormatR16Float:
		return 2, true
	}
	return 0, false
}

// Texture is a GPU texture. Implementations are pointer types, so a Texture is
// usable as a map key for identity caches.
type Texture interface {
	Label() string
	Descriptor() TextureDescriptor

	// Release frees the GPU allocation. Safe to call more than once.
	Release()

	// Released reports whether Release has been called.
	Released() bool
}

// ViewDescriptor selects a subresource of a texture. A zero count means "the rest".
type ViewDescriptor struct {
	Dimension       wgpu.TextureViewDimension
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// TextureView names a subresource of a Texture. Backends create and cache the GPU
// view on first use.
type TextureView struct {
	Texture Texture
	ViewDescriptor
}

// CubeView views every layer and level of tex as a cube.
func CubeView(tex Texture) TextureView {
	return TextureView{Texture: tex, ViewDescriptor: ViewDescriptor{Dimension: wgpu.TextureViewDimensionCube}}
}

// ArrayView views every layer and level of tex as a 2D array.
func ArrayView(tex Texture) TextureView {
	return TextureView{Texture: tex, ViewDescriptor: ViewDescriptor{Dimension: wgpu.TextureViewDimension2DArray}}
}

// LayerView views one layer at one level as a plain 2D texture.
func LayerView(tex Texture, layer, level uint32) TextureView {
	return TextureView{Texture: tex, ViewDescriptor: ViewDescriptor{
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    level,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
	}}
}

// Sampler is a GPU sampler.
type Sampler interface {
	Release()
}

// Buffer is a GPU buffer.
type Buffer interface {
	Label() string
	Size() uint64
	Release()
}

// BindGroup is a GPU bind group.
type BindGroup interface {
	Release()
}
