package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuTexture is the wgpu implementation of resource.Texture. Views are created on
// first use and released with the texture.
type wgpuTexture struct {
	mu       sync.Mutex
	desc     resource.TextureDescriptor
	texture  *wgpu.Texture
	views    map[resource.ViewDescriptor]*wgpu.TextureView
	released bool
}

var _ resource.Texture = &wgpuTexture{}

func (t *wgpuTexture) Label() string {
	return t.desc.Label
}

func (t *wgpuTexture) Descriptor() resource.TextureDescriptor {
	return t.desc
}

func (t *wgpuTexture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	for _, v := range t.views {
		v.Release()
	}
	t.views = nil
	t.texture.Release()
}

func (t *wgpuTexture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// view returns the cached view for vd, creating it if needed.
func (t *wgpuTexture) view(vd resource.ViewDescriptor) (*wgpu.TextureView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil, fmt.Errorf("texture %q is released", t.desc.Label)
	}
	if v, ok := t.views[vd]; ok {
		return v, nil
	}

	levels := vd.MipLevelCount
	if levels == 0 {
		levels = t.desc.MipLevels - vd.BaseMipLevel
	}
	layers := vd.ArrayLayerCount
	if layers == 0 {
		layers = t.desc.Layers - vd.BaseArrayLayer
	}
	if vd.BaseMipLevel+levels > t.desc.MipLevels || vd.BaseArrayLayer+layers > t.desc.Layers {
		return nil, fmt.Errorf("view %+v out of range for texture %q", vd, t.desc.Label)
	}

	aspect := wgpu.TextureAspectAll
	if t.desc.IsDepth() {
		aspect = wgpu.TextureAspectDepthOnly
	}
	v, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.desc.Label + " View",
		Format:          t.desc.Format,
		Dimension:       vd.Dimension,
		BaseMipLevel:    vd.BaseMipLevel,
		MipLevelCount:   levels,
		BaseArrayLayer:  vd.BaseArrayLayer,
		ArrayLayerCount: layers,
		Aspect:          aspect,
	})
	if err != nil {
		return nil, err
	}
	t.views[vd] = v
	return v, nil
}

// wgpuBuffer is the wgpu implementation of resource.Buffer.
type wgpuBuffer struct {
	label  string
	size   uint64
	buffer *wgpu.Buffer
	once   sync.Once
}

var _ resource.Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string {
	return b.label
}

func (b *wgpuBuffer) Size() uint64 {
	return b.size
}

func (b *wgpuBuffer) Release() {
	b.once.Do(b.buffer.Release)
}

// wgpuSampler is the wgpu implementation of resource.Sampler.
type wgpuSampler struct {
	sampler *wgpu.Sampler
	once    sync.Once
}

func (s *wgpuSampler) Release() {
	s.once.Do(s.sampler.Release)
}

// wgpuBindGroup is the wgpu implementation of resource.BindGroup.
type wgpuBindGroup struct {
	group *wgpu.BindGroup
	once  sync.Once
}

func (g *wgpuBindGroup) Release() {
	g.once.Do(g.group.Release)
}

// asWGPUTexture unwraps a texture created by the wgpu backend.
func asWGPUTexture(tex resource.Texture) (*wgpuTexture, error) {
	t, ok := tex.(*wgpuTexture)
	if !ok {
		return nil, fmt.Errorf("texture %q was not created by the wgpu backend", tex.Label())
	}
	return t, nil
}
