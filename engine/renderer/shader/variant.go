package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// Backend identifies the shading language a Program is emitted in.
type Backend int

const (
	// BackendWGSL emits WGSL, consumed directly by the wgpu renderer.
	BackendWGSL Backend = iota

	// BackendGLSL emits GLSL ES 3.00 translated from the generated WGSL.
	BackendGLSL
)

func (b Backend) String() string {
	switch b {
	case BackendWGSL:
		return "wgsl"
	case BackendGLSL:
		return "glsl"
	default:
		return "backend(" + strconv.Itoa(int(b)) + ")"
	}
}

// ParseBackend resolves a backend from its String form.
//
// Parameters:
//   - s: "wgsl" or "glsl", case-insensitive
//
// Returns:
//   - Backend: the matching backend
//   - error: an error if the name is unknown
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wgsl":
		return BackendWGSL, nil
	case "glsl", "gles":
		return BackendGLSL, nil
	}
	return 0, fmt.Errorf("unknown shader backend %q", s)
}

// Kind selects which fragment program a variant is generated from.
type Kind int

const (
	// KindResample converts an arbitrary cubemap source into the canonical working format.
	KindResample Kind = iota

	// KindPrefilter importance-samples one distribution at one roughness.
	KindPrefilter

	// KindLUT integrates the GGX and Charlie BRDF lookup table.
	KindLUT

	// KindMipmap box-filters one mip level into the next.
	KindMipmap

	// KindSkybox draws a cube array as the background of the viewer.
	KindSkybox
)

var kindNames = map[Kind]string{
	KindResample:  "resample",
	KindPrefilter: "prefilter",
	KindLUT:       "lut",
	KindMipmap:    "mipmap",
	KindSkybox:    "skybox",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// View is the texture view dimensionality a variant samples its source through.
type View int

const (
	ViewCube View = iota
	View2DArray
	View2D
)

func (v View) String() string {
	switch v {
	case ViewCube:
		return "cube"
	case View2DArray:
		return "2d_array"
	case View2D:
		return "2d"
	default:
		return "view(" + strconv.Itoa(int(v)) + ")"
	}
}

// Distribution is the microfacet lobe a prefilter variant samples.
type Distribution int

const (
	DistributionNone Distribution = iota
	DistributionGGX
	DistributionCharlie
)

func (d Distribution) String() string {
	switch d {
	case DistributionNone:
		return "none"
	case DistributionGGX:
		return "ggx"
	case DistributionCharlie:
		return "charlie"
	default:
		return "distribution(" + strconv.Itoa(int(d)) + ")"
	}
}

// Flags is the compile-time configuration of a variant. Flags never change for a
// configured node, so the generated program is cached by Flags.Key.
type Flags struct {
	// View is the dimensionality of the sampled source.
	View View

	// Multisampled marks a multisampled source, read with textureLoad.
	Multisampled bool

	// Depth marks a depth source. Depth variants write frag_depth instead of a color target.
	Depth bool

	// Distribution selects the prefilter lobe. Ignored by other kinds.
	Distribution Distribution

	// Roughness is the perceptual roughness baked into a prefilter variant.
	Roughness float32

	// SampleCount is the number of importance samples for prefilter and LUT variants.
	SampleCount uint32
}

// Key returns a stable string identifying the flag set.
//
// Returns:
//   - string: a key of the form "cube|ms=0|depth=0|ggx|r=0.2500|n=1024"
func (f Flags) Key() string {
	var sb strings.Builder
	sb.WriteString(f.View.String())
	sb.WriteString("|ms=")
	sb.WriteString(boolDigit(f.Multisampled))
	sb.WriteString("|depth=")
	sb.WriteString(boolDigit(f.Depth))
	sb.WriteByte('|')
	sb.WriteString(f.Distribution.String())
	sb.WriteString("|r=")
	sb.WriteString(strconv.FormatFloat(float64(f.Roughness), 'f', 4, 32))
	sb.WriteString("|n=")
	sb.WriteString(strconv.FormatUint(uint64(f.SampleCount), 10))
	return sb.String()
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// VariantKey is the cache identity of a compiled program.
type VariantKey struct {
	Backend Backend
	Kind    Kind
	Flags   Flags
}

func (k VariantKey) String() string {
	return k.Backend.String() + "/" + k.Kind.String() + "/" + k.Flags.Key()
}
