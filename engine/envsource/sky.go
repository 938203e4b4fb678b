package envsource

import (
	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/chewxy/math32"
)

// Sky describes a procedural gradient sky with a disc sun.
type Sky struct {
	Zenith  [3]float32 `toml:"zenith" yaml:"zenith"`
	Horizon [3]float32 `toml:"horizon" yaml:"horizon"`
	Ground  [3]float32 `toml:"ground" yaml:"ground"`

	// SunDirection points towards the sun. It is normalized before use.
	SunDirection [3]float32 `toml:"sun_direction" yaml:"sun_direction"`
	SunColor     [3]float32 `toml:"sun_color" yaml:"sun_color"`

	// SunAngularRadius is the sun disc radius in radians. Zero disables the sun.
	SunAngularRadius float32 `toml:"sun_angular_radius" yaml:"sun_angular_radius"`
}

// DefaultSky returns a clear daylight sky.
func DefaultSky() Sky {
	return Sky{
		Zenith:           [3]float32{0.25, 0.45, 0.9},
		Horizon:          [3]float32{0.8, 0.85, 0.9},
		Ground:           [3]float32{0.2, 0.18, 0.15},
		SunDirection:     [3]float32{0.3, 0.6, 0.4},
		SunColor:         [3]float32{40, 38, 34},
		SunAngularRadius: 0.02,
	}
}

// Radiance returns the sky's radiance in direction d.
func (s Sky) Radiance(d [3]float32) [3]float32 {
	d = common.Normalize3(d)
	var out [3]float32
	if d[1] >= 0 {
		out = mix3(s.Horizon, s.Zenith, math32.Sqrt(d[1]))
	} else {
		out = mix3(s.Horizon, s.Ground, math32.Sqrt(-d[1]))
	}
	if s.SunAngularRadius > 0 && common.Dot3(d, common.Normalize3(s.SunDirection)) >= math32.Cos(s.SunAngularRadius) {
		for i := range out {
			out[i] += s.SunColor[i]
		}
	}
	return out
}

func mix3(a, b [3]float32, t float32) [3]float32 {
	return [3]float32{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t, a[2] + (b[2]-a[2])*t}
}

// NewSky renders s into a cubemap.
//
// Parameters:
//   - label: a debug label
//   - s: the sky description
//   - size: the face size
//
// Returns:
//   - *Cubemap: the cubemap
//   - error: an error for a zero size or a sky producing non-finite radiance
func NewSky(label string, s Sky, size uint32) (*Cubemap, error) {
	return build(label, size, func(d [3]float32) [4]float32 {
		r := s.Radiance(d)
		return [4]float32{r[0], r[1], r[2], 1}
	})
}
