package environment

// Basis function constants for real spherical harmonics up to band 2.
const (
	shY00  = 0.282095
	shY1   = 0.488603
	shY2n2 = 1.092548
	shY20  = 0.315392
	shY22  = 0.546274
)

// Basis evaluates the 9 SH basis functions for the unit direction d.
//
// Parameters:
//   - d: a unit direction
//
// Returns:
//   - [9]float32: the basis values in band order
func Basis(d [3]float32) [9]float32 {
	x, y, z := d[0], d[1], d[2]
	return [9]float32{
		shY00,
		shY1 * y,
		shY1 * z,
		shY1 * x,
		shY2n2 * x * y,
		shY2n2 * y * z,
		shY20 * (3*z*z - 1),
		shY2n2 * x * z,
		shY22 * (x*x - y*y),
	}
}

// Evaluate returns the value the coefficients encode in the unit direction d. For
// coefficients derived by the IBL pipeline this is irradiance divided by π, so it
// can be multiplied by albedo directly.
//
// Parameters:
//   - d: a unit direction
//
// Returns:
//   - [3]float32: the RGB value
func (sh *SH) Evaluate(d [3]float32) [3]float32 {
	b := Basis(d)
	var out [3]float32
	for i := range sh {
		for c := 0; c < 3; c++ {
			out[c] += sh[i][c] * b[i]
		}
	}
	return out
}
