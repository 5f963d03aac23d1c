// Package noise provides seeded, deterministic value noise used by terrain
// generation. Every function returns the same value for the same inputs on
// every platform.
package noise

import "math"

func fade(t float64) float64 {
	// 6t^5 - 15t^4 + 10t^3
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func hash2(x, z int64, seed int64) uint64 {
	v := uint64(x) + (uint64(z) << 1) + uint64(seed)*0x9E3779B97F4A7C15
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func hash3(x, y, z int64, seed int64) uint64 {
	// separate multipliers per axis so (1,2,3) and (3,2,1) differ
	v := uint64(x)*0x9E3779B97F4A7C15 + uint64(y)*0x517CC1B727220A95 + uint64(z)*0x6C62272E07BB0142 + uint64(seed)
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func unit(h uint64) float64 {
	return float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

// Value2D returns smooth value noise in [0,1].
func Value2D(x, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	z0 := math.Floor(z)
	fx := fade(x - x0)
	fz := fade(z - z0)
	ix, iz := int64(x0), int64(z0)

	v00 := unit(hash2(ix, iz, seed))
	v10 := unit(hash2(ix+1, iz, seed))
	v01 := unit(hash2(ix, iz+1, seed))
	v11 := unit(hash2(ix+1, iz+1, seed))

	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fz)
}

// Value3D returns smooth value noise in [0,1].
func Value3D(x, y, z float64, seed int64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	z0 := math.Floor(z)
	fx := fade(x - x0)
	fy := fade(y - y0)
	fz := fade(z - z0)
	ix, iy, iz := int64(x0), int64(y0), int64(z0)

	c := func(dx, dy, dz int64) float64 {
		return unit(hash3(ix+dx, iy+dy, iz+dz, seed))
	}
	i00 := lerp(c(0, 0, 0), c(1, 0, 0), fx)
	i10 := lerp(c(0, 1, 0), c(1, 1, 0), fx)
	i01 := lerp(c(0, 0, 1), c(1, 0, 1), fx)
	i11 := lerp(c(0, 1, 1), c(1, 1, 1), fx)

	return lerp(lerp(i00, i10, fy), lerp(i01, i11, fy), fz)
}

// Octave2D sums octaves of Value2D and normalises back into [0,1].
func Octave2D(x, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude, frequency := 1.0, 1.0
	sum, norm := 0.0, 0.0
	for i := range octaves {
		sum += Value2D(x*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Octave3D sums octaves of Value3D and normalises back into [0,1].
func Octave3D(x, y, z float64, seed int64, octaves int, persistence, lacunarity float64) float64 {
	amplitude, frequency := 1.0, 1.0
	sum, norm := 0.0, 0.0
	for i := range octaves {
		sum += Value3D(x*frequency, y*frequency, z*frequency, seed+int64(i*131)) * amplitude
		norm += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Ridged3D is ridged multifractal noise in [0,1]. Values near 1 lie on thin
// ridges where the underlying signal crosses its midpoint, which makes it
// suitable for tunnel-shaped caves.
func Ridged3D(x, y, z float64, seed int64, octaves int, lacunarity, gain float64) float64 {
	amplitude, frequency := 1.0, 1.0
	weight := 1.0
	sum, norm := 0.0, 0.0
	for i := range octaves {
		n := Value3D(x*frequency, y*frequency, z*frequency, seed+int64(i*977))
		signal := 1 - math.Abs(n*2-1)
		signal *= signal
		signal *= weight
		weight = math.Min(math.Max(signal*gain, 0), 1)
		sum += signal * amplitude
		norm += amplitude
		amplitude *= 0.5
		frequency *= lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Hash01 maps an integer lattice point to a uniform value in [0,1]. Used
// where the generator needs a per-column random decision that does not
// depend on evaluation order.
func Hash01(x, y, z int64, seed int64) float64 {
	return unit(hash3(x, y, z, seed))
}
