package overworld

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxel-colony/internal/noise"
)

// FlatField returns the same biome, scalar values and water feature
// everywhere.
type FlatField struct {
	BiomeID     BiomeID
	Height      float32
	Temperature float32
	Rainfall    float32
	WaterType   WaterType
}

func (f FlatField) Biome(mgl32.Vec2) BiomeID { return f.BiomeID }

func (f FlatField) Scalar(_ mgl32.Vec2, field ScalarField) float32 {
	switch field {
	case FieldTemperature:
		return f.Temperature
	case FieldRainfall:
		return f.Rainfall
	default:
		return f.Height
	}
}

func (f FlatField) Water(mgl32.Vec2) WaterType { return f.WaterType }

// NoiseField synthesises an overworld from seeded value noise. Height,
// temperature and rainfall are independent octave noises; biomes are
// classified from them and volcanoes appear on rare high cells.
type NoiseField struct {
	Seed     int64
	Scale    float64
	SeaLevel float32
}

// NewNoiseField returns a field with the default map feature scale.
func NewNoiseField(seed int64, seaLevel float32) *NoiseField {
	return &NoiseField{Seed: seed, Scale: 1.0 / 48.0, SeaLevel: seaLevel}
}

func (f *NoiseField) Scalar(pos mgl32.Vec2, field ScalarField) float32 {
	x := float64(pos.X()) * f.Scale
	z := float64(pos.Y()) * f.Scale
	switch field {
	case FieldTemperature:
		return float32(noise.Octave2D(x*0.5, z*0.5, f.Seed+101, 2, 0.5, 2))
	case FieldRainfall:
		return float32(noise.Octave2D(x*0.5, z*0.5, f.Seed+202, 2, 0.5, 2))
	default:
		return float32(noise.Octave2D(x, z, f.Seed, 4, 0.5, 2))
	}
}

func (f *NoiseField) Biome(pos mgl32.Vec2) BiomeID {
	h := f.Scalar(pos, FieldHeight)
	t := f.Scalar(pos, FieldTemperature)
	r := f.Scalar(pos, FieldRainfall)
	switch {
	case h > 0.75:
		return BiomeMountains
	case t < 0.35:
		return BiomeTundra
	case t > 0.6 && r < 0.4:
		return BiomeDesert
	case t > 0.6 && r > 0.6:
		return BiomeJungle
	case r > 0.5:
		return BiomeForest
	default:
		return BiomeGrassland
	}
}

func (f *NoiseField) Water(pos mgl32.Vec2) WaterType {
	h := f.Scalar(pos, FieldHeight)
	if h < f.SeaLevel {
		return WaterLake
	}
	ix, iz := int64(pos.X()), int64(pos.Y())
	if h > 0.7 && noise.Hash01(ix/8, 0, iz/8, f.Seed+303) > 0.97 {
		return WaterVolcano
	}
	// thin bands where an independent noise crosses its midpoint
	river := noise.Octave2D(float64(pos.X())*f.Scale*0.7, float64(pos.Y())*f.Scale*0.7, f.Seed+404, 2, 0.5, 2)
	if river > 0.49 && river < 0.51 {
		return WaterRiver
	}
	return WaterNone
}
