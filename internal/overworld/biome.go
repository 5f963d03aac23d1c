// Package overworld is the boundary to the 2D world map consumed by terrain
// generation: biome ids, scalar fields and water features sampled at map
// coordinates, plus the per-biome generation parameters.
package overworld

import "github.com/go-gl/mathgl/mgl32"

// BiomeID identifies a biome in a BiomeLibrary.
type BiomeID int

const (
	BiomeGrassland BiomeID = iota
	BiomeForest
	BiomeDesert
	BiomeTundra
	BiomeJungle
	BiomeMountains
)

// ScalarField selects one of the normalised map layers.
type ScalarField int

const (
	FieldHeight ScalarField = iota
	FieldTemperature
	FieldRainfall
)

// WaterType is the water feature flagged on a map cell.
type WaterType int

const (
	WaterNone WaterType = iota
	WaterRiver
	WaterLake
	WaterVolcano
)

func (w WaterType) String() string {
	switch w {
	case WaterRiver:
		return "river"
	case WaterLake:
		return "lake"
	case WaterVolcano:
		return "volcano"
	default:
		return "none"
	}
}

// Field is the overworld lookup. Positions are map coordinates, already
// scaled down from world space by the caller. Scalar values lie in [0,1].
type Field interface {
	Biome(pos mgl32.Vec2) BiomeID
	Scalar(pos mgl32.Vec2, field ScalarField) float32
	Water(pos mgl32.Vec2) WaterType
}

// VegetationData describes a plant entity a biome may spawn on its grass.
type VegetationData struct {
	Name           string
	Probability    float64
	ClumpSize      float64
	ClumpThreshold float64
}

// FaunaData describes an animal entity a biome may spawn on its surface.
type FaunaData struct {
	Name        string
	Probability float64
}

// BiomeData holds the read-only generation parameters of one biome.
// Material fields are voxel type names resolved against the registry.
type BiomeData struct {
	ID   BiomeID
	Name string

	GrassLayer       string
	SoilLayer        string
	ShoreLayer       string
	SubsurfaceLayers []string

	// Optional clumps of ClumpLayer replace the surface where the clump
	// noise exceeds ClumpThreshold.
	ClumpLayer     string
	ClumpSize      float64
	ClumpThreshold float64

	Vegetation []VegetationData
	Fauna      []FaunaData
}

// BiomeLibrary maps biome ids to their data. It is filled once and shared
// read-only between generator workers.
type BiomeLibrary struct {
	biomes   map[BiomeID]*BiomeData
	fallback *BiomeData
}

// NewBiomeLibrary builds a library. The first entry is returned for ids
// that are not present.
func NewBiomeLibrary(biomes ...BiomeData) *BiomeLibrary {
	lib := &BiomeLibrary{biomes: make(map[BiomeID]*BiomeData, len(biomes))}
	for i := range biomes {
		b := biomes[i]
		lib.biomes[b.ID] = &b
		if lib.fallback == nil {
			lib.fallback = lib.biomes[b.ID]
		}
	}
	return lib
}

func (l *BiomeLibrary) Get(id BiomeID) *BiomeData {
	if b, ok := l.biomes[id]; ok {
		return b
	}
	return l.fallback
}

func (l *BiomeLibrary) Len() int { return len(l.biomes) }

// DefaultBiomes returns the built-in biome table. Material names refer to
// registry.Default.
func DefaultBiomes() *BiomeLibrary {
	return NewBiomeLibrary(
		BiomeData{
			ID: BiomeGrassland, Name: "Grassland",
			GrassLayer: "Grass", SoilLayer: "Dirt", ShoreLayer: "Sand",
			SubsurfaceLayers: []string{"Dirt", "Dirt", "Clay", "Stone"},
			ClumpLayer:       "Scrub", ClumpSize: 12, ClumpThreshold: 0.72,
			Vegetation: []VegetationData{
				{Name: "Wheat", Probability: 0.02, ClumpSize: 8, ClumpThreshold: 0.6},
				{Name: "Bush", Probability: 0.01, ClumpSize: 16, ClumpThreshold: 0.5},
			},
			Fauna: []FaunaData{{Name: "Deer", Probability: 0.002}},
		},
		BiomeData{
			ID: BiomeForest, Name: "Forest",
			GrassLayer: "Grass", SoilLayer: "Dirt", ShoreLayer: "Sand",
			SubsurfaceLayers: []string{"Dirt", "Clay", "Clay", "Stone"},
			Vegetation: []VegetationData{
				{Name: "Pine", Probability: 0.05, ClumpSize: 10, ClumpThreshold: 0.45},
				{Name: "Berry Bush", Probability: 0.01, ClumpSize: 6, ClumpThreshold: 0.6},
			},
			Fauna: []FaunaData{{Name: "Deer", Probability: 0.003}, {Name: "Wolf", Probability: 0.001}},
		},
		BiomeData{
			ID: BiomeDesert, Name: "Desert",
			GrassLayer: "Sand", SoilLayer: "Sand", ShoreLayer: "Sand",
			SubsurfaceLayers: []string{"Sand", "Sand", "Clay", "Stone"},
			Vegetation: []VegetationData{
				{Name: "Cactus", Probability: 0.01, ClumpSize: 20, ClumpThreshold: 0.5},
			},
			Fauna: []FaunaData{{Name: "Scorpion", Probability: 0.001}},
		},
		BiomeData{
			ID: BiomeTundra, Name: "Tundra",
			GrassLayer: "Grass", SoilLayer: "Dirt", ShoreLayer: "Dirt",
			SubsurfaceLayers: []string{"Dirt", "Stone"},
			Vegetation: []VegetationData{
				{Name: "Shrub", Probability: 0.005, ClumpSize: 8, ClumpThreshold: 0.6},
			},
			Fauna: []FaunaData{{Name: "Bear", Probability: 0.0005}},
		},
		BiomeData{
			ID: BiomeJungle, Name: "Jungle",
			GrassLayer: "Grass", SoilLayer: "Dirt", ShoreLayer: "Clay",
			SubsurfaceLayers: []string{"Dirt", "Dirt", "Dirt", "Clay", "Stone"},
			Vegetation: []VegetationData{
				{Name: "Palm", Probability: 0.08, ClumpSize: 6, ClumpThreshold: 0.35},
				{Name: "Fern", Probability: 0.05, ClumpSize: 4, ClumpThreshold: 0.4},
			},
			Fauna: []FaunaData{{Name: "Monkey", Probability: 0.004}},
		},
		BiomeData{
			ID: BiomeMountains, Name: "Mountains",
			GrassLayer: "Grass", SoilLayer: "Dirt", ShoreLayer: "Stone",
			SubsurfaceLayers: []string{"Stone"},
			Fauna:            []FaunaData{{Name: "Goat", Probability: 0.001}},
		},
	)
}
