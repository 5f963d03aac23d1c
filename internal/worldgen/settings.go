package worldgen

import (
	"errors"
	"fmt"

	"voxel-colony/internal/world"
)

// CaveLevel is one horizontal band of caves centred on Y.
type CaveLevel struct {
	Y         int
	Frequency float64
}

// Settings are the generator's tuning parameters.
type Settings struct {
	Seed int64

	// SeaLevel is a normalised height in [0,1].
	SeaLevel float32
	// WorldHeight is the number of voxel layers that normalised height 1
	// maps onto.
	WorldHeight int
	// WorldToMapRatio is the number of world voxels per overworld map cell.
	WorldToMapRatio float32

	// StoneJitter is the largest distance the stone transition moves from
	// the height field.
	StoneJitter int
	// SubsurfaceLayerDepth is the thickness of each biome subsurface layer.
	SubsurfaceLayerDepth int
	ClumpFrequency       float64

	CaveLevels     []CaveLevel
	CaveHalfHeight int
	CaveThreshold  float64
	CaveOctaves    int

	// Dry cave pockets above CaveLifeMinHeight may spawn flora and fauna.
	CaveLifeMinHeight int
	CaveFloraChance   float64
	CaveFaunaChance   float64
	CaveFlora         []string
	CaveFauna         []string

	LavaFloorHeight int
	VolcanoDepth    int

	// OreEventScale is the number of spawn events per loaded chunk for an
	// ore of rarity 1.
	OreEventScale float64
}

// DefaultSettings returns the standard generator tuning.
func DefaultSettings() Settings {
	return Settings{
		Seed:                 1,
		SeaLevel:             0.2,
		WorldHeight:          world.ChunkSizeY,
		WorldToMapRatio:      4,
		StoneJitter:          3,
		SubsurfaceLayerDepth: 3,
		ClumpFrequency:       1.0 / 12.0,
		CaveLevels: []CaveLevel{
			{Y: 10, Frequency: 0.09},
			{Y: 22, Frequency: 0.07},
			{Y: 34, Frequency: 0.05},
		},
		CaveHalfHeight:    4,
		CaveThreshold:     0.72,
		CaveOctaves:       3,
		CaveLifeMinHeight: 16,
		CaveFloraChance:   0.02,
		CaveFaunaChance:   0.002,
		CaveFlora:         []string{"Mushroom", "Cave Moss"},
		CaveFauna:         []string{"Bat", "Cave Spider"},
		LavaFloorHeight:   2,
		VolcanoDepth:      6,
		OreEventScale:     2,
	}
}

var ErrInvalidSettings = errors.New("invalid generator settings")

// Validate reports the first out-of-range parameter.
func (s Settings) Validate() error {
	switch {
	case s.SeaLevel < 0 || s.SeaLevel > 1:
		return fmt.Errorf("sea level %v outside [0,1]: %w", s.SeaLevel, ErrInvalidSettings)
	case s.WorldHeight < 2:
		return fmt.Errorf("world height %d: %w", s.WorldHeight, ErrInvalidSettings)
	case s.WorldToMapRatio <= 0:
		return fmt.Errorf("world to map ratio %v: %w", s.WorldToMapRatio, ErrInvalidSettings)
	case s.SubsurfaceLayerDepth < 1:
		return fmt.Errorf("subsurface layer depth %d: %w", s.SubsurfaceLayerDepth, ErrInvalidSettings)
	case s.CaveThreshold < 0 || s.CaveThreshold > 1:
		return fmt.Errorf("cave threshold %v outside [0,1]: %w", s.CaveThreshold, ErrInvalidSettings)
	case s.LavaFloorHeight < 0:
		return fmt.Errorf("lava floor height %d: %w", s.LavaFloorHeight, ErrInvalidSettings)
	}
	return nil
}

// SeaY returns the highest voxel layer that floods with water.
func (s Settings) SeaY() int {
	return int(s.SeaLevel * float32(s.WorldHeight-1))
}
