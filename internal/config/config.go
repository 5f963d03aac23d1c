// Package config loads the simulation settings from YAML and converts them
// into the settings of each component.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voxel-colony/internal/fluid"
	"voxel-colony/internal/lifecycle"
	"voxel-colony/internal/world"
	"voxel-colony/internal/worldgen"
)

var ErrInvalid = errors.New("invalid configuration")

type Settings struct {
	World      WorldSettings      `yaml:"world"`
	Generation GenerationSettings `yaml:"generation"`
	Fluid      FluidSettings      `yaml:"fluid"`
	Workers    WorkerSettings     `yaml:"workers"`
	Storage    StorageSettings    `yaml:"storage"`
}

// WorldSettings sizes the world in chunks.
type WorldSettings struct {
	SizeX int32 `yaml:"size_x"`
	SizeY int32 `yaml:"size_y"`
	SizeZ int32 `yaml:"size_z"`
	Seed  int64 `yaml:"seed"`
	// VoxelTypes optionally names a YAML voxel type table replacing the
	// built-in one.
	VoxelTypes string `yaml:"voxel_types"`
	// OverworldImage optionally names a greyscale height map used instead
	// of the noise overworld.
	OverworldImage string `yaml:"overworld_image"`
}

type CaveLevel struct {
	Y         int     `yaml:"y"`
	Frequency float64 `yaml:"frequency"`
}

type GenerationSettings struct {
	SeaLevel        float32     `yaml:"sea_level"`
	WorldToMapRatio float32     `yaml:"world_to_map_ratio"`
	StoneJitter     int         `yaml:"stone_jitter"`
	CaveLevels      []CaveLevel `yaml:"cave_levels"`
	CaveThreshold   float64     `yaml:"cave_threshold"`
	CaveFloraChance float64     `yaml:"cave_flora_chance"`
	CaveFaunaChance float64     `yaml:"cave_fauna_chance"`
	LavaFloorHeight int         `yaml:"lava_floor_height"`
	VolcanoDepth    int         `yaml:"volcano_depth"`
	OreEventScale   float64     `yaml:"ore_event_scale"`
}

type FluidSettings struct {
	TickInterval         time.Duration `yaml:"tick_interval"`
	EvaporationThreshold uint8         `yaml:"evaporation_threshold"`
	EvaporationChance    float64       `yaml:"evaporation_chance"`
	WaterSpreadRate      float64       `yaml:"water_spread_rate"`
	LavaSpreadMin        float64       `yaml:"lava_spread_min"`
	LavaSpreadMax        float64       `yaml:"lava_spread_max"`
	ReactionType         string        `yaml:"reaction_type"`
	SoundRetrigger       time.Duration `yaml:"sound_retrigger"`
}

type WorkerSettings struct {
	RebuildParallelism int           `yaml:"rebuild_parallelism"`
	MaxRebuildBatch    int           `yaml:"max_rebuild_batch"`
	RevealLimit        int           `yaml:"reveal_limit"`
	MaxFluidBacklog    time.Duration `yaml:"max_fluid_backlog"`
}

type StorageSettings struct {
	SnapshotPath string `yaml:"snapshot_path"`
	ChunkDBPath  string `yaml:"chunk_db_path"`
}

// Default returns a complete configuration built from the component
// defaults.
func Default() Settings {
	g := worldgen.DefaultSettings()
	f := fluid.DefaultSettings()
	l := lifecycle.DefaultSettings()
	s := Settings{
		World: WorldSettings{SizeX: 8, SizeY: 1, SizeZ: 8, Seed: g.Seed},
		Generation: GenerationSettings{
			SeaLevel:        g.SeaLevel,
			WorldToMapRatio: g.WorldToMapRatio,
			StoneJitter:     g.StoneJitter,
			CaveThreshold:   g.CaveThreshold,
			CaveFloraChance: g.CaveFloraChance,
			CaveFaunaChance: g.CaveFaunaChance,
			LavaFloorHeight: g.LavaFloorHeight,
			VolcanoDepth:    g.VolcanoDepth,
			OreEventScale:   g.OreEventScale,
		},
		Fluid: FluidSettings{
			TickInterval:         f.TickInterval,
			EvaporationThreshold: f.EvaporationThreshold,
			EvaporationChance:    f.EvaporationChance,
			WaterSpreadRate:      f.WaterSpreadRate,
			LavaSpreadMin:        f.LavaSpreadMin,
			LavaSpreadMax:        f.LavaSpreadMax,
			ReactionType:         f.ReactionType,
			SoundRetrigger:       f.SoundRetrigger,
		},
		Workers: WorkerSettings{
			RebuildParallelism: l.RebuildParallelism,
			MaxRebuildBatch:    l.MaxRebuildBatch,
			RevealLimit:        l.RevealLimit,
			MaxFluidBacklog:    l.MaxFluidBacklog,
		},
		Storage: StorageSettings{SnapshotPath: "saves/world.sav"},
	}
	for _, c := range g.CaveLevels {
		s.Generation.CaveLevels = append(s.Generation.CaveLevels, CaveLevel{Y: c.Y, Frequency: c.Frequency})
	}
	return s
}

// Load overlays the YAML file at path on the defaults and validates the
// result. Unknown keys are rejected.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	s, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse is Load for an already opened document.
func Parse(r io.Reader) (Settings, error) {
	s := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the world size and every component's settings.
func (s Settings) Validate() error {
	if s.World.SizeX < 1 || s.World.SizeY < 1 || s.World.SizeZ < 1 {
		return fmt.Errorf("world size %dx%dx%d: %w", s.World.SizeX, s.World.SizeY, s.World.SizeZ, ErrInvalid)
	}
	if err := s.WorldgenSettings().Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := s.FluidSettings().Validate(); err != nil {
		return fmt.Errorf("fluid: %w", err)
	}
	if err := s.LifecycleSettings().Validate(); err != nil {
		return fmt.Errorf("workers: %w", err)
	}
	return nil
}

// Bounds returns the world bounds in chunks, starting at the origin.
func (s Settings) Bounds() world.Bounds {
	return world.BoundsFromSize(s.World.SizeX, s.World.SizeY, s.World.SizeZ)
}

func (s Settings) WorldgenSettings() worldgen.Settings {
	g := worldgen.DefaultSettings()
	gen := s.Generation
	g.Seed = s.World.Seed
	g.WorldHeight = int(s.World.SizeY) * world.ChunkSizeY
	g.SeaLevel = gen.SeaLevel
	g.WorldToMapRatio = gen.WorldToMapRatio
	g.StoneJitter = gen.StoneJitter
	g.CaveThreshold = gen.CaveThreshold
	g.CaveFloraChance = gen.CaveFloraChance
	g.CaveFaunaChance = gen.CaveFaunaChance
	g.LavaFloorHeight = gen.LavaFloorHeight
	g.VolcanoDepth = gen.VolcanoDepth
	g.OreEventScale = gen.OreEventScale
	g.CaveLevels = g.CaveLevels[:0:0]
	for _, c := range gen.CaveLevels {
		g.CaveLevels = append(g.CaveLevels, worldgen.CaveLevel{Y: c.Y, Frequency: c.Frequency})
	}
	return g
}

func (s Settings) FluidSettings() fluid.Settings {
	f := s.Fluid
	return fluid.Settings{
		TickInterval:         f.TickInterval,
		EvaporationThreshold: f.EvaporationThreshold,
		EvaporationChance:    f.EvaporationChance,
		WaterSpreadRate:      f.WaterSpreadRate,
		LavaSpreadMin:        f.LavaSpreadMin,
		LavaSpreadMax:        f.LavaSpreadMax,
		ReactionType:         f.ReactionType,
		SoundRetrigger:       f.SoundRetrigger,
	}
}

func (s Settings) LifecycleSettings() lifecycle.Settings {
	w := s.Workers
	return lifecycle.Settings{
		RebuildParallelism: w.RebuildParallelism,
		MaxRebuildBatch:    w.MaxRebuildBatch,
		RevealLimit:        w.RevealLimit,
		FluidTick:          s.Fluid.TickInterval,
		MaxFluidBacklog:    w.MaxFluidBacklog,
	}
}
