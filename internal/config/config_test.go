package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxel-colony/internal/fluid"
	"voxel-colony/internal/lifecycle"
	"voxel-colony/internal/world"
	"voxel-colony/internal/worldgen"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	doc := `
world:
  size_x: 4
  seed: 99
generation:
  sea_level: 0.35
  cave_levels:
    - {y: 12, frequency: 0.1}
fluid:
  tick_interval: 50ms
workers:
  max_rebuild_batch: 8
`
	path := filepath.Join(t.TempDir(), "sim.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if s.World.SizeX != 4 || s.World.SizeZ != def.World.SizeZ || s.World.Seed != 99 {
		t.Errorf("world %+v", s.World)
	}
	if s.Fluid.TickInterval != 50*time.Millisecond || s.Fluid.WaterSpreadRate != def.Fluid.WaterSpreadRate {
		t.Errorf("fluid %+v", s.Fluid)
	}

	g := s.WorldgenSettings()
	if g.Seed != 99 || g.SeaLevel != 0.35 || len(g.CaveLevels) != 1 || g.CaveLevels[0] != (worldgen.CaveLevel{Y: 12, Frequency: 0.1}) {
		t.Errorf("worldgen settings %+v", g)
	}
	if g.WorldHeight != world.ChunkSizeY {
		t.Errorf("world height %d", g.WorldHeight)
	}
	l := s.LifecycleSettings()
	if l.FluidTick != 50*time.Millisecond || l.MaxRebuildBatch != 8 {
		t.Errorf("lifecycle settings %+v", l)
	}
	if b := s.Bounds(); b.Max != (world.GlobalChunkCoordinate{X: 3, Y: 0, Z: def.World.SizeZ - 1}) {
		t.Errorf("bounds %+v", b)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown key", "world:\n  colour: red\n", nil},
		{"zero size", "world:\n  size_y: 0\n", ErrInvalid},
		{"sea level", "generation:\n  sea_level: 2\n", worldgen.ErrInvalidSettings},
		{"spread rate", "fluid:\n  water_spread_rate: 1.5\n", fluid.ErrInvalidSettings},
		{"batch", "workers:\n  max_rebuild_batch: 0\n", lifecycle.ErrInvalidSettings},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("error %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	s, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.World != Default().World {
		t.Errorf("empty document changed defaults: %+v", s.World)
	}
}
