package worldgen

import (
	"crypto/sha256"
	"errors"
	"math/rand/v2"
	"testing"

	"voxel-colony/internal/overworld"
	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
)

func hashChunk(ch *world.Chunk) [32]byte {
	h := sha256.New()
	h.Write(ch.Data.Types[:])
	h.Write(ch.Data.Health[:])
	for _, w := range ch.Data.Water {
		h.Write([]byte{byte(w.Type), w.Amount})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func flatSettings() Settings {
	s := DefaultSettings()
	s.CaveLevels = nil
	s.StoneJitter = 0
	return s
}

func newGenerator(t *testing.T, s Settings, field overworld.Field) *Generator {
	t.Helper()
	g, err := New(s, registry.Default(), overworld.DefaultBiomes(), field, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestGenerateChunkDeterministic(t *testing.T) {
	s := DefaultSettings()
	s.Seed = 1234
	field := overworld.NewNoiseField(1234, s.SeaLevel)
	for _, id := range []world.GlobalChunkCoordinate{{X: 0, Y: 0, Z: 0}, {X: -3, Y: 0, Z: 5}, {X: 7, Y: 0, Z: -2}} {
		a := newGenerator(t, s, field).GenerateChunk(id)
		b := newGenerator(t, s, field).GenerateChunk(id)
		if hashChunk(a.Chunk) != hashChunk(b.Chunk) {
			t.Errorf("chunk %v differs between runs", id)
		}
		if len(a.Spawns) != len(b.Spawns) {
			t.Errorf("chunk %v spawn count differs: %d vs %d", id, len(a.Spawns), len(b.Spawns))
		}
	}
}

func TestGenerateChunkSeedMatters(t *testing.T) {
	s := DefaultSettings()
	a := newGenerator(t, s, overworld.NewNoiseField(1, s.SeaLevel)).GenerateChunk(world.GlobalChunkCoordinate{})
	b := newGenerator(t, s, overworld.NewNoiseField(2, s.SeaLevel)).GenerateChunk(world.GlobalChunkCoordinate{})
	if hashChunk(a.Chunk) == hashChunk(b.Chunk) {
		t.Errorf("different seeds produced identical chunks")
	}
}

func TestFlatColumnAboveSeaLevel(t *testing.T) {
	s := flatSettings()
	s.StoneJitter = 3
	g := newGenerator(t, s, overworld.FlatField{BiomeID: overworld.BiomeGrassland, Height: 0.5})
	ch := g.GenerateChunk(world.GlobalChunkCoordinate{}).Chunk
	types := registry.Default()
	stone := g.StoneHeight(0, 0)
	if stone <= 1 {
		t.Fatalf("stone height %d too low for this test", stone)
	}

	at := func(y int) uint8 { return ch.Type(world.LocalVoxelCoordinate{X: 0, Y: int32(y), Z: 0}.Index()) }
	if at(0) != types.MustLookup(registry.BedrockName).ID {
		t.Errorf("y=0 should be bedrock")
	}
	for y := 1; y < stone; y++ {
		if at(y) == registry.EmptyID {
			t.Errorf("y=%d below stone height %d is air", y, stone)
		}
	}
	top := types.Get(at(stone))
	if !top.IsSurface && !top.IsSoil {
		t.Errorf("surface voxel %q should be grass or soil", top.Name)
	}
	for y := stone + 1; y < world.ChunkSizeY; y++ {
		if at(y) != registry.EmptyID {
			t.Errorf("y=%d above surface should be air", y)
		}
	}
	if ch.Data.Health[world.LocalVoxelCoordinate{}.Index()] != types.MustLookup(registry.BedrockName).StartingHealth {
		t.Errorf("bedrock health not set")
	}
}

func TestFlatColumnBelowSeaLevel(t *testing.T) {
	s := flatSettings()
	g := newGenerator(t, s, overworld.FlatField{BiomeID: overworld.BiomeGrassland, Height: 0.1})
	ch := g.GenerateChunk(world.GlobalChunkCoordinate{}).Chunk
	stone := g.StoneHeight(0, 0)
	shore := registry.Default().MustLookup(overworld.DefaultBiomes().Get(overworld.BiomeGrassland).ShoreLayer)

	top := world.LocalVoxelCoordinate{X: 0, Y: int32(stone), Z: 0}.Index()
	if ch.Type(top) != shore.ID {
		t.Errorf("submerged surface should be %q", shore.Name)
	}
	for y := stone + 1; y <= s.SeaY(); y++ {
		w := ch.Data.Water[world.LocalVoxelCoordinate{X: 0, Y: int32(y), Z: 0}.Index()]
		if w.Type != world.LiquidWater || w.Amount != world.LiquidCapacity {
			t.Errorf("y=%d below sea level should be full of water, got %+v", y, w)
		}
	}
	above := ch.Data.Water[world.LocalVoxelCoordinate{X: 0, Y: int32(s.SeaY() + 1), Z: 0}.Index()]
	if !above.Empty() {
		t.Errorf("water above sea level: %+v", above)
	}
}

func TestLavaFloorFillsDryBottom(t *testing.T) {
	s := flatSettings()
	s.SeaLevel = 0
	g := newGenerator(t, s, overworld.FlatField{BiomeID: overworld.BiomeGrassland, Height: 0})
	ch := g.GenerateChunk(world.GlobalChunkCoordinate{}).Chunk
	w := ch.Data.Water[world.LocalVoxelCoordinate{X: 3, Y: 1, Z: 3}.Index()]
	if w.Type != world.LiquidLava || w.Amount != world.LiquidCapacity {
		t.Errorf("y=1 should be lava, got %+v", w)
	}
	if w := ch.Data.Water[world.LocalVoxelCoordinate{X: 3, Y: 2, Z: 3}.Index()]; !w.Empty() {
		t.Errorf("y=2 is above the lava floor, got %+v", w)
	}
}

func TestVolcanoColumnHoldsLava(t *testing.T) {
	s := flatSettings()
	g := newGenerator(t, s, overworld.FlatField{BiomeID: overworld.BiomeMountains, Height: 0.6, WaterType: overworld.WaterVolcano})
	ch := g.GenerateChunk(world.GlobalChunkCoordinate{}).Chunk
	top := world.LocalVoxelCoordinate{X: 8, Y: int32(g.StoneHeight(8, 8)), Z: 8}.Index()
	if ch.Type(top) != registry.EmptyID || ch.Data.Water[top].Type != world.LiquidLava {
		t.Errorf("volcano vent should hold lava, got type %d water %+v", ch.Type(top), ch.Data.Water[top])
	}
}

func TestCavesCarveAndStaySealed(t *testing.T) {
	s := DefaultSettings()
	s.CaveThreshold = 0.3
	g := newGenerator(t, s, overworld.FlatField{BiomeID: overworld.BiomeMountains, Height: 0.9})
	flat := newGenerator(t, func() Settings { f := s; f.CaveLevels = nil; return f }(), overworld.FlatField{BiomeID: overworld.BiomeMountains, Height: 0.9})
	withCaves := g.GenerateChunk(world.GlobalChunkCoordinate{}).Chunk
	without := flat.GenerateChunk(world.GlobalChunkCoordinate{}).Chunk

	carved := 0
	for i := range world.ChunkVolume {
		if without.Type(i) != 0 && withCaves.Type(i) == 0 {
			carved++
		}
	}
	if carved == 0 {
		t.Fatalf("expected caves to carve voxels")
	}
	for y := range world.ChunkSizeY {
		if withCaves.Data.VoxelsPresentInSlice[y] > without.Data.VoxelsPresentInSlice[y] {
			t.Errorf("slice %d gained voxels from cave carving", y)
		}
	}
}

func TestNewRejectsUnknownMaterial(t *testing.T) {
	biomes := overworld.NewBiomeLibrary(overworld.BiomeData{
		ID: overworld.BiomeGrassland, GrassLayer: "Moss", SoilLayer: "Dirt", ShoreLayer: "Sand",
	})
	_, err := New(DefaultSettings(), registry.Default(), biomes, overworld.FlatField{}, nil)
	if !errors.Is(err, registry.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.SeaLevel = 2
	if !errors.Is(s.Validate(), ErrInvalidSettings) {
		t.Errorf("sea level 2 should be rejected")
	}
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("default settings invalid: %v", err)
	}
}

func newGeneratedWorld(t *testing.T, g *Generator, sx, sz int32) *world.World {
	t.Helper()
	w := world.New(registry.Default(), world.BoundsFromSize(sx, 1, sz), nil)
	for x := range sx {
		for z := range sz {
			res := g.GenerateChunk(world.GlobalChunkCoordinate{X: x, Z: z})
			if err := w.Chunks().Add(res.Chunk); err != nil {
				t.Fatal(err)
			}
		}
	}
	return w
}

func TestSurfaceLifeSpawnsVegetationOnGrass(t *testing.T) {
	biomes := overworld.NewBiomeLibrary(overworld.BiomeData{
		ID: overworld.BiomeGrassland, Name: "Meadow",
		GrassLayer: registry.GrassName, SoilLayer: registry.DirtName, ShoreLayer: registry.SandName,
		SubsurfaceLayers: []string{registry.StoneName},
		Vegetation:       []overworld.VegetationData{{Name: "Tree", Probability: 1}},
	})
	g, err := New(flatSettings(), registry.Default(), biomes, overworld.FlatField{Height: 0.5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := newGeneratedWorld(t, g, 1, 1)
	ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{})

	spawns := g.SurfaceLife(w, ch)
	if len(spawns) != world.SliceVolume {
		t.Fatalf("expected one plant per column, got %d", len(spawns))
	}
	dirt := w.Types().MustLookup(registry.DirtName)
	stone := g.StoneHeight(0, 0)
	for _, sp := range spawns {
		if sp.Template != "Tree" || sp.Kind != SpawnVegetation {
			t.Fatalf("unexpected spawn %+v", sp)
		}
		under := world.FromVec3(sp.Position).Offset(0, -1, 0)
		if w.Handle(under).TypeID() != dirt.ID {
			t.Errorf("grass under plant at %v should become soil", under)
		}
		if int(under.Y) != stone {
			t.Errorf("plant at y=%d, surface at %d", under.Y, stone)
		}
	}
}

func TestSeedOresRespectsBounds(t *testing.T) {
	g := newGenerator(t, flatSettings(), overworld.FlatField{BiomeID: overworld.BiomeGrassland, Height: 0.8})
	w := newGeneratedWorld(t, g, 2, 2)
	placed := g.SeedOres(w, rand.New(rand.NewPCG(1, 2)))
	if placed == 0 {
		t.Fatalf("expected ore voxels")
	}
	found := 0
	for _, ch := range w.Chunks().Chunks() {
		for i := range world.ChunkVolume {
			t0 := w.Types().Get(ch.Type(i))
			if !t0.SpawnsOre() {
				continue
			}
			found++
			y := int(ch.Origin.Y) + int(world.CoordsAt(i).Y)
			if y < t0.MinSpawnHeight || y > t0.MaxSpawnHeight {
				t.Errorf("%s at y=%d outside [%d,%d]", t0.Name, y, t0.MinSpawnHeight, t0.MaxSpawnHeight)
			}
		}
	}
	if found != placed {
		t.Errorf("found %d ore voxels, SeedOres reported %d", found, placed)
	}
}
