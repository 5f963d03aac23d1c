package fluid

import (
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
)

func newWorld(t *testing.T, sx, sz int32) *world.World {
	t.Helper()
	w := world.New(registry.Default(), world.BoundsFromSize(sx, 1, sz), nil)
	for x := range sx {
		for z := range sz {
			if err := w.Chunks().Add(world.NewChunk(world.GlobalChunkCoordinate{X: x, Z: z})); err != nil {
				t.Fatal(err)
			}
		}
	}
	return w
}

// fillFloor puts bedrock at y=0 under every loaded column.
func fillFloor(w *world.World) {
	bedrock := w.Types().MustLookup(registry.BedrockName)
	for _, ch := range w.Chunks().Chunks() {
		for i := 0; i < world.SliceVolume; i++ {
			ch.SetTypeRaw(i, bedrock.ID, bedrock.StartingHealth)
		}
	}
}

func noEvaporation() Settings {
	s := DefaultSettings()
	s.EvaporationChance = 0
	return s
}

func newSim(t *testing.T, w *world.World, s Settings, seed uint64) *Simulator {
	t.Helper()
	sim, err := New(w, s, seed, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sim
}

func totalLiquid(w *world.World) (total int, maxAmount uint8) {
	for _, ch := range w.Chunks().Chunks() {
		for _, c := range ch.Data.Water {
			total += int(c.Amount)
			maxAmount = max(maxAmount, c.Amount)
		}
	}
	return total, maxAmount
}

func at(x, y, z int32) world.GlobalVoxelCoordinate { return world.GlobalVoxelCoordinate{X: x, Y: y, Z: z} }

func TestWaterFallsDownShaft(t *testing.T) {
	w := newWorld(t, 1, 1)
	fillFloor(w)
	stone := w.Types().MustLookup(registry.StoneName)
	ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{})
	// solid block with a single open shaft at (5,*,5)
	for y := int32(1); y <= 12; y++ {
		for z := int32(0); z < world.ChunkSizeZ; z++ {
			for x := int32(0); x < world.ChunkSizeX; x++ {
				if x == 5 && z == 5 {
					continue
				}
				ch.SetTypeRaw(world.LocalVoxelCoordinate{X: x, Y: y, Z: z}.Index(), stone.ID, 1)
			}
		}
	}
	w.Handle(at(5, 10, 5)).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: world.LiquidCapacity})
	sim := newSim(t, w, DefaultSettings(), 7)

	for range 10 {
		sim.Update(mgl32.Vec3{})
	}
	bottom := w.Handle(at(5, 1, 5)).Water()
	if bottom.Type != world.LiquidWater || bottom.Amount != world.LiquidCapacity {
		t.Errorf("water at y=1 = %+v, want full", bottom)
	}
	if total, _ := totalLiquid(w); total != int(world.LiquidCapacity) {
		t.Errorf("total liquid %d, want %d", total, world.LiquidCapacity)
	}
	if len(sim.DrainSplashes()) == 0 {
		t.Errorf("falling water should leave splashes")
	}
	if len(sim.DrainSplashes()) != 0 {
		t.Errorf("splash queue should be empty after drain")
	}
}

func TestWaterFallsToFloorInOpenColumn(t *testing.T) {
	w := newWorld(t, 1, 1)
	fillFloor(w)
	w.Handle(at(5, 10, 5)).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: world.LiquidCapacity})
	sim := newSim(t, w, noEvaporation(), 3)
	for range 10 {
		sim.Update(mgl32.Vec3{})
	}
	ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{})
	for y := 2; y < world.ChunkSizeY; y++ {
		if !ch.IsSliceDry(y) {
			t.Errorf("slice %d still holds liquid", y)
		}
	}
	if total, _ := totalLiquid(w); total != int(world.LiquidCapacity) {
		t.Errorf("total liquid %d, want %d", total, world.LiquidCapacity)
	}
}

func TestSpreadConservesLiquid(t *testing.T) {
	w := newWorld(t, 1, 1)
	fillFloor(w)
	rng := rand.New(rand.NewPCG(11, 12))
	for range 40 {
		g := at(rng.Int32N(world.ChunkSizeX), 1, rng.Int32N(world.ChunkSizeZ))
		w.Handle(g).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: uint8(1 + rng.IntN(8))})
	}
	before, _ := totalLiquid(w)
	sim := newSim(t, w, noEvaporation(), 5)
	ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{})
	for range 5 {
		sim.UpdateChunk(ch)
		if after, _ := totalLiquid(w); after != before {
			t.Fatalf("liquid total changed from %d to %d", before, after)
		}
	}
}

func TestCapacityBoundUnderFuzzing(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		w := newWorld(t, 2, 1)
		fillFloor(w)
		stone := w.Types().MustLookup(registry.StoneName)
		rng := rand.New(rand.NewPCG(seed, 99))
		for range 300 {
			g := at(rng.Int32N(2*world.ChunkSizeX), 1+rng.Int32N(12), rng.Int32N(world.ChunkSizeZ))
			h := w.Handle(g)
			switch rng.IntN(5) {
			case 0:
				h.SetType(stone)
			case 1:
				h.SetLiquid(world.WaterCell{Type: world.LiquidLava, Amount: uint8(1 + rng.IntN(8))})
			default:
				h.SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: uint8(1 + rng.IntN(8))})
			}
		}
		s := DefaultSettings()
		s.EvaporationChance = 0.2
		sim := newSim(t, w, s, seed)
		for range 30 {
			sim.Update(mgl32.Vec3{float32(rng.IntN(32)), 0, 0})
			for _, ch := range w.Chunks().Chunks() {
				for i, c := range ch.Data.Water {
					if c.Amount > world.LiquidCapacity {
						t.Fatalf("seed %d: cell %d over capacity: %d", seed, i, c.Amount)
					}
					if (c.Amount == 0) != (c.Type == world.LiquidNone) {
						t.Fatalf("seed %d: cell %d breaks type/amount invariant: %+v", seed, i, c)
					}
					if !c.Empty() && ch.Type(i) != registry.EmptyID {
						t.Fatalf("seed %d: solid voxel %d holds liquid", seed, i)
					}
				}
				for y := range world.ChunkSizeY {
					var n int32
					for i := y * world.SliceVolume; i < (y+1)*world.SliceVolume; i++ {
						if !ch.Data.Water[i].Empty() {
							n++
						}
					}
					if n != ch.Data.LiquidPresentInSlice[y] {
						t.Fatalf("seed %d: slice %d liquid counter %d, actual %d", seed, y, ch.Data.LiquidPresentInSlice[y], n)
					}
				}
			}
		}
	}
}

func TestLavaWaterReactionEitherDirection(t *testing.T) {
	for _, dir := range []struct {
		name     string
		from, to world.GlobalVoxelCoordinate
		moving   world.LiquidType
	}{
		{"water into lava", at(4, 1, 4), at(5, 1, 4), world.LiquidWater},
		{"lava into water", at(5, 1, 4), at(4, 1, 4), world.LiquidLava},
	} {
		w := newWorld(t, 1, 1)
		fillFloor(w)
		w.Handle(at(4, 1, 4)).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: 6})
		w.Handle(at(5, 1, 4)).SetLiquid(world.WaterCell{Type: world.LiquidLava, Amount: 6})
		sim := newSim(t, w, noEvaporation(), 1)
		sim.transfers = append(sim.transfers, Transfer{From: dir.from, To: dir.to, Liquid: dir.moving, Amount: 2, Mixing: true})

		if n := sim.ResolveTransfers(); n != 1 {
			t.Errorf("%s: %d reactions, want 1", dir.name, n)
		}
		dst := w.Handle(dir.to)
		if dst.TypeID() != w.Types().MustLookup(registry.StoneName).ID {
			t.Errorf("%s: destination should be stone", dir.name)
		}
		if !dst.Water().Empty() {
			t.Errorf("%s: destination liquid should be cleared", dir.name)
		}
		if !dst.Chunk().NeedsRebuild() {
			t.Errorf("%s: chunk should need a mesh rebuild", dir.name)
		}
		if sim.PendingTransfers() != 0 {
			t.Errorf("%s: transfer log should be drained", dir.name)
		}
	}
}

func TestWaterFallingOntoLavaMakesStone(t *testing.T) {
	w := newWorld(t, 1, 1)
	fillFloor(w)
	w.Handle(at(6, 1, 6)).SetLiquid(world.WaterCell{Type: world.LiquidLava, Amount: 8})
	w.Handle(at(6, 2, 6)).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: 8})
	sim := newSim(t, w, noEvaporation(), 2)
	sim.Update(mgl32.Vec3{})
	if got := w.Handle(at(6, 1, 6)).TypeID(); got != w.Types().MustLookup(registry.StoneName).ID {
		t.Errorf("lava under falling water should turn to stone, got type %d", got)
	}
}

// Water spreads sideways into lava that has an open drop below it. Whatever
// order the cells run in, liquid carried into the other liquid must end as
// stone, and every unit that left the simulation is accounted for by a
// reaction.
func TestReactionWithMovingDestination(t *testing.T) {
	reactions := 0
	for seed := uint64(1); seed <= 200; seed++ {
		w := newWorld(t, 1, 1)
		fillFloor(w)
		st := w.Types().MustLookup(registry.StoneName)
		for x := int32(0); x < world.ChunkSizeX; x++ {
			for z := int32(0); z < world.ChunkSizeZ; z++ {
				if x != 6 || z != 5 {
					w.Handle(at(x, 1, z)).SetType(st)
				}
			}
		}
		w.Handle(at(5, 2, 5)).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: 8})
		w.Handle(at(6, 2, 5)).SetLiquid(world.WaterCell{Type: world.LiquidLava, Amount: 4})
		before, _ := totalLiquid(w)

		sim := newSim(t, w, noEvaporation(), seed)
		ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{})
		sim.UpdateChunk(ch)

		consumed := 0
		destinations := map[world.GlobalVoxelCoordinate]uint8{}
		for _, tr := range sim.transfers {
			if tr.Mixing {
				consumed += int(tr.Amount)
				destinations[tr.To] = w.Handle(tr.To).Water().Amount
			}
		}
		for _, amount := range destinations {
			consumed += int(amount)
		}
		sim.ResolveTransfers()

		for pos := range destinations {
			h := w.Handle(pos)
			if h.TypeID() != st.ID || !h.Water().Empty() {
				t.Errorf("seed %d: mixing destination %v is type %d with %+v, want dry stone", seed, pos, h.TypeID(), h.Water())
			}
		}
		after, _ := totalLiquid(w)
		if after+consumed != before {
			t.Errorf("seed %d: liquid %d after, %d consumed by reactions, %d before", seed, after, consumed, before)
		}
		reactions += len(destinations)
	}
	if reactions == 0 {
		t.Fatalf("no seed produced a reaction")
	}
}

func TestLavaEvaporatesToStone(t *testing.T) {
	w := newWorld(t, 1, 1)
	fillFloor(w)
	w.Handle(at(3, 1, 3)).SetLiquid(world.WaterCell{Type: world.LiquidLava, Amount: 1})
	s := DefaultSettings()
	s.EvaporationChance = 1
	sim := newSim(t, w, s, 4)
	sim.Update(mgl32.Vec3{})
	h := w.Handle(at(3, 1, 3))
	if !h.Water().Empty() || h.TypeID() != w.Types().MustLookup(registry.StoneName).ID {
		t.Errorf("evaporated lava should leave stone, got type %d water %+v", h.TypeID(), h.Water())
	}
}

func TestFirstPassFlagsLiquidRebuild(t *testing.T) {
	w := newWorld(t, 1, 1)
	fillFloor(w)
	ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{})
	sim := newSim(t, w, noEvaporation(), 1)
	sim.UpdateChunk(ch)
	if !ch.NeedsLiquidRebuild() {
		t.Fatalf("first pass should request a liquid mesh")
	}
	ch.SetNeedsLiquidRebuild(false)
	sim.UpdateChunk(ch)
	if ch.NeedsLiquidRebuild() {
		t.Errorf("static dry chunk should not request another liquid mesh")
	}
}
