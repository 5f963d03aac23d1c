package meshing

import (
	"testing"

	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
)

func newWorld(t testing.TB, sx int32) *world.World {
	t.Helper()
	w := world.New(registry.Default(), world.BoundsFromSize(sx, 1, 1), nil)
	for x := range sx {
		if err := w.Chunks().Add(world.NewChunk(world.GlobalChunkCoordinate{X: x})); err != nil {
			t.Fatalf("add chunk: %v", err)
		}
	}
	return w
}

func place(w *world.World, name string, coords ...world.GlobalVoxelCoordinate) {
	t := w.Types().MustLookup(name)
	for _, g := range coords {
		w.Handle(g).SetType(t)
	}
}

func chunkAt(w *world.World, x int32) *world.Chunk {
	ch, _ := w.Chunks().Get(world.GlobalChunkCoordinate{X: x})
	return ch
}

func TestSingleVoxelMesh(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 1, Y: 1, Z: 1})
	m := BuildChunkMesh(w, chunkAt(w, 0))
	if m.Quads() != 6 || len(m.Vertices) != 6*VerticesPerQuad {
		t.Fatalf("single voxel: got %d quads, %d vertices", m.Quads(), len(m.Vertices))
	}
	stone := w.Types().MustLookup(registry.StoneName)
	for _, id := range m.Materials {
		if id != stone.ID {
			t.Errorf("material %d, want %d", id, stone.ID)
		}
	}
}

func TestTwoVoxelsSeparated(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 1, Y: 1, Z: 1}, world.GlobalVoxelCoordinate{X: 3, Y: 1, Z: 1})
	if got := BuildChunkMesh(w, chunkAt(w, 0)).Quads(); got != 12 {
		t.Fatalf("two separated voxels: got %d quads, want 12", got)
	}
}

func TestTwoVoxelsTouchingMerge(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 1, Y: 1, Z: 1}, world.GlobalVoxelCoordinate{X: 2, Y: 1, Z: 1})
	// The union is a 2x1x1 cuboid.
	if got := BuildChunkMesh(w, chunkAt(w, 0)).Quads(); got != 6 {
		t.Fatalf("touching voxels: got %d quads, want 6", got)
	}
}

func TestDifferentLightDoesNotMerge(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 1, Y: 1, Z: 1}, world.GlobalVoxelCoordinate{X: 2, Y: 1, Z: 1})
	ch := chunkAt(w, 0)
	ch.Data.Light[world.LocalVoxelCoordinate{X: 2, Y: 1, Z: 1}.Index()] = 200
	if got := BuildChunkMesh(w, ch).Quads(); got != 10 {
		t.Fatalf("differently lit voxels: got %d quads, want 10", got)
	}
}

func TestCrossChunkFaceCulling(t *testing.T) {
	w := newWorld(t, 2)
	place(w, registry.StoneName,
		world.GlobalVoxelCoordinate{X: world.ChunkSizeX - 1, Y: 1, Z: 1},
		world.GlobalVoxelCoordinate{X: world.ChunkSizeX, Y: 1, Z: 1})
	if got := BuildChunkMesh(w, chunkAt(w, 0)).Quads(); got != 5 {
		t.Fatalf("cross-chunk culling: got %d quads, want 5", got)
	}
}

func TestVertexPositionsStayInChunk(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 15, Y: 63, Z: 15})
	for _, v := range BuildChunkMesh(w, chunkAt(w, 0)).Vertices {
		x, y, z, face, _ := Unpack(v)
		if x < 15 || x > 16 || y < 63 || y > 64 || z < 15 || z > 16 {
			t.Fatalf("vertex (%d,%d,%d) outside the voxel", x, y, z)
		}
		if face > FaceSouth {
			t.Fatalf("bad face %d", face)
		}
	}
}

func TestLiquidMesh(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 4, Y: 0, Z: 4})
	w.Handle(world.GlobalVoxelCoordinate{X: 4, Y: 1, Z: 4}).SetLiquid(world.WaterCell{Type: world.LiquidWater, Amount: 4})
	m := BuildLiquidMesh(w, chunkAt(w, 0))
	// Top and four sides; the stone floor hides the bottom.
	if m.Quads() != 5 {
		t.Fatalf("liquid quads: got %d, want 5", m.Quads())
	}
	for _, v := range m.Vertices {
		if _, _, _, _, level := Unpack(v); level != 4 {
			t.Fatalf("liquid level %d, want 4", level)
		}
	}
	for _, l := range m.Liquids {
		if l != world.LiquidWater {
			t.Errorf("liquid %v, want water", l)
		}
	}
}

func TestDryChunkHasNoLiquidMesh(t *testing.T) {
	w := newWorld(t, 1)
	place(w, registry.StoneName, world.GlobalVoxelCoordinate{X: 1, Y: 1, Z: 1})
	if got := BuildLiquidMesh(w, chunkAt(w, 0)).Quads(); got != 0 {
		t.Fatalf("dry chunk liquid quads: %d", got)
	}
}

func BenchmarkBuildChunkMeshFullSurface(b *testing.B) {
	w := newWorld(b, 1)
	ch := chunkAt(w, 0)
	stone := w.Types().MustLookup(registry.StoneName)
	for x := range int32(world.ChunkSizeX) {
		for z := range int32(world.ChunkSizeZ) {
			w.Handle(world.GlobalVoxelCoordinate{X: x, Y: 10, Z: z}).RawSetType(stone)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = BuildChunkMesh(w, ch)
	}
}
