package worldgen

import (
	"voxel-colony/internal/noise"
	"voxel-colony/internal/overworld"
	"voxel-colony/internal/profiling"
	"voxel-colony/internal/world"
)

// SurfaceLife decides the fauna and vegetation of a committed chunk. For
// each column it finds the highest solid voxel without water above it.
// Fauna spawn on top of it with the biome's probabilities. When the voxel
// is the biome's grass, vegetation may spawn where its clump noise passes
// the threshold, and the grass under the plant becomes soil.
func (g *Generator) SurfaceLife(w *world.World, ch *world.Chunk) []SpawnRequest {
	defer profiling.Track("worldgen.SurfaceLife")()
	s := g.settings
	var spawns []SpawnRequest
	for z := int32(0); z < world.ChunkSizeZ; z++ {
		for x := int32(0); x < world.ChunkSizeX; x++ {
			top, ok := topSolid(ch, x, z)
			if !ok {
				continue
			}
			h := w.Handle(world.GlobalFrom(ch.ID, top))
			if above := h.Above(); above.IsValid() && (!above.Water().Empty() || !above.IsEmpty()) {
				continue
			}
			wx, wy, wz := int64(h.Coord.X), int64(h.Coord.Y), int64(h.Coord.Z)
			col := g.biome(g.field.Biome(g.mapPos(h.Coord.X, h.Coord.Z)))
			pos := h.Coord.Offset(0, 1, 0).Vec3()

			spawned := false
			for k, f := range col.data.Fauna {
				if noise.Hash01(wx, wy, wz, s.Seed+int64(200+k)) < f.Probability {
					spawns = append(spawns, SpawnRequest{Template: f.Name, Position: pos, Kind: SpawnFauna, Biome: col.data.ID})
					spawned = true
					break
				}
			}
			if spawned || h.TypeID() != col.grass.ID {
				continue
			}
			for k, v := range col.data.Vegetation {
				if !vegetationPasses(v, wx, wz, s.Seed+int64(300+k)) {
					continue
				}
				if noise.Hash01(wx, wy, wz, s.Seed+int64(400+k)) >= v.Probability {
					continue
				}
				spawns = append(spawns, SpawnRequest{Template: v.Name, Position: pos, Kind: SpawnVegetation, Biome: col.data.ID})
				h.SetType(col.soil)
				break
			}
		}
	}
	return spawns
}

func vegetationPasses(v overworld.VegetationData, wx, wz int64, seed int64) bool {
	if v.ClumpSize <= 0 {
		return true
	}
	f := 1 / v.ClumpSize
	return noise.Value2D(float64(wx)*f, float64(wz)*f, seed) > v.ClumpThreshold
}

func topSolid(ch *world.Chunk, x, z int32) (world.LocalVoxelCoordinate, bool) {
	for y := int32(world.ChunkSizeY - 1); y >= 0; y-- {
		if ch.IsSliceEmpty(int(y)) {
			continue
		}
		l := world.LocalVoxelCoordinate{X: x, Y: y, Z: z}
		if ch.Type(l.Index()) != 0 {
			return l, true
		}
	}
	return world.LocalVoxelCoordinate{}, false
}
