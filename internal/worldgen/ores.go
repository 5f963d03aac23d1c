package worldgen

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxel-colony/internal/profiling"
	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
)

// SeedOres places every ore type across the loaded world once the initial
// chunks exist. The number of spawn events of a type grows with the loaded
// volume and shrinks with its rarity. Vein types walk a wandering path;
// cluster types stamp a randomly oriented ellipsoid. It returns the number
// of voxels converted.
func (g *Generator) SeedOres(w *world.World, rng *rand.Rand) int {
	defer profiling.Track("worldgen.SeedOres")()
	loaded := w.Chunks().LoadedBounds()
	chunks := w.Chunks().Len()
	if chunks == 0 {
		return 0
	}
	lo := loaded.Min.Origin()
	hi := world.GlobalFrom(loaded.Max, world.LocalVoxelCoordinate{X: world.MaskX, Y: world.MaskY, Z: world.MaskZ})

	placed := 0
	for _, ore := range g.types.OreTypes() {
		rarity := ore.Rarity
		if rarity <= 0 {
			rarity = 1
		}
		events := int(g.settings.OreEventScale * float64(chunks) / rarity * (0.75 + 0.25*rng.Float64()))
		for range events {
			start := world.GlobalVoxelCoordinate{
				X: lo.X + rng.Int32N(hi.X-lo.X+1),
				Y: int32(ore.MinSpawnHeight) + rng.Int32N(int32(oreSpan(ore))),
				Z: lo.Z + rng.Int32N(hi.Z-lo.Z+1),
			}
			if ore.SpawnVeins {
				placed += g.placeVein(w, ore, start, rng)
			}
			if ore.SpawnClusters {
				placed += g.placeCluster(w, ore, start, rng)
			}
		}
	}
	g.log.Debug("ores seeded", zap.Int("voxels", placed), zap.Int("chunks", chunks))
	profiling.Count("worldgen.oreVoxels", placed)
	return placed
}

func oreSpan(ore *registry.VoxelType) int {
	return max(ore.MaxSpawnHeight-ore.MinSpawnHeight+1, 1)
}

// tryPlaceOre converts one voxel when it is inside the type's height band,
// solid, destructible, not a surface material and the per-voxel roll
// passes.
func (g *Generator) tryPlaceOre(w *world.World, ore *registry.VoxelType, pos world.GlobalVoxelCoordinate, rng *rand.Rand) bool {
	if int(pos.Y) < ore.MinSpawnHeight || int(pos.Y) > ore.MaxSpawnHeight {
		return false
	}
	h := w.Handle(pos)
	if !h.IsValid() || h.IsEmpty() {
		return false
	}
	t := h.Type()
	if t.IsInvincible || t.IsSurface || t.SpawnsOre() {
		return false
	}
	if rng.Float64() > ore.SpawnProbability {
		return false
	}
	h.SetType(ore)
	return true
}

func (g *Generator) placeVein(w *world.World, ore *registry.VoxelType, start world.GlobalVoxelCoordinate, rng *rand.Rand) int {
	// veins run mostly horizontally
	dir := mgl32.Vec3{float32(rng.NormFloat64()), float32(rng.NormFloat64()) * 0.3, float32(rng.NormFloat64())}
	if dir.Len() == 0 {
		dir = mgl32.Vec3{1, 0, 0}
	}
	dir = dir.Normalize()
	p := start.Vec3()
	placed := 0
	for range max(ore.VeinLength, 1) {
		if g.tryPlaceOre(w, ore, world.FromVec3(p), rng) {
			placed++
		}
		jitter := mgl32.Vec3{float32(rng.NormFloat64()), float32(rng.NormFloat64()) * 0.3, float32(rng.NormFloat64())}
		dir = dir.Add(jitter.Mul(0.3))
		if dir.Len() > 0 {
			dir = dir.Normalize()
		}
		p = p.Add(dir)
	}
	return placed
}

func (g *Generator) placeCluster(w *world.World, ore *registry.VoxelType, center world.GlobalVoxelCoordinate, rng *rand.Rand) int {
	size := ore.ClusterSize
	if size <= 0 {
		size = 2
	}
	radii := mgl32.Vec3{
		float32(size * (0.5 + rng.Float64())),
		float32(size * (0.5 + rng.Float64())),
		float32(size * (0.5 + rng.Float64())),
	}
	rot := mgl32.Rotate3DX(float32(rng.Float64() * 2 * math.Pi)).
		Mul3(mgl32.Rotate3DY(float32(rng.Float64() * 2 * math.Pi))).
		Mul3(mgl32.Rotate3DZ(float32(rng.Float64() * 2 * math.Pi)))
	// membership is tested in the ellipsoid's own frame
	inv := rot.Transpose()

	r := int32(math.Ceil(float64(max(radii.X(), radii.Y(), radii.Z()))))
	placed := 0
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				l := inv.Mul3x1(mgl32.Vec3{float32(dx), float32(dy), float32(dz)})
				sx, sy, sz := l.X()/radii.X(), l.Y()/radii.Y(), l.Z()/radii.Z()
				jitter := float32(rng.Float64()*0.3 - 0.15)
				if sx*sx+sy*sy+sz*sz > 1+jitter {
					continue
				}
				if g.tryPlaceOre(w, ore, center.Offset(dx, dy, dz), rng) {
					placed++
				}
			}
		}
	}
	return placed
}
