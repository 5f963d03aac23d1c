// Package worldgen fills chunks with terrain from an overworld field and
// decides where surface and cave life should spawn.
package worldgen

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxel-colony/internal/noise"
	"voxel-colony/internal/overworld"
	"voxel-colony/internal/profiling"
	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
)

// SpawnKind tells the entity collaborator what a spawn request is for.
type SpawnKind int

const (
	SpawnFauna SpawnKind = iota
	SpawnVegetation
	SpawnCaveFlora
	SpawnCaveFauna
)

// SpawnRequest asks the entity collaborator to create an entity. Requests
// are returned to the caller instead of being executed so generation stays
// free of side effects and can run off the main goroutine.
type SpawnRequest struct {
	Template string
	Position mgl32.Vec3
	Kind     SpawnKind
	Biome    overworld.BiomeID
}

// Spawner is the entity collaborator. Spawning is best effort.
type Spawner interface {
	Spawn(req SpawnRequest) error
}

// Result is a freshly generated chunk plus the spawns it asked for.
type Result struct {
	Chunk  *world.Chunk
	Spawns []SpawnRequest
}

type biomeMaterials struct {
	data       *overworld.BiomeData
	grass      *registry.VoxelType
	soil       *registry.VoxelType
	shore      *registry.VoxelType
	clump      *registry.VoxelType
	subsurface []*registry.VoxelType
}

// Generator produces chunks. It holds only read-only state after New, so a
// single generator may serve several goroutines.
type Generator struct {
	settings Settings
	types    *registry.Library
	biomes   *overworld.BiomeLibrary
	field    overworld.Field
	log      *zap.Logger

	bedrock   *registry.VoxelType
	stone     *registry.VoxelType
	materials map[overworld.BiomeID]*biomeMaterials
}

// New resolves every material named by the biome library against types.
func New(settings Settings, types *registry.Library, biomes *overworld.BiomeLibrary, field overworld.Field, log *zap.Logger) (*Generator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &Generator{
		settings:  settings,
		types:     types,
		biomes:    biomes,
		field:     field,
		log:       log,
		materials: make(map[overworld.BiomeID]*biomeMaterials),
	}
	var err error
	if g.bedrock, err = g.lookup(registry.BedrockName); err != nil {
		return nil, err
	}
	if g.stone, err = g.lookup(registry.StoneName); err != nil {
		return nil, err
	}
	for _, id := range []overworld.BiomeID{
		overworld.BiomeGrassland, overworld.BiomeForest, overworld.BiomeDesert,
		overworld.BiomeTundra, overworld.BiomeJungle, overworld.BiomeMountains,
	} {
		m, err := g.resolveBiome(biomes.Get(id))
		if err != nil {
			return nil, err
		}
		g.materials[id] = m
	}
	return g, nil
}

func (g *Generator) lookup(name string) (*registry.VoxelType, error) {
	t, ok := g.types.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("worldgen material %q: %w", name, registry.ErrUnknownType)
	}
	return t, nil
}

func (g *Generator) resolveBiome(b *overworld.BiomeData) (*biomeMaterials, error) {
	m := &biomeMaterials{data: b}
	var err error
	if m.grass, err = g.lookup(b.GrassLayer); err != nil {
		return nil, err
	}
	if m.soil, err = g.lookup(b.SoilLayer); err != nil {
		return nil, err
	}
	if m.shore, err = g.lookup(b.ShoreLayer); err != nil {
		return nil, err
	}
	if b.ClumpLayer != "" {
		if m.clump, err = g.lookup(b.ClumpLayer); err != nil {
			return nil, err
		}
	}
	for _, name := range b.SubsurfaceLayers {
		t, err := g.lookup(name)
		if err != nil {
			return nil, err
		}
		m.subsurface = append(m.subsurface, t)
	}
	if len(m.subsurface) == 0 {
		m.subsurface = []*registry.VoxelType{g.stone}
	}
	return m, nil
}

func (g *Generator) biome(id overworld.BiomeID) *biomeMaterials {
	if m, ok := g.materials[id]; ok {
		return m
	}
	m, err := g.resolveBiome(g.biomes.Get(id))
	if err != nil {
		return g.materials[overworld.BiomeGrassland]
	}
	return m
}

// Settings returns the generator's tuning.
func (g *Generator) Settings() Settings { return g.settings }

func (g *Generator) mapPos(wx, wz int32) mgl32.Vec2 {
	r := g.settings.WorldToMapRatio
	return mgl32.Vec2{float32(wx) / r, float32(wz) / r}
}

// column is the per-(x,z) sample shared by the generation passes.
type column struct {
	height      float32
	stoneHeight int
	biome       *biomeMaterials
	water       overworld.WaterType
}

func (g *Generator) sampleColumn(wx, wz int32) column {
	p := g.mapPos(wx, wz)
	h := g.field.Scalar(p, overworld.FieldHeight)
	top := float64(h) * float64(g.settings.WorldHeight-1)
	// seeded offset so the transition is irregular rather than a contour
	// of the height field
	off := noise.Value2D(float64(wx)*0.15, float64(wz)*0.15, g.settings.Seed+17)*2 - 1
	stone := int(math.Round(top + off*float64(g.settings.StoneJitter)))
	stone = min(max(stone, 0), g.settings.WorldHeight-1)
	return column{
		height:      h,
		stoneHeight: stone,
		biome:       g.biome(g.field.Biome(p)),
		water:       g.field.Water(p),
	}
}

// StoneHeight returns the topmost solid layer the column pass produces at
// world column (wx, wz), before caves and water features.
func (g *Generator) StoneHeight(wx, wz int32) int {
	return g.sampleColumn(wx, wz).stoneHeight
}

// GenerateChunk builds the chunk at id. The output depends only on the
// settings, the field and id.
func (g *Generator) GenerateChunk(id world.GlobalChunkCoordinate) Result {
	defer profiling.Track("worldgen.GenerateChunk")()
	ch := world.NewChunk(id)
	res := Result{Chunk: ch}

	var cols [world.ChunkSizeX][world.ChunkSizeZ]column
	for z := range int32(world.ChunkSizeZ) {
		for x := range int32(world.ChunkSizeX) {
			wx, wz := ch.Origin.X+x, ch.Origin.Z+z
			cols[x][z] = g.sampleColumn(wx, wz)
			g.fillColumn(ch, x, z, cols[x][z])
		}
	}
	res.Spawns = g.carveCaves(ch, &cols, res.Spawns)
	g.floodSeaLevel(ch)
	g.waterFeatures(ch, &cols)
	g.lavaFloor(ch)
	profiling.Count("worldgen.chunks", 1)
	return res
}

func (g *Generator) fillColumn(ch *world.Chunk, x, z int32, col column) {
	seaY := g.settings.SeaY()
	for y := range int32(world.ChunkSizeY) {
		gy := int(ch.Origin.Y + y)
		if gy < 0 || gy > col.stoneHeight {
			continue
		}
		i := world.LocalVoxelCoordinate{X: x, Y: y, Z: z}.Index()
		var t *registry.VoxelType
		switch {
		case gy == 0:
			t = g.bedrock
		case gy == col.stoneHeight:
			t = g.surfaceMaterial(ch.Origin.X+x, ch.Origin.Z+z, col, seaY)
		default:
			depth := col.stoneHeight - gy - 1
			layer := min(depth/g.settings.SubsurfaceLayerDepth, len(col.biome.subsurface)-1)
			t = col.biome.subsurface[layer]
		}
		ch.SetTypeRaw(i, t.ID, t.StartingHealth)
	}
}

func (g *Generator) surfaceMaterial(wx, wz int32, col column, seaY int) *registry.VoxelType {
	b := col.biome
	if col.height < g.settings.SeaLevel || col.stoneHeight < seaY {
		return b.shore
	}
	if b.clump != nil {
		f := g.settings.ClumpFrequency
		if b.data.ClumpSize > 0 {
			f = 1 / b.data.ClumpSize
		}
		if noise.Value2D(float64(wx)*f, float64(wz)*f, g.settings.Seed+29) > b.data.ClumpThreshold {
			return b.clump
		}
	}
	return b.grass
}

func (g *Generator) carveCaves(ch *world.Chunk, cols *[world.ChunkSizeX][world.ChunkSizeZ]column, spawns []SpawnRequest) []SpawnRequest {
	s := g.settings
	seaY := s.SeaY()
	for li, level := range s.CaveLevels {
		seed := s.Seed + int64(1000+li*7919)
		for y := int32(0); y < world.ChunkSizeY; y++ {
			gy := int(ch.Origin.Y + y)
			if gy < level.Y-s.CaveHalfHeight || gy > level.Y+s.CaveHalfHeight || gy < 1 {
				continue
			}
			if ch.IsSliceEmpty(int(y)) {
				continue
			}
			for z := int32(0); z < world.ChunkSizeZ; z++ {
				for x := int32(0); x < world.ChunkSizeX; x++ {
					col := cols[x][z]
					// keep a roof over the cave
					if gy >= col.stoneHeight-1 {
						continue
					}
					i := world.LocalVoxelCoordinate{X: x, Y: y, Z: z}.Index()
					if ch.Type(i) == 0 || ch.Type(i) == g.bedrock.ID {
						continue
					}
					wx, wz := float64(ch.Origin.X+x), float64(ch.Origin.Z+z)
					f := level.Frequency
					r := noise.Ridged3D(wx*f, float64(gy)*f*2, wz*f, seed, max(s.CaveOctaves, 1), 2, 2)
					if r < s.CaveThreshold {
						continue
					}
					ch.SetTypeRaw(i, 0, 0)
					if gy <= seaY {
						ch.SetLiquidRaw(i, world.WaterCell{Type: world.LiquidWater, Amount: world.LiquidCapacity})
					}
				}
			}
		}
	}

	// cave life sits on the floor of dry pockets
	for y := int32(1); y < world.ChunkSizeY; y++ {
		gy := int(ch.Origin.Y + y)
		if gy <= s.CaveLifeMinHeight {
			continue
		}
		for z := int32(0); z < world.ChunkSizeZ; z++ {
			for x := int32(0); x < world.ChunkSizeX; x++ {
				if gy >= cols[x][z].stoneHeight-1 {
					continue
				}
				i := world.LocalVoxelCoordinate{X: x, Y: y, Z: z}.Index()
				below := world.LocalVoxelCoordinate{X: x, Y: y - 1, Z: z}.Index()
				if ch.Type(i) != 0 || !ch.Data.Water[i].Empty() || ch.Type(below) == 0 {
					continue
				}
				wx, wz := int64(ch.Origin.X+x), int64(ch.Origin.Z+z)
				pos := world.GlobalVoxelCoordinate{X: int32(wx), Y: int32(gy), Z: int32(wz)}.Vec3()
				roll := noise.Hash01(wx, int64(gy), wz, s.Seed+41)
				switch {
				case len(s.CaveFlora) > 0 && roll < s.CaveFloraChance:
					pick := int(noise.Hash01(wx, int64(gy), wz, s.Seed+43) * float64(len(s.CaveFlora)))
					spawns = append(spawns, SpawnRequest{
						Template: s.CaveFlora[min(pick, len(s.CaveFlora)-1)],
						Position: pos, Kind: SpawnCaveFlora, Biome: cols[x][z].biome.data.ID,
					})
				case len(s.CaveFauna) > 0 && roll < s.CaveFloraChance+s.CaveFaunaChance:
					pick := int(noise.Hash01(wx, int64(gy), wz, s.Seed+47) * float64(len(s.CaveFauna)))
					spawns = append(spawns, SpawnRequest{
						Template: s.CaveFauna[min(pick, len(s.CaveFauna)-1)],
						Position: pos, Kind: SpawnCaveFauna, Biome: cols[x][z].biome.data.ID,
					})
				}
			}
		}
	}
	return spawns
}

// floodSeaLevel fills every empty, dry voxel at or below sea level.
func (g *Generator) floodSeaLevel(ch *world.Chunk) {
	seaY := g.settings.SeaY()
	for y := int32(0); y < world.ChunkSizeY; y++ {
		gy := int(ch.Origin.Y + y)
		if gy < 1 || gy > seaY {
			continue
		}
		base := int(y) * world.SliceVolume
		for i := base; i < base+world.SliceVolume; i++ {
			if ch.Type(i) == 0 && ch.Data.Water[i].Empty() {
				ch.SetLiquidRaw(i, world.WaterCell{Type: world.LiquidWater, Amount: world.LiquidCapacity})
			}
		}
	}
}

// waterFeatures applies the map's river and volcano flags. Rivers sink the
// surface voxel into a water channel; volcanoes turn the liquid near the
// surface into lava and open a lava vent on top.
func (g *Generator) waterFeatures(ch *world.Chunk, cols *[world.ChunkSizeX][world.ChunkSizeZ]column) {
	for z := int32(0); z < world.ChunkSizeZ; z++ {
		for x := int32(0); x < world.ChunkSizeX; x++ {
			col := cols[x][z]
			if col.water != overworld.WaterRiver && col.water != overworld.WaterVolcano {
				continue
			}
			ly := int32(col.stoneHeight) - ch.Origin.Y
			if col.stoneHeight > 1 && ly >= 0 && ly < world.ChunkSizeY {
				i := world.LocalVoxelCoordinate{X: x, Y: ly, Z: z}.Index()
				liquid := world.LiquidWater
				if col.water == overworld.WaterVolcano {
					liquid = world.LiquidLava
				}
				ch.SetTypeRaw(i, 0, 0)
				ch.SetLiquidRaw(i, world.WaterCell{Type: liquid, Amount: world.LiquidCapacity})
			}
			if col.water != overworld.WaterVolcano {
				continue
			}
			for d := 1; d <= g.settings.VolcanoDepth; d++ {
				ly := int32(col.stoneHeight+d) - ch.Origin.Y
				if ly < 0 || ly >= world.ChunkSizeY {
					continue
				}
				i := world.LocalVoxelCoordinate{X: x, Y: ly, Z: z}.Index()
				if w := ch.Data.Water[i]; w.Type == world.LiquidWater {
					ch.SetLiquidRaw(i, world.WaterCell{Type: world.LiquidLava, Amount: w.Amount})
				}
			}
		}
	}
}

// lavaFloor fills the lowest layers with lava wherever they are still
// empty and dry.
func (g *Generator) lavaFloor(ch *world.Chunk) {
	for y := int32(0); y < world.ChunkSizeY; y++ {
		gy := int(ch.Origin.Y + y)
		if gy < 0 || gy >= g.settings.LavaFloorHeight {
			continue
		}
		base := int(y) * world.SliceVolume
		for i := base; i < base+world.SliceVolume; i++ {
			if ch.Type(i) == 0 && ch.Data.Water[i].Empty() {
				ch.SetLiquidRaw(i, world.WaterCell{Type: world.LiquidLava, Amount: world.LiquidCapacity})
			}
		}
	}
}
