package meshing

import (
	"voxel-colony/internal/profiling"
	"voxel-colony/internal/world"
)

// Face directions in the order the builders walk them.
const (
	FaceEast = iota
	FaceWest
	FaceTop
	FaceBottom
	FaceNorth
	FaceSouth
)

// VerticesPerQuad is the number of packed vertices emitted for each quad
// (two triangles).
const VerticesPerQuad = 6

var chunkSize = [3]int{world.ChunkSizeX, world.ChunkSizeY, world.ChunkSizeZ}

// Mesh is the voxel geometry of one chunk in chunk-local coordinates.
// Materials holds the voxel type of each quad in emission order.
type Mesh struct {
	Vertices  []uint32
	Materials []uint8
}

func (m *Mesh) Quads() int { return len(m.Materials) }

// LiquidMesh is the liquid surface of one chunk. Liquids holds the liquid
// type of each quad; the light field of every vertex carries the liquid level.
type LiquidMesh struct {
	Vertices []uint32
	Liquids  []world.LiquidType
}

func (m *LiquidMesh) Quads() int { return len(m.Liquids) }

// Pack encodes one vertex: x 5 bits, y 7 bits, z 5 bits, face 3 bits,
// light 8 bits.
func Pack(x, y, z, face int, light uint8) uint32 {
	return uint32(x) | uint32(y)<<5 | uint32(z)<<12 | uint32(face)<<17 | uint32(light)<<20
}

func Unpack(v uint32) (x, y, z, face int, light uint8) {
	return int(v & 0x1f), int(v >> 5 & 0x7f), int(v >> 12 & 0x1f), int(v >> 17 & 0x7), uint8(v >> 20)
}

// neighbor is what a face sees across its plane.
type neighbor struct {
	id    uint8
	water world.WaterCell
}

func lookNeighbor(w *world.World, ch *world.Chunk, pos [3]int, axis, sign int) neighbor {
	pos[axis] += sign
	if pos[axis] >= 0 && pos[axis] < chunkSize[axis] {
		i := world.LocalVoxelCoordinate{X: int32(pos[0]), Y: int32(pos[1]), Z: int32(pos[2])}.Index()
		return neighbor{id: ch.Data.Types[i], water: ch.Data.Water[i]}
	}
	g := ch.Origin.Offset(int32(pos[0]), int32(pos[1]), int32(pos[2]))
	h := w.Handle(g)
	return neighbor{id: h.TypeID(), water: h.Water()}
}

// faceKey returns the merge key of the face of voxel i looking at n, or 0
// when no face is visible. Faces merge only when their keys match.
type faceKey func(i int, n neighbor) uint32

// buildGreedy performs 2D greedy meshing for every face direction of ch and
// calls emit with each merged quad's corners and key.
func buildGreedy(w *world.World, ch *world.Chunk, key faceKey, emit func(face int, corners [4][3]int, key uint32)) {
	for face := range 6 {
		axis := face / 2
		sign := 1
		if face%2 == 1 {
			sign = -1
		}
		u, v := (axis+1)%3, (axis+2)%3
		su, sv := chunkSize[u], chunkSize[v]
		mask := make([]uint32, su*sv)

		for layer := 0; layer < chunkSize[axis]; layer++ {
			if axis == 1 && ch.IsSliceEmpty(layer) && ch.IsSliceDry(layer) {
				continue
			}
			visible := false
			var pos [3]int
			pos[axis] = layer
			for a := range su {
				for b := range sv {
					pos[u], pos[v] = a, b
					i := world.LocalVoxelCoordinate{X: int32(pos[0]), Y: int32(pos[1]), Z: int32(pos[2])}.Index()
					k := key(i, lookNeighbor(w, ch, pos, axis, sign))
					mask[a*sv+b] = k
					if k != 0 {
						visible = true
					}
				}
			}
			if !visible {
				continue
			}

			for n := 0; n < len(mask); {
				k := mask[n]
				if k == 0 {
					n++
					continue
				}
				a0, b0 := n/sv, n%sv
				width := 1
				for b := b0 + 1; b < sv && mask[a0*sv+b] == k; b++ {
					width++
				}
				height := 1
			grow:
				for a := a0 + 1; a < su; a++ {
					for b := b0; b < b0+width; b++ {
						if mask[a*sv+b] != k {
							break grow
						}
					}
					height++
				}

				plane := layer
				if sign > 0 {
					plane++
				}
				var corners [4][3]int
				for c, uv := range [4][2]int{{a0, b0}, {a0 + height, b0}, {a0 + height, b0 + width}, {a0, b0 + width}} {
					corners[c][axis] = plane
					corners[c][u] = uv[0]
					corners[c][v] = uv[1]
				}
				if sign < 0 {
					corners[1], corners[3] = corners[3], corners[1]
				}
				emit(face, corners, k)

				for a := a0; a < a0+height; a++ {
					for b := b0; b < b0+width; b++ {
						mask[a*sv+b] = 0
					}
				}
				n += width
			}
		}
	}
}

func appendQuad(dst []uint32, face int, c [4][3]int, light uint8) []uint32 {
	for _, k := range [VerticesPerQuad]int{0, 1, 2, 2, 3, 0} {
		dst = append(dst, Pack(c[k][0], c[k][1], c[k][2], face, light))
	}
	return dst
}

// BuildChunkMesh meshes the solid voxels of ch. A face is visible when the
// voxel across it is not opaque; faces across unloaded chunks are kept.
// Quads merge across voxels of the same type and light.
func BuildChunkMesh(w *world.World, ch *world.Chunk) *Mesh {
	defer profiling.Track("meshing.BuildChunkMesh")()
	var opaque [256]bool
	for _, t := range w.Types().Types() {
		opaque[t.ID] = t.IsOpaque()
	}
	d := ch.Data
	m := &Mesh{Vertices: make([]uint32, 0, 1024)}
	buildGreedy(w, ch, func(i int, n neighbor) uint32 {
		id := d.Types[i]
		if id == 0 || opaque[n.id] {
			return 0
		}
		return 1<<16 | uint32(id)<<8 | uint32(d.Light[i])
	}, func(face int, corners [4][3]int, k uint32) {
		m.Vertices = appendQuad(m.Vertices, face, corners, uint8(k))
		m.Materials = append(m.Materials, uint8(k>>8))
	})
	return m
}

// BuildLiquidMesh meshes the liquid surface of ch. A liquid face is visible
// when the voxel across it is not opaque and holds less of the same liquid,
// or any amount of the other one.
func BuildLiquidMesh(w *world.World, ch *world.Chunk) *LiquidMesh {
	defer profiling.Track("meshing.BuildLiquidMesh")()
	var opaque [256]bool
	for _, t := range w.Types().Types() {
		opaque[t.ID] = t.IsOpaque()
	}
	d := ch.Data
	m := &LiquidMesh{}
	if !ch.HasLiquid() {
		return m
	}
	buildGreedy(w, ch, func(i int, n neighbor) uint32 {
		cell := d.Water[i]
		if cell.Empty() || opaque[n.id] {
			return 0
		}
		if n.water.Type == cell.Type && n.water.Amount >= cell.Amount {
			return 0
		}
		return 1<<16 | uint32(cell.Type)<<8 | uint32(cell.Amount)
	}, func(face int, corners [4][3]int, k uint32) {
		m.Vertices = appendQuad(m.Vertices, face, corners, uint8(k))
		m.Liquids = append(m.Liquids, world.LiquidType(k>>8))
	})
	return m
}

// Builder adapts the chunk mesh functions to the lifecycle manager's mesh
// builder contract.
type Builder struct{}

func (Builder) BuildMesh(w *world.World, ch *world.Chunk) (any, error) {
	return BuildChunkMesh(w, ch), nil
}

func (Builder) BuildLiquidMesh(w *world.World, ch *world.Chunk) (any, error) {
	return BuildLiquidMesh(w, ch), nil
}
