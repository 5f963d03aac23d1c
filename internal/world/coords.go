package world

import "github.com/go-gl/mathgl/mgl32"

// Chunk dimensions. Each axis is a power of two so global coordinates split
// into chunk and local parts with a shift and a mask.
const (
	ChunkSizeX = 1 << ShiftX
	ChunkSizeY = 1 << ShiftY
	ChunkSizeZ = 1 << ShiftZ

	ShiftX = 4
	ShiftY = 6
	ShiftZ = 4

	MaskX = ChunkSizeX - 1
	MaskY = ChunkSizeY - 1
	MaskZ = ChunkSizeZ - 1

	SliceVolume = ChunkSizeX * ChunkSizeZ
	ChunkVolume = SliceVolume * ChunkSizeY
)

// GlobalVoxelCoordinate is an absolute voxel position.
type GlobalVoxelCoordinate struct {
	X, Y, Z int32
}

// GlobalChunkCoordinate identifies a chunk.
type GlobalChunkCoordinate struct {
	X, Y, Z int32
}

// LocalVoxelCoordinate is a position inside one chunk. Components are in
// [0, ChunkSize) on every axis.
type LocalVoxelCoordinate struct {
	X, Y, Z int32
}

// ChunkOf returns the chunk containing g. The right shift on a signed value
// is arithmetic, so it floors toward negative infinity.
func ChunkOf(g GlobalVoxelCoordinate) GlobalChunkCoordinate {
	return GlobalChunkCoordinate{X: g.X >> ShiftX, Y: g.Y >> ShiftY, Z: g.Z >> ShiftZ}
}

// LocalOf returns g's position inside its chunk.
func LocalOf(g GlobalVoxelCoordinate) LocalVoxelCoordinate {
	return LocalVoxelCoordinate{X: g.X & MaskX, Y: g.Y & MaskY, Z: g.Z & MaskZ}
}

// GlobalFrom is the inverse of ChunkOf and LocalOf.
func GlobalFrom(c GlobalChunkCoordinate, l LocalVoxelCoordinate) GlobalVoxelCoordinate {
	return GlobalVoxelCoordinate{
		X: c.X<<ShiftX + l.X,
		Y: c.Y<<ShiftY + l.Y,
		Z: c.Z<<ShiftZ + l.Z,
	}
}

// Offset returns g moved by the given deltas.
func (g GlobalVoxelCoordinate) Offset(dx, dy, dz int32) GlobalVoxelCoordinate {
	return GlobalVoxelCoordinate{X: g.X + dx, Y: g.Y + dy, Z: g.Z + dz}
}

// Vec3 returns the world-space centre of the voxel.
func (g GlobalVoxelCoordinate) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(g.X) + 0.5, float32(g.Y) + 0.5, float32(g.Z) + 0.5}
}

// FromVec3 returns the voxel containing a world-space point.
func FromVec3(v mgl32.Vec3) GlobalVoxelCoordinate {
	return GlobalVoxelCoordinate{X: floor32(v.X()), Y: floor32(v.Y()), Z: floor32(v.Z())}
}

func floor32(f float32) int32 {
	i := int32(f)
	if f < 0 && float32(i) != f {
		i--
	}
	return i
}

// Index flattens l in Y-major order: y*SliceVolume + z*ChunkSizeX + x.
// This order is part of the persisted record format.
func (l LocalVoxelCoordinate) Index() int {
	return int(l.Y)<<(ShiftX+ShiftZ) | int(l.Z)<<ShiftX | int(l.X)
}

// InBounds reports whether l addresses a voxel inside a chunk.
func (l LocalVoxelCoordinate) InBounds() bool {
	return l.X >= 0 && l.X < ChunkSizeX && l.Y >= 0 && l.Y < ChunkSizeY && l.Z >= 0 && l.Z < ChunkSizeZ
}

// CoordsAt is the inverse of LocalVoxelCoordinate.Index.
func CoordsAt(index int) LocalVoxelCoordinate {
	return LocalVoxelCoordinate{
		X: int32(index & MaskX),
		Z: int32((index >> ShiftX) & MaskZ),
		Y: int32(index >> (ShiftX + ShiftZ)),
	}
}

// Origin returns the global coordinate of the chunk's (0,0,0) voxel.
func (c GlobalChunkCoordinate) Origin() GlobalVoxelCoordinate {
	return GlobalFrom(c, LocalVoxelCoordinate{})
}

// Center returns the world-space centre of the chunk.
func (c GlobalChunkCoordinate) Center() mgl32.Vec3 {
	o := c.Origin()
	return mgl32.Vec3{
		float32(o.X) + ChunkSizeX/2,
		float32(o.Y) + ChunkSizeY/2,
		float32(o.Z) + ChunkSizeZ/2,
	}
}

// Offset returns c moved by the given number of chunks.
func (c GlobalChunkCoordinate) Offset(dx, dy, dz int32) GlobalChunkCoordinate {
	return GlobalChunkCoordinate{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

const keyBits = 21

// Key packs the coordinate into disjoint 21-bit ranges of a uint64.
// Distinct coordinates within ±2^20 chunks produce distinct keys.
func (c GlobalChunkCoordinate) Key() uint64 {
	const m = 1<<keyBits - 1
	return uint64(uint32(c.X)&m) | uint64(uint32(c.Y)&m)<<keyBits | uint64(uint32(c.Z)&m)<<(2*keyBits)
}
