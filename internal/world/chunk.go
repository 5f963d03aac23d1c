package world

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// LiquidType is the kind of liquid held in a voxel.
type LiquidType uint8

const (
	LiquidNone LiquidType = iota
	LiquidWater
	LiquidLava
)

func (l LiquidType) String() string {
	switch l {
	case LiquidWater:
		return "water"
	case LiquidLava:
		return "lava"
	default:
		return "none"
	}
}

// LiquidCapacity is the amount held by a full cell.
const LiquidCapacity uint8 = 8

// MaxSunlight is the level of a voxel open to the sky.
const MaxSunlight uint8 = 255

// WaterCell is the liquid state of one voxel. Type is LiquidNone exactly
// when Amount is zero.
type WaterCell struct {
	Type   LiquidType
	Amount uint8
}

// Empty reports whether the cell holds no liquid.
func (w WaterCell) Empty() bool { return w.Amount == 0 }

// normalized clamps the cell to the invariant.
func (w WaterCell) normalized() WaterCell {
	if w.Amount > LiquidCapacity {
		invariant(false, "liquid amount above capacity")
		w.Amount = LiquidCapacity
	}
	if w.Amount == 0 || w.Type == LiquidNone {
		return WaterCell{}
	}
	return w
}

// VoxelData is the struct-of-arrays storage of one chunk, indexed by
// LocalVoxelCoordinate.Index.
type VoxelData struct {
	Types    [ChunkVolume]uint8
	Health   [ChunkVolume]uint8
	Sunlight [ChunkVolume]uint8
	Light    [ChunkVolume]uint8
	Ramps    [ChunkVolume]RampType
	Water    [ChunkVolume]WaterCell
	Explored [ChunkVolume]bool

	VoxelsPresentInSlice [ChunkSizeY]int32
	LiquidPresentInSlice [ChunkSizeY]int32
}

// Chunk owns the voxel data of one chunk coordinate. The chunk map owns the
// chunk; nothing in a chunk points back at its owners.
type Chunk struct {
	ID     GlobalChunkCoordinate
	Origin GlobalVoxelCoordinate
	Data   *VoxelData

	needsRebuild       atomic.Bool
	needsLiquidRebuild atomic.Bool
	needsLighting      atomic.Bool
	rebuildQueued      atomic.Bool
	liquidQueued       atomic.Bool
	firstLiquidPass    atomic.Bool

	// one bit per Y slice whose mesh cache is stale
	dirtySlices atomic.Uint64

	meshMu      sync.Mutex
	mesh        any
	liquidMesh  any
	meshVersion uint64
}

// NewChunk returns an empty chunk with every derived-state flag raised.
func NewChunk(id GlobalChunkCoordinate) *Chunk {
	c := &Chunk{ID: id, Origin: id.Origin(), Data: &VoxelData{}}
	c.needsRebuild.Store(true)
	c.needsLighting.Store(true)
	c.firstLiquidPass.Store(true)
	c.dirtySlices.Store(^uint64(0))
	return c
}

// Center returns the world-space centre of the chunk.
func (c *Chunk) Center() mgl32.Vec3 { return c.ID.Center() }

// Type returns the type id at index i.
func (c *Chunk) Type(i int) uint8 { return c.Data.Types[i] }

// SetTypeRaw writes a type id and health and keeps the slice counter in
// step. No other bookkeeping runs; it is meant for bulk generation of a
// chunk that is not yet visible to other goroutines.
func (c *Chunk) SetTypeRaw(i int, id, health uint8) (prev uint8) {
	d := c.Data
	prev = d.Types[i]
	d.Types[i] = id
	d.Health[i] = health
	y := i >> (ShiftX + ShiftZ)
	switch {
	case prev == 0 && id != 0:
		d.VoxelsPresentInSlice[y]++
	case prev != 0 && id == 0:
		d.VoxelsPresentInSlice[y]--
		if d.VoxelsPresentInSlice[y] < 0 {
			invariant(false, "negative voxel slice count")
			d.VoxelsPresentInSlice[y] = 0
		}
	}
	return prev
}

// SetLiquidRaw writes a liquid cell and keeps the liquid slice counter in
// step. Amounts above capacity are clamped.
func (c *Chunk) SetLiquidRaw(i int, cell WaterCell) (prev WaterCell) {
	d := c.Data
	cell = cell.normalized()
	prev = d.Water[i]
	d.Water[i] = cell
	y := i >> (ShiftX + ShiftZ)
	switch {
	case prev.Empty() && !cell.Empty():
		d.LiquidPresentInSlice[y]++
	case !prev.Empty() && cell.Empty():
		d.LiquidPresentInSlice[y]--
		if d.LiquidPresentInSlice[y] < 0 {
			invariant(false, "negative liquid slice count")
			d.LiquidPresentInSlice[y] = 0
		}
	}
	return prev
}

// IsSliceEmpty reports whether slice y holds no voxels.
func (c *Chunk) IsSliceEmpty(y int) bool { return c.Data.VoxelsPresentInSlice[y] == 0 }

// IsSliceDry reports whether slice y holds no liquid.
func (c *Chunk) IsSliceDry(y int) bool { return c.Data.LiquidPresentInSlice[y] == 0 }

// HasLiquid reports whether any slice holds liquid.
func (c *Chunk) HasLiquid() bool {
	for y := range ChunkSizeY {
		if c.Data.LiquidPresentInSlice[y] != 0 {
			return true
		}
	}
	return false
}

// RecountSlices rebuilds both slice counters from the arrays.
func (c *Chunk) RecountSlices() {
	d := c.Data
	for y := range ChunkSizeY {
		var voxels, liquid int32
		base := y * SliceVolume
		for i := base; i < base+SliceVolume; i++ {
			if d.Types[i] != 0 {
				voxels++
			}
			if !d.Water[i].Empty() {
				liquid++
			}
		}
		d.VoxelsPresentInSlice[y] = voxels
		d.LiquidPresentInSlice[y] = liquid
	}
}

// InvalidateSlice marks the mesh cache of slice y stale and requests a
// rebuild.
func (c *Chunk) InvalidateSlice(y int) {
	bit := uint64(1) << uint(y)
	for {
		old := c.dirtySlices.Load()
		if old&bit != 0 || c.dirtySlices.CompareAndSwap(old, old|bit) {
			break
		}
	}
	c.needsRebuild.Store(true)
}

// IsSliceDirty reports whether slice y has been invalidated since the last
// TakeDirtySlices.
func (c *Chunk) IsSliceDirty(y int) bool {
	return c.dirtySlices.Load()&(uint64(1)<<uint(y)) != 0
}

// TakeDirtySlices returns and clears the stale-slice mask.
func (c *Chunk) TakeDirtySlices() uint64 { return c.dirtySlices.Swap(0) }

// DirtySliceCount returns the number of stale slices.
func (c *Chunk) DirtySliceCount() int { return bits.OnesCount64(c.dirtySlices.Load()) }

func (c *Chunk) NeedsRebuild() bool { return c.needsRebuild.Load() }
func (c *Chunk) SetNeedsRebuild(v bool) { c.needsRebuild.Store(v) }
func (c *Chunk) NeedsLiquidRebuild() bool { return c.needsLiquidRebuild.Load() }
func (c *Chunk) SetNeedsLiquidRebuild(v bool) { c.needsLiquidRebuild.Store(v) }
func (c *Chunk) NeedsLighting() bool { return c.needsLighting.Load() }
func (c *Chunk) SetNeedsLighting(v bool) { c.needsLighting.Store(v) }

// TryQueueRebuild sets the rebuild-in-progress flag. It returns false if the
// chunk is already queued.
func (c *Chunk) TryQueueRebuild() bool { return c.rebuildQueued.CompareAndSwap(false, true) }

// FinishRebuild clears the rebuild-in-progress flag.
func (c *Chunk) FinishRebuild() { c.rebuildQueued.Store(false) }

// RebuildInProgress reports whether the chunk sits in the rebuild queue.
func (c *Chunk) RebuildInProgress() bool { return c.rebuildQueued.Load() }

// TryQueueLiquidRebuild is TryQueueRebuild for the liquid mesh.
func (c *Chunk) TryQueueLiquidRebuild() bool { return c.liquidQueued.CompareAndSwap(false, true) }

func (c *Chunk) FinishLiquidRebuild() { c.liquidQueued.Store(false) }
func (c *Chunk) LiquidRebuildInProgress() bool { return c.liquidQueued.Load() }

// TakeFirstLiquidPass returns true exactly once per load.
func (c *Chunk) TakeFirstLiquidPass() bool { return c.firstLiquidPass.Swap(false) }

// SwapMesh installs a mesh produced by a rebuild worker.
func (c *Chunk) SwapMesh(mesh any) {
	c.meshMu.Lock()
	c.mesh = mesh
	c.meshVersion++
	c.meshMu.Unlock()
}

// SwapLiquidMesh installs a liquid mesh produced by a rebuild worker.
func (c *Chunk) SwapLiquidMesh(mesh any) {
	c.meshMu.Lock()
	c.liquidMesh = mesh
	c.meshMu.Unlock()
}

// Mesh returns the current mesh and the number of swaps so far.
func (c *Chunk) Mesh() (any, uint64) {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()
	return c.mesh, c.meshVersion
}

// LiquidMesh returns the current liquid mesh.
func (c *Chunk) LiquidMesh() any {
	c.meshMu.Lock()
	defer c.meshMu.Unlock()
	return c.liquidMesh
}
