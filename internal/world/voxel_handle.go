package world

import "voxel-colony/internal/registry"

// VoxelHandle is a transient reference to one voxel. The owning chunk and
// array index are resolved once when the handle is made. A handle whose
// coordinate lies outside every loaded chunk is invalid; reads on it return
// zero values and writes are ignored.
type VoxelHandle struct {
	Coord GlobalVoxelCoordinate

	world *World
	chunk *Chunk
	index int
}

// Handle resolves the voxel at g.
func (w *World) Handle(g GlobalVoxelCoordinate) VoxelHandle {
	h := VoxelHandle{Coord: g, world: w}
	if ch, ok := w.chunks.Get(ChunkOf(g)); ok {
		h.chunk = ch
		h.index = LocalOf(g).Index()
	}
	return h
}

// HandleAt returns the handle of index i in ch without a chunk map lookup.
func (w *World) HandleAt(ch *Chunk, i int) VoxelHandle {
	return VoxelHandle{Coord: GlobalFrom(ch.ID, CoordsAt(i)), world: w, chunk: ch, index: i}
}

// HandleIn returns a handle inside a chunk that may not be registered in a
// world yet. Only raw writes are meaningful on such a handle.
func HandleIn(ch *Chunk, l LocalVoxelCoordinate) VoxelHandle {
	return VoxelHandle{Coord: GlobalFrom(ch.ID, l), chunk: ch, index: l.Index()}
}

func (h VoxelHandle) IsValid() bool { return h.chunk != nil }

func (h VoxelHandle) Chunk() *Chunk { return h.chunk }

func (h VoxelHandle) Index() int { return h.index }

func (h VoxelHandle) Local() LocalVoxelCoordinate { return CoordsAt(h.index) }

// Neighbor returns the handle offset by the given deltas, staying inside the
// cached chunk when possible.
func (h VoxelHandle) Neighbor(dx, dy, dz int32) VoxelHandle {
	g := h.Coord.Offset(dx, dy, dz)
	if h.chunk != nil {
		l := LocalOf(g)
		if ChunkOf(g) == h.chunk.ID {
			return VoxelHandle{Coord: g, world: h.world, chunk: h.chunk, index: l.Index()}
		}
	}
	if h.world == nil {
		return VoxelHandle{Coord: g}
	}
	return h.world.Handle(g)
}

// Below is Neighbor(0, -1, 0).
func (h VoxelHandle) Below() VoxelHandle { return h.Neighbor(0, -1, 0) }

// Above is Neighbor(0, 1, 0).
func (h VoxelHandle) Above() VoxelHandle { return h.Neighbor(0, 1, 0) }

func (h VoxelHandle) TypeID() uint8 {
	if h.chunk == nil {
		return registry.EmptyID
	}
	return h.chunk.Data.Types[h.index]
}

// Type returns the voxel's type. Handles without a world resolve nothing and
// return nil.
func (h VoxelHandle) Type() *registry.VoxelType {
	if h.world == nil {
		return nil
	}
	return h.world.types.Get(h.TypeID())
}

func (h VoxelHandle) IsEmpty() bool { return h.TypeID() == registry.EmptyID }

// IsOpaque reports whether the voxel blocks sunlight.
func (h VoxelHandle) IsOpaque() bool {
	if h.IsEmpty() {
		return false
	}
	if t := h.Type(); t != nil {
		return t.IsOpaque()
	}
	return true
}

func (h VoxelHandle) Health() uint8 {
	if h.chunk == nil {
		return 0
	}
	return h.chunk.Data.Health[h.index]
}

func (h VoxelHandle) Sunlight() uint8 {
	if h.chunk == nil {
		return 0
	}
	return h.chunk.Data.Sunlight[h.index]
}

func (h VoxelHandle) Ramp() RampType {
	if h.chunk == nil {
		return RampNone
	}
	return h.chunk.Data.Ramps[h.index]
}

func (h VoxelHandle) Water() WaterCell {
	if h.chunk == nil {
		return WaterCell{}
	}
	return h.chunk.Data.Water[h.index]
}

func (h VoxelHandle) Explored() bool {
	if h.chunk == nil {
		return false
	}
	return h.chunk.Data.Explored[h.index]
}

func (h VoxelHandle) writable() bool {
	invariant(h.chunk != nil, "write through invalid handle")
	return h.chunk != nil
}

// SetType changes the voxel's type and runs the change bookkeeping:
// health reset, slice counter, mesh invalidation of this slice and of the
// neighbouring chunks that share the voxel's boundary faces, sunlight
// propagation, destruction listeners with reveal queueing, and change
// listeners.
func (h VoxelHandle) SetType(t *registry.VoxelType) {
	if !h.writable() || h.world == nil {
		return
	}
	prev := h.chunk.SetTypeRaw(h.index, t.ID, t.StartingHealth)
	if t.ID != registry.EmptyID && !h.Water().Empty() {
		h.chunk.SetLiquidRaw(h.index, WaterCell{})
		h.chunk.SetNeedsLiquidRebuild(true)
	}
	if prev == t.ID {
		return
	}

	h.invalidate()
	h.propagateSunlight(t)

	ev := ChangeEvent{Pos: h.Coord, Prev: prev, New: t.ID}
	if prev != registry.EmptyID && t.ID == registry.EmptyID {
		h.world.notify(h.world.destroyListeners, ev)
		h.world.enqueueReveal(h.Coord)
	}
	h.world.notify(h.world.changeListeners, ev)
}

// RawSetType writes the type and health and updates the slice counter only.
func (h VoxelHandle) RawSetType(t *registry.VoxelType) {
	if !h.writable() {
		return
	}
	h.chunk.SetTypeRaw(h.index, t.ID, t.StartingHealth)
}

// invalidate marks this slice stale, plus the same slice of each horizontal
// neighbour chunk whose face the voxel touches. A corner voxel touches two
// faces and the diagonal chunk.
func (h VoxelHandle) invalidate() {
	l := h.Local()
	h.chunk.InvalidateSlice(int(l.Y))
	h.chunk.SetNeedsLighting(true)
	if h.world == nil {
		return
	}
	var dx, dz int32
	switch l.X {
	case 0:
		dx = -1
	case MaskX:
		dx = 1
	}
	switch l.Z {
	case 0:
		dz = -1
	case MaskZ:
		dz = 1
	}
	if dx != 0 {
		h.invalidateNeighbor(dx, 0, int(l.Y))
	}
	if dz != 0 {
		h.invalidateNeighbor(0, dz, int(l.Y))
	}
	if dx != 0 && dz != 0 {
		h.invalidateNeighbor(dx, dz, int(l.Y))
	}
}

func (h VoxelHandle) invalidateNeighbor(dx, dz int32, y int) {
	if n, ok := h.world.chunks.Get(h.chunk.ID.Offset(dx, 0, dz)); ok {
		n.InvalidateSlice(y)
		n.SetNeedsLighting(true)
	}
}

// propagateSunlight walks down from the voxel. An opaque write shades
// everything below until the next opaque voxel. A transparent write carries
// the light from above down through empty and transparent voxels and onto
// the first opaque one.
func (h VoxelHandle) propagateSunlight(t *registry.VoxelType) {
	light := MaxSunlight
	if above := h.Above(); above.IsValid() {
		light = above.Sunlight()
		if above.IsOpaque() {
			light = 0
		}
	}
	if light == 0 && !t.IsOpaque() {
		h.setSunlightQuiet(0)
		return
	}
	h.setSunlightQuiet(light)
	if t.IsOpaque() {
		light = 0
	}
	for cur := h.Below(); cur.IsValid(); cur = cur.Below() {
		if light == 0 && cur.Sunlight() == 0 {
			break
		}
		cur.setSunlightQuiet(light)
		cur.chunk.InvalidateSlice(int(cur.Local().Y))
		if cur.IsOpaque() {
			break
		}
	}
}

func (h VoxelHandle) setSunlightQuiet(v uint8) {
	h.chunk.Data.Sunlight[h.index] = v
}

// SetLiquid writes the liquid cell and flags the chunk for a liquid mesh
// rebuild. Solid voxels hold no liquid, so they only accept an empty cell.
func (h VoxelHandle) SetLiquid(cell WaterCell) {
	if !h.writable() {
		return
	}
	if !h.IsEmpty() {
		cell = WaterCell{}
	}
	h.chunk.SetLiquidRaw(h.index, cell)
	h.chunk.SetNeedsLiquidRebuild(true)
}

// SetSunlight writes the sunlight level and invalidates the slice.
func (h VoxelHandle) SetSunlight(v uint8) {
	if !h.writable() {
		return
	}
	h.chunk.Data.Sunlight[h.index] = v
	h.chunk.InvalidateSlice(int(h.Local().Y))
}

// SetRamp writes the ramp flags and invalidates the slice when they change.
func (h VoxelHandle) SetRamp(r RampType) {
	if !h.writable() || h.chunk.Data.Ramps[h.index] == r {
		return
	}
	h.chunk.Data.Ramps[h.index] = r
	h.chunk.InvalidateSlice(int(h.Local().Y))
}

// SetExplored writes the explored flag and invalidates the slice when it
// changes.
func (h VoxelHandle) SetExplored(v bool) {
	if !h.writable() || h.chunk.Data.Explored[h.index] == v {
		return
	}
	h.chunk.Data.Explored[h.index] = v
	h.chunk.InvalidateSlice(int(h.Local().Y))
}

// SetHealth writes the voxel's remaining health.
func (h VoxelHandle) SetHealth(v uint8) {
	if !h.writable() {
		return
	}
	h.chunk.Data.Health[h.index] = v
}
