package world

import "voxel-colony/internal/profiling"

// RampType holds one bit per lowered top corner of a voxel.
type RampType uint8

const RampNone RampType = 0

// Corners are named by compass direction; north is -Z and west is -X.
const (
	RampNorthWest RampType = 1 << iota
	RampNorthEast
	RampSouthWest
	RampSouthEast
)

func (r RampType) Has(corner RampType) bool { return r&corner != 0 }

// rampFor computes the corner flags of a top-exposed voxel: a corner is
// lowered when either horizontal neighbour touching it is empty.
func rampFor(h VoxelHandle) RampType {
	open := func(dx, dz int32) bool {
		n := h.Neighbor(dx, 0, dz)
		return n.IsValid() && n.IsEmpty()
	}
	west, east := open(-1, 0), open(1, 0)
	north, south := open(0, -1), open(0, 1)

	r := RampNone
	if west || north {
		r |= RampNorthWest
	}
	if east || north {
		r |= RampNorthEast
	}
	if west || south {
		r |= RampSouthWest
	}
	if east || south {
		r |= RampSouthEast
	}
	return r
}

// UpdateRamps recomputes the ramp flags of every voxel in ch. Only
// CanRamp voxels with empty space above get corners. It writes only ch's
// ramp array, so chunks of one batch may be processed concurrently. It
// returns the number of voxels whose flags changed.
func UpdateRamps(w *World, ch *Chunk) int {
	defer profiling.Track("world.UpdateRamps")()
	changed := 0
	d := ch.Data
	for y := range ChunkSizeY {
		if ch.IsSliceEmpty(y) {
			continue
		}
		base := y * SliceVolume
		for i := base; i < base+SliceVolume; i++ {
			id := d.Types[i]
			want := RampNone
			if id != 0 && w.types.Get(id).CanRamp {
				h := w.HandleAt(ch, i)
				if above := h.Above(); !above.IsValid() || above.IsEmpty() {
					want = rampFor(h)
				}
			}
			if d.Ramps[i] != want {
				d.Ramps[i] = want
				ch.InvalidateSlice(y)
				changed++
			}
		}
	}
	return changed
}
