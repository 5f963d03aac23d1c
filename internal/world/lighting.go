package world

import "voxel-colony/internal/profiling"

// Ambient is the light level of a voxel face that sees no sky.
const Ambient uint8 = 48

// RecalculateSunlight recomputes every column of ch from the chunk above.
// The top chunk of a column is lit from the sky. Light passes through empty
// and transparent voxels and stops on the first opaque voxel, which is lit
// itself. It reads the chunk above, so columns of chunks must be processed
// top-down and not concurrently with the chunk above.
func RecalculateSunlight(w *World, ch *Chunk) {
	defer profiling.Track("world.RecalculateSunlight")()
	d := ch.Data
	above, hasAbove := w.chunks.Get(ch.ID.Offset(0, 1, 0))
	for z := range int32(ChunkSizeZ) {
		for x := range int32(ChunkSizeX) {
			light := MaxSunlight
			if hasAbove {
				i := LocalVoxelCoordinate{X: x, Y: 0, Z: z}.Index()
				light = above.Data.Sunlight[i]
				if id := above.Data.Types[i]; id != 0 && w.types.Get(id).IsOpaque() {
					light = 0
				}
			}
			for y := int32(ChunkSizeY - 1); y >= 0; y-- {
				i := LocalVoxelCoordinate{X: x, Y: y, Z: z}.Index()
				if d.Sunlight[i] != light {
					d.Sunlight[i] = light
					ch.InvalidateSlice(int(y))
				}
				if id := d.Types[i]; id != 0 && w.types.Get(id).IsOpaque() {
					light = 0
				}
			}
		}
	}
}

var lightNeighbors = [6][3]int32{{0, 1, 0}, {1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}}

// CalculateLightCache fills the per-voxel light cache used by meshing. An
// empty voxel keeps its own sunlight; a solid voxel takes the brightest
// sunlight among its six neighbours, never darker than Ambient. It reads
// neighbour sunlight and writes only ch's cache.
func CalculateLightCache(w *World, ch *Chunk) {
	defer profiling.Track("world.CalculateLightCache")()
	d := ch.Data
	for y := range ChunkSizeY {
		base := y * SliceVolume
		if ch.IsSliceEmpty(y) {
			copy(d.Light[base:base+SliceVolume], d.Sunlight[base:base+SliceVolume])
			continue
		}
		for i := base; i < base+SliceVolume; i++ {
			if d.Types[i] == 0 {
				d.Light[i] = d.Sunlight[i]
				continue
			}
			h := w.HandleAt(ch, i)
			best := Ambient
			for _, off := range lightNeighbors {
				n := h.Neighbor(off[0], off[1], off[2])
				if !n.IsValid() || !n.IsEmpty() {
					continue
				}
				if s := n.Sunlight(); s > best {
					best = s
				}
			}
			d.Light[i] = best
		}
	}
	ch.SetNeedsLighting(false)
}
