package world

import (
	"errors"
	"fmt"
)

var ErrBadRecord = errors.New("malformed chunk record")

// ChunkRecord is the flat serialisable form of a chunk. Every array is in
// Y-major index order and must be restored in the same order.
type ChunkRecord struct {
	X, Y, Z int32

	Types         []uint8
	Health        []uint8
	Sunlight      []uint8
	Ramps         []uint8
	LiquidTypes   []uint8
	LiquidAmounts []uint8
	Explored      []bool
}

// Coord returns the chunk coordinate stored in the record.
func (r *ChunkRecord) Coord() GlobalChunkCoordinate {
	return GlobalChunkCoordinate{X: r.X, Y: r.Y, Z: r.Z}
}

// Record copies the chunk's voxel arrays into a record.
func (c *Chunk) Record() *ChunkRecord {
	d := c.Data
	r := &ChunkRecord{
		X: c.ID.X, Y: c.ID.Y, Z: c.ID.Z,
		Types:         append([]uint8(nil), d.Types[:]...),
		Health:        append([]uint8(nil), d.Health[:]...),
		Sunlight:      append([]uint8(nil), d.Sunlight[:]...),
		Ramps:         make([]uint8, ChunkVolume),
		LiquidTypes:   make([]uint8, ChunkVolume),
		LiquidAmounts: make([]uint8, ChunkVolume),
		Explored:      append([]bool(nil), d.Explored[:]...),
	}
	for i := range ChunkVolume {
		r.Ramps[i] = uint8(d.Ramps[i])
		r.LiquidTypes[i] = uint8(d.Water[i].Type)
		r.LiquidAmounts[i] = d.Water[i].Amount
	}
	return r
}

// ChunkFromRecord rebuilds a chunk, recounts its slices and flags all
// derived state for recomputation.
func ChunkFromRecord(r *ChunkRecord) (*Chunk, error) {
	arrays := map[string]int{
		"types":          len(r.Types),
		"health":         len(r.Health),
		"sunlight":       len(r.Sunlight),
		"ramps":          len(r.Ramps),
		"liquid types":   len(r.LiquidTypes),
		"liquid amounts": len(r.LiquidAmounts),
		"explored":       len(r.Explored),
	}
	for name, n := range arrays {
		if n != ChunkVolume {
			return nil, fmt.Errorf("chunk %d,%d,%d %s: %d entries, want %d: %w",
				r.X, r.Y, r.Z, name, n, ChunkVolume, ErrBadRecord)
		}
	}

	c := NewChunk(r.Coord())
	d := c.Data
	copy(d.Types[:], r.Types)
	copy(d.Health[:], r.Health)
	copy(d.Sunlight[:], r.Sunlight)
	copy(d.Explored[:], r.Explored)
	for i := range ChunkVolume {
		d.Ramps[i] = RampType(r.Ramps[i])
		d.Water[i] = WaterCell{Type: LiquidType(r.LiquidTypes[i]), Amount: r.LiquidAmounts[i]}.normalized()
	}
	c.RecountSlices()
	c.SetNeedsLiquidRebuild(true)
	return c, nil
}
