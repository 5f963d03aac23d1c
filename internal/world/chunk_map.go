package world

import (
	"errors"
	"fmt"
	"sync"

	"voxel-colony/internal/profiling"
)

var (
	ErrChunkExists = errors.New("chunk already present")
	ErrOutOfBounds = errors.New("chunk outside world bounds")
)

// Bounds is an inclusive box of chunk coordinates.
type Bounds struct {
	Min, Max GlobalChunkCoordinate
}

// Contains reports whether c lies inside b.
func (b Bounds) Contains(c GlobalChunkCoordinate) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X &&
		c.Y >= b.Min.Y && c.Y <= b.Max.Y &&
		c.Z >= b.Min.Z && c.Z <= b.Max.Z
}

// Volume returns the number of chunk coordinates inside b.
func (b Bounds) Volume() int {
	return int(b.Max.X-b.Min.X+1) * int(b.Max.Y-b.Min.Y+1) * int(b.Max.Z-b.Min.Z+1)
}

// Clamp returns the coordinate inside b closest to c.
func (b Bounds) Clamp(c GlobalChunkCoordinate) GlobalChunkCoordinate {
	return GlobalChunkCoordinate{
		X: min(max(c.X, b.Min.X), b.Max.X),
		Y: min(max(c.Y, b.Min.Y), b.Max.Y),
		Z: min(max(c.Z, b.Min.Z), b.Max.Z),
	}
}

func (b Bounds) extend(c GlobalChunkCoordinate) Bounds {
	return Bounds{
		Min: GlobalChunkCoordinate{X: min(b.Min.X, c.X), Y: min(b.Min.Y, c.Y), Z: min(b.Min.Z, c.Z)},
		Max: GlobalChunkCoordinate{X: max(b.Max.X, c.X), Y: max(b.Max.Y, c.Y), Z: max(b.Max.Z, c.Z)},
	}
}

// BoundsFromSize returns the box of sizeX*sizeY*sizeZ chunks starting at the
// origin chunk.
func BoundsFromSize(sizeX, sizeY, sizeZ int32) Bounds {
	return Bounds{Max: GlobalChunkCoordinate{X: sizeX - 1, Y: sizeY - 1, Z: sizeZ - 1}}
}

// ChunkMap is the sparse set of loaded chunks. Reads may come from any
// goroutine; inserts and removals are serialised by the write lock.
type ChunkMap struct {
	mu       sync.RWMutex
	chunks   map[GlobalChunkCoordinate]*Chunk
	bounds   Bounds
	loaded   Bounds
	modCount uint64
}

// NewChunkMap returns an empty map accepting chunks within bounds.
func NewChunkMap(bounds Bounds) *ChunkMap {
	return &ChunkMap{
		chunks: make(map[GlobalChunkCoordinate]*Chunk),
		bounds: bounds,
	}
}

// Get returns the chunk at c.
func (m *ChunkMap) Get(c GlobalChunkCoordinate) (*Chunk, bool) {
	m.mu.RLock()
	ch, ok := m.chunks[c]
	m.mu.RUnlock()
	return ch, ok
}

// Has reports whether a chunk is loaded at c.
func (m *ChunkMap) Has(c GlobalChunkCoordinate) bool {
	_, ok := m.Get(c)
	return ok
}

// Add inserts a chunk. It fails if the coordinate is taken or outside the
// world bounds; the caller must Remove first to replace a chunk.
func (m *ChunkMap) Add(ch *Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bounds.Contains(ch.ID) {
		return fmt.Errorf("add chunk %v: %w", ch.ID, ErrOutOfBounds)
	}
	if _, ok := m.chunks[ch.ID]; ok {
		return fmt.Errorf("add chunk %v: %w", ch.ID, ErrChunkExists)
	}
	if len(m.chunks) == 0 {
		m.loaded = Bounds{Min: ch.ID, Max: ch.ID}
	} else {
		m.loaded = m.loaded.extend(ch.ID)
	}
	m.chunks[ch.ID] = ch
	m.modCount++
	return nil
}

// Remove deletes the chunk at c and returns it.
func (m *ChunkMap) Remove(c GlobalChunkCoordinate) (*Chunk, bool) {
	defer profiling.Track("world.ChunkMap.Remove")()
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chunks[c]
	if !ok {
		return nil, false
	}
	delete(m.chunks, c)
	m.modCount++
	m.recomputeLoaded()
	return ch, true
}

// Clear removes every chunk.
func (m *ChunkMap) Clear() {
	m.mu.Lock()
	clear(m.chunks)
	m.loaded = Bounds{}
	m.modCount++
	m.mu.Unlock()
}

func (m *ChunkMap) recomputeLoaded() {
	first := true
	for id := range m.chunks {
		if first {
			m.loaded = Bounds{Min: id, Max: id}
			first = false
			continue
		}
		m.loaded = m.loaded.extend(id)
	}
	if first {
		m.loaded = Bounds{}
	}
}

// ConfineToBounds clamps c to the box spanned by the loaded chunks.
func (m *ChunkMap) ConfineToBounds(c GlobalChunkCoordinate) GlobalChunkCoordinate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded.Clamp(c)
}

// Bounds returns the configured world bounds.
func (m *ChunkMap) Bounds() Bounds { return m.bounds }

// LoadedBounds returns the box spanned by the loaded chunks.
func (m *ChunkMap) LoadedBounds() Bounds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Chunks returns a snapshot of the loaded chunks in no particular order.
func (m *ChunkMap) Chunks() []*Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Chunk, 0, len(m.chunks))
	for _, ch := range m.chunks {
		out = append(out, ch)
	}
	return out
}

func (m *ChunkMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// ModCount increases on every add or remove.
func (m *ChunkMap) ModCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modCount
}
