package world

import (
	"sync"

	"go.uber.org/zap"

	"voxel-colony/internal/registry"
)

// ChangeEvent describes a voxel type change made through a handle.
type ChangeEvent struct {
	Pos  GlobalVoxelCoordinate
	Prev uint8
	New  uint8
}

// World ties the voxel type library to the loaded chunks and fans voxel
// events out to subscribers.
type World struct {
	types  *registry.Library
	chunks *ChunkMap
	log    *zap.Logger

	listenersMu sync.RWMutex
	onChange    []func(ChangeEvent)
	onDestroy   []func(ChangeEvent)

	revealMu sync.Mutex
	reveal   []GlobalVoxelCoordinate
}

// New returns an empty world. A nil logger discards output.
func New(types *registry.Library, bounds Bounds, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		types:  types,
		chunks: NewChunkMap(bounds),
		log:    log,
	}
}

func (w *World) Types() *registry.Library { return w.types }
func (w *World) Chunks() *ChunkMap { return w.chunks }
func (w *World) Log() *zap.Logger { return w.log }

// SubscribeChange registers fn for every type change made through SetType.
func (w *World) SubscribeChange(fn func(ChangeEvent)) {
	w.listenersMu.Lock()
	w.onChange = append(w.onChange, fn)
	w.listenersMu.Unlock()
}

// SubscribeDestroy registers fn for changes from a solid type to empty.
func (w *World) SubscribeDestroy(fn func(ChangeEvent)) {
	w.listenersMu.Lock()
	w.onDestroy = append(w.onDestroy, fn)
	w.listenersMu.Unlock()
}

func (w *World) notify(list func() []func(ChangeEvent), ev ChangeEvent) {
	for _, fn := range list() {
		w.callListener(fn, ev)
	}
}

// callListener isolates subscriber panics from voxel mutation.
func (w *World) callListener(fn func(ChangeEvent), ev ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Warn("voxel listener panicked", zap.Any("pos", ev.Pos), zap.Any("panic", r))
		}
	}()
	fn(ev)
}

func (w *World) changeListeners() []func(ChangeEvent) {
	w.listenersMu.RLock()
	defer w.listenersMu.RUnlock()
	return w.onChange
}

func (w *World) destroyListeners() []func(ChangeEvent) {
	w.listenersMu.RLock()
	defer w.listenersMu.RUnlock()
	return w.onDestroy
}

func (w *World) enqueueReveal(g GlobalVoxelCoordinate) {
	w.revealMu.Lock()
	w.reveal = append(w.reveal, g)
	w.revealMu.Unlock()
}

// DrainRevealQueue returns and clears the voxels waiting for reveal.
func (w *World) DrainRevealQueue() []GlobalVoxelCoordinate {
	w.revealMu.Lock()
	out := w.reveal
	w.reveal = nil
	w.revealMu.Unlock()
	return out
}

var revealDirs = [6][3]int32{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

// Reveal marks the voxel at g and the empty space connected to it as
// explored, along with the solid voxels bordering that space. At most limit
// voxels are visited. It returns the number of voxels newly explored.
func (w *World) Reveal(g GlobalVoxelCoordinate, limit int) int {
	start := w.Handle(g)
	if !start.IsValid() {
		return 0
	}
	revealed := 0
	visited := map[GlobalVoxelCoordinate]struct{}{g: {}}
	queue := []VoxelHandle{start}
	for len(queue) > 0 && len(visited) <= limit {
		h := queue[0]
		queue = queue[1:]
		if !h.Explored() {
			h.SetExplored(true)
			revealed++
		}
		if !h.IsEmpty() {
			continue
		}
		for _, d := range revealDirs {
			n := h.Neighbor(d[0], d[1], d[2])
			if !n.IsValid() {
				continue
			}
			if _, seen := visited[n.Coord]; seen {
				continue
			}
			visited[n.Coord] = struct{}{}
			queue = append(queue, n)
		}
	}
	return revealed
}

// ProcessReveals drains the reveal queue and reveals each entry.
func (w *World) ProcessReveals(limit int) int {
	total := 0
	for _, g := range w.DrainRevealQueue() {
		total += w.Reveal(g, limit)
	}
	return total
}
