package lifecycle

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-colony/internal/world"
)

// workQueue hands chunks from the main goroutine to one worker over a
// buffered channel. A chunk is queued at most once at a time through its
// queued flags, and the channel has a slot per chunk in the world bounds.
type workQueue struct {
	items chan *world.Chunk
}

func newWorkQueue(capacity int) workQueue {
	return workQueue{items: make(chan *world.Chunk, capacity)}
}

// push never blocks. A chunk that finds the queue full, which only happens
// while replaced chunks still sit in it, is handed to release so a later
// scan queues it again.
func (q workQueue) push(chunks []*world.Chunk, release func(*world.Chunk)) {
	for _, ch := range chunks {
		select {
		case q.items <- ch:
		default:
			release(ch)
		}
	}
}

// pop takes up to n chunks without blocking.
func (q workQueue) pop(n int) []*world.Chunk {
	var out []*world.Chunk
	for len(out) < n {
		select {
		case ch := <-q.items:
			out = append(out, ch)
		default:
			return out
		}
	}
	return out
}

func (q workQueue) len() int { return len(q.items) }

// sortByDistance orders chunks nearest to camera first.
func sortByDistance(chunks []*world.Chunk, camera mgl32.Vec3) {
	slices.SortFunc(chunks, func(a, b *world.Chunk) int {
		da := a.Center().Sub(camera).LenSqr()
		db := b.Center().Sub(camera).LenSqr()
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		}
		return 0
	})
}

// signal wakes a worker without blocking. A pending wake-up absorbs
// further signals.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
