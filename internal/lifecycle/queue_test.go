package lifecycle

import (
	"testing"

	"voxel-colony/internal/world"
)

func TestWorkQueueHandsOffInOrder(t *testing.T) {
	q := newWorkQueue(4)
	var chunks []*world.Chunk
	for x := range int32(3) {
		ch := world.NewChunk(world.GlobalChunkCoordinate{X: x})
		ch.TryQueueRebuild()
		chunks = append(chunks, ch)
	}
	q.push(chunks, func(*world.Chunk) { t.Fatalf("queue with free slots released a chunk") })
	if q.len() != 3 {
		t.Fatalf("len %d, want 3", q.len())
	}
	first := q.pop(2)
	if len(first) != 2 || first[0] != chunks[0] || first[1] != chunks[1] {
		t.Errorf("first pop %v", first)
	}
	rest := q.pop(5)
	if len(rest) != 1 || rest[0] != chunks[2] {
		t.Errorf("second pop %v", rest)
	}
	if got := q.pop(1); got != nil {
		t.Errorf("empty queue returned %v", got)
	}
}

func TestWorkQueueReleasesOverflow(t *testing.T) {
	q := newWorkQueue(1)
	a := world.NewChunk(world.GlobalChunkCoordinate{})
	b := world.NewChunk(world.GlobalChunkCoordinate{X: 1})
	a.TryQueueRebuild()
	b.TryQueueRebuild()

	q.push([]*world.Chunk{a, b}, (*world.Chunk).FinishRebuild)
	if q.len() != 1 {
		t.Fatalf("len %d, want 1", q.len())
	}
	if !a.RebuildInProgress() {
		t.Errorf("queued chunk lost its queued flag")
	}
	if b.RebuildInProgress() {
		t.Errorf("overflowing chunk kept its queued flag and would never be queued again")
	}
}

func TestWorkQueueSizedToWorld(t *testing.T) {
	b := world.BoundsFromSize(3, 2, 4)
	if b.Volume() != 24 {
		t.Fatalf("volume %d, want 24", b.Volume())
	}
	if q := newWorkQueue(b.Volume()); cap(q.items) != 24 {
		t.Errorf("capacity %d", cap(q.items))
	}
}
