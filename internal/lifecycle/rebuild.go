package lifecycle

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"voxel-colony/internal/profiling"
	"voxel-colony/internal/world"
)

// drainRebuilds empties the mesh rebuild queue one batch at a time.
func (m *Manager) drainRebuilds(ctx context.Context) {
	for ctx.Err() == nil && !m.paused.Load() {
		batch := m.rebuildQueue.pop(m.settings.MaxRebuildBatch)
		if len(batch) == 0 {
			return
		}
		m.rebuildBatch(batch)
	}
}

// rebuildBatch recomputes the derived state of a batch in stages. Every
// stage finishes for the whole batch before the next starts: ramps change
// what sunlight sees, the light cache reads final sunlight and meshes read
// the light cache. A chunk that panics in any stage is dropped from the
// rest of the pass.
func (m *Manager) rebuildBatch(batch []*world.Chunk) {
	defer profiling.Track("lifecycle.rebuildBatch")()
	m.phase.RLock()
	defer m.phase.RUnlock()

	for _, ch := range batch {
		ch.SetNeedsRebuild(false)
	}
	defer func() {
		for _, ch := range batch {
			ch.FinishRebuild()
		}
	}()

	live := m.parallel("ramps", batch, func(ch *world.Chunk) {
		world.UpdateRamps(m.world, ch)
	})

	// Sunlight runs top-down so each chunk reads the finished chunk above.
	slices.SortFunc(live, func(a, b *world.Chunk) int { return int(b.ID.Y) - int(a.ID.Y) })
	lit := live[:0:0]
	for _, ch := range live {
		if !m.safely("sunlight", ch, func() { world.RecalculateSunlight(m.world, ch) }) {
			continue
		}
		lit = append(lit, ch)
		// A changed bottom slice leaves the chunk below with stale columns.
		if ch.IsSliceDirty(0) {
			if below, ok := m.world.Chunks().Get(ch.ID.Offset(0, -1, 0)); ok && !slices.Contains(live, below) {
				below.InvalidateSlice(world.ChunkSizeY - 1)
			}
		}
	}
	// The pass's own ramp and sunlight writes are covered by the meshes it
	// is about to build.
	for _, ch := range lit {
		ch.SetNeedsRebuild(false)
	}

	lit = m.parallel("light", lit, func(ch *world.Chunk) {
		world.CalculateLightCache(m.world, ch)
	})

	meshed := m.parallel("mesh", lit, func(ch *world.Chunk) {
		mesh, err := m.mesher.BuildMesh(m.world, ch)
		if err != nil {
			m.stats.failedChunks.Add(1)
			m.log.Warn("mesh build failed", zap.Any("chunk", ch.ID), zap.Error(err))
			return
		}
		ch.TakeDirtySlices()
		ch.SwapMesh(mesh)
		m.stats.rebuilt.Add(1)
	})
	profiling.Count("lifecycle.rebuilt", len(meshed))
	m.log.Debug("rebuild pass", zap.Int("batch", len(batch)), zap.Int("meshed", len(meshed)))
}

// parallel runs fn for every chunk on the pool and waits for all of them.
// It returns the chunks that did not panic, in input order.
func (m *Manager) parallel(stage string, chunks []*world.Chunk, fn func(ch *world.Chunk)) []*world.Chunk {
	ok := make([]bool, len(chunks))
	group := m.pool.NewGroup()
	for i, ch := range chunks {
		group.Submit(func() {
			ok[i] = m.safely(stage, ch, func() { fn(ch) })
		})
	}
	if err := group.Wait(); err != nil {
		m.log.Warn("rebuild stage incomplete", zap.String("stage", stage), zap.Error(err))
	}
	out := make([]*world.Chunk, 0, len(chunks))
	for i, ch := range chunks {
		if ok[i] {
			out = append(out, ch)
		}
	}
	return out
}

// safely runs fn and reports whether it returned normally.
func (m *Manager) safely(stage string, ch *world.Chunk, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.stats.failedChunks.Add(1)
			m.log.Error("skipping chunk", zap.String("stage", stage), zap.Any("chunk", ch.ID), zap.Any("panic", r))
			ok = false
		}
	}()
	fn()
	return true
}

// drainLiquidRebuilds empties the liquid mesh queue, checking the paused
// flag between chunks.
func (m *Manager) drainLiquidRebuilds(ctx context.Context) {
	for ctx.Err() == nil && !m.paused.Load() {
		next := m.liquidQueue.pop(1)
		if len(next) == 0 {
			return
		}
		m.rebuildLiquid(next[0])
	}
}

func (m *Manager) rebuildLiquid(ch *world.Chunk) {
	defer ch.FinishLiquidRebuild()
	m.phase.RLock()
	defer m.phase.RUnlock()
	ch.SetNeedsLiquidRebuild(false)
	m.safely("liquid mesh", ch, func() {
		mesh, err := m.mesher.BuildLiquidMesh(m.world, ch)
		if err != nil {
			m.stats.failedChunks.Add(1)
			m.log.Warn("liquid mesh build failed", zap.Any("chunk", ch.ID), zap.Error(err))
			return
		}
		ch.SwapLiquidMesh(mesh)
		m.stats.liquidRebuilt.Add(1)
	})
}
