// Package lifecycle runs the background workers that keep loaded chunks
// current: terrain generation, mesh rebuilds, liquid mesh rebuilds and the
// fluid simulation tick.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxel-colony/internal/fluid"
	"voxel-colony/internal/profiling"
	"voxel-colony/internal/world"
	"voxel-colony/internal/worldgen"
)

// MeshBuilder is the renderer collaborator. The returned meshes are opaque
// to this package and are installed on the chunk as they are.
type MeshBuilder interface {
	BuildMesh(w *world.World, ch *world.Chunk) (any, error)
	BuildLiquidMesh(w *world.World, ch *world.Chunk) (any, error)
}

// Stats counts the work done since the manager was created.
type Stats struct {
	Generated      int64
	Rebuilt        int64
	LiquidRebuilt  int64
	FluidTicks     int64
	FailedChunks   int64
	DroppedSpawns  int64
	SplashesPlayed int64
}

type counters struct {
	generated      atomic.Int64
	rebuilt        atomic.Int64
	liquidRebuilt  atomic.Int64
	fluidTicks     atomic.Int64
	failedChunks   atomic.Int64
	droppedSpawns  atomic.Int64
	splashesPlayed atomic.Int64
}

// Manager owns the worker goroutines and the work handed to them.
//
// The world is guarded by a phase lock: the fluid tick, chunk commits,
// reveals and Mutate callbacks write under the exclusive lock, while mesh and
// liquid rebuild passes read under the shared one and write only derived
// state of the chunks in their own batch.
type Manager struct {
	world      *world.World
	gen        *worldgen.Generator
	sim        *fluid.Simulator
	mesher     MeshBuilder
	spawner    worldgen.Spawner
	dispatcher *fluid.Dispatcher
	settings   Settings
	log        *zap.Logger

	pool   pond.Pool
	phase  sync.RWMutex
	paused atomic.Bool

	cameraMu sync.Mutex
	camera   mgl32.Vec3

	genMu      sync.Mutex
	toGenerate []world.GlobalChunkCoordinate
	pending    map[world.GlobalChunkCoordinate]struct{}
	ready      []worldgen.Result

	rebuildQueue workQueue
	liquidQueue  workQueue

	genSignal     chan struct{}
	rebuildSignal chan struct{}
	liquidSignal  chan struct{}
	fluidSignal   chan struct{}

	fluidAcc time.Duration
	stats    counters

	startOnce    sync.Once
	shutdownOnce sync.Once
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// Option configures optional collaborators.
type Option func(*Manager)

// WithSpawner routes generator spawn requests to s. Without one they are
// dropped.
func WithSpawner(s worldgen.Spawner) Option { return func(m *Manager) { m.spawner = s } }

// WithDispatcher plays fluid splashes through d. Without one they are
// discarded.
func WithDispatcher(d *fluid.Dispatcher) Option { return func(m *Manager) { m.dispatcher = d } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(m *Manager) { m.log = log } }

// New wires the manager. Workers start with Start.
func New(w *world.World, gen *worldgen.Generator, sim *fluid.Simulator, mesher MeshBuilder, settings Settings, opts ...Option) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if w == nil || gen == nil || sim == nil || mesher == nil {
		return nil, fmt.Errorf("lifecycle: world, generator, simulator and mesh builder are required")
	}
	m := &Manager{
		world:         w,
		gen:           gen,
		sim:           sim,
		mesher:        mesher,
		settings:      settings,
		pending:       make(map[world.GlobalChunkCoordinate]struct{}),
		genSignal:     make(chan struct{}, 1),
		rebuildSignal: make(chan struct{}, 1),
		liquidSignal:  make(chan struct{}, 1),
		fluidSignal:   make(chan struct{}, 1),
		rebuildQueue:  newWorkQueue(w.Chunks().Bounds().Volume()),
		liquidQueue:   newWorkQueue(w.Chunks().Bounds().Volume()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.pool = pond.NewPool(settings.RebuildParallelism)
	return m, nil
}

func (m *Manager) World() *world.World { return m.world }

// Start launches the generation, rebuild, liquid rebuild and fluid workers.
// They stop when ctx is cancelled or Shutdown is called.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		ctx, m.cancel = context.WithCancel(ctx)
		m.wg.Add(4)
		go m.loop(ctx, "generation", m.genSignal, m.generatePending)
		go m.loop(ctx, "rebuild", m.rebuildSignal, m.drainRebuilds)
		go m.loop(ctx, "liquid", m.liquidSignal, m.drainLiquidRebuilds)
		go m.loop(ctx, "fluid", m.fluidSignal, m.fluidTick)
	})
}

// loop blocks on its wake-up signal and the shutdown signal, then runs work
// unless the manager is paused.
func (m *Manager) loop(ctx context.Context, name string, wake <-chan struct{}, work func(ctx context.Context)) {
	defer m.wg.Done()
	m.log.Debug("worker started", zap.String("worker", name))
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("worker stopped", zap.String("worker", name))
			return
		case <-wake:
		}
		if m.paused.Load() {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("worker pass failed", zap.String("worker", name), zap.Any("panic", r))
				}
			}()
			work(ctx)
		}()
	}
}

// Pause stops the workers between items. Queued work is kept.
func (m *Manager) Pause() { m.paused.Store(true) }

// Resume restarts paused workers.
func (m *Manager) Resume() {
	m.paused.Store(false)
	signal(m.genSignal)
	signal(m.rebuildSignal)
	signal(m.liquidSignal)
}

func (m *Manager) Paused() bool { return m.paused.Load() }

// Shutdown stops the workers and waits for them. It is safe to call more
// than once and without Start.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		m.pool.StopAndWait()
		m.log.Info("lifecycle stopped",
			zap.Int64("generated", m.stats.generated.Load()),
			zap.Int64("rebuilt", m.stats.rebuilt.Load()),
			zap.Int64("fluidTicks", m.stats.fluidTicks.Load()))
	})
}

// Mutate runs fn with exclusive access to the world. Gameplay writes made
// while workers run go through it.
func (m *Manager) Mutate(fn func(w *world.World)) {
	m.phase.Lock()
	defer m.phase.Unlock()
	fn(m.world)
}

func (m *Manager) Stats() Stats {
	return Stats{
		Generated:      m.stats.generated.Load(),
		Rebuilt:        m.stats.rebuilt.Load(),
		LiquidRebuilt:  m.stats.liquidRebuilt.Load(),
		FluidTicks:     m.stats.fluidTicks.Load(),
		FailedChunks:   m.stats.failedChunks.Load(),
		DroppedSpawns:  m.stats.droppedSpawns.Load(),
		SplashesPlayed: m.stats.splashesPlayed.Load(),
	}
}

func (m *Manager) Camera() mgl32.Vec3 {
	m.cameraMu.Lock()
	defer m.cameraMu.Unlock()
	return m.camera
}

// RequestGeneration queues chunk coordinates for the generation worker.
// Coordinates outside the world bounds, already loaded or already pending
// are ignored. It returns how many were queued.
func (m *Manager) RequestGeneration(coords ...world.GlobalChunkCoordinate) int {
	bounds := m.world.Chunks().Bounds()
	m.genMu.Lock()
	defer m.genMu.Unlock()
	queued := 0
	for _, c := range coords {
		if !bounds.Contains(c) || m.world.Chunks().Has(c) {
			continue
		}
		if _, ok := m.pending[c]; ok {
			continue
		}
		m.pending[c] = struct{}{}
		m.toGenerate = append(m.toGenerate, c)
		queued++
	}
	return queued
}

// GenerateNow generates and commits chunks on the calling goroutine. It is
// meant for the initial world before Start, or for the main goroutine.
func (m *Manager) GenerateNow(coords ...world.GlobalChunkCoordinate) error {
	var errs []error
	results := make([]worldgen.Result, 0, len(coords))
	for _, c := range coords {
		if m.world.Chunks().Has(c) {
			continue
		}
		results = append(results, m.gen.GenerateChunk(c))
	}
	m.phase.Lock()
	for _, r := range results {
		if err := m.commit(r); err != nil {
			errs = append(errs, err)
		}
	}
	m.phase.Unlock()
	return errors.Join(errs...)
}

// SeedOres runs world-scale ore seeding over the loaded chunks.
func (m *Manager) SeedOres(seed uint64) int {
	m.phase.Lock()
	defer m.phase.Unlock()
	return m.gen.SeedOres(m.world, rand.New(rand.NewPCG(seed, seed^0xD1B54A32D192ED03)))
}

// generatePending is the generation worker's pass. The request list is
// snapshotted and cleared first so requests made during the pass are kept
// for the next one.
func (m *Manager) generatePending(ctx context.Context) {
	m.genMu.Lock()
	batch := m.toGenerate
	m.toGenerate = nil
	m.genMu.Unlock()

	for i, c := range batch {
		if ctx.Err() != nil || m.paused.Load() {
			m.genMu.Lock()
			m.toGenerate = append(batch[i:], m.toGenerate...)
			m.genMu.Unlock()
			return
		}
		r, ok := m.generateSafely(c)
		m.genMu.Lock()
		if ok {
			m.ready = append(m.ready, r)
		} else {
			delete(m.pending, c)
		}
		m.genMu.Unlock()
	}
}

func (m *Manager) generateSafely(c world.GlobalChunkCoordinate) (r worldgen.Result, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			m.stats.failedChunks.Add(1)
			m.log.Error("chunk generation failed", zap.Any("chunk", c), zap.Any("panic", p))
			ok = false
		}
	}()
	return m.gen.GenerateChunk(c), true
}

// commit registers a generated chunk, grows its surface life, forwards its
// spawns and flags the horizontal neighbours so their seams rebuild. The
// caller holds the exclusive phase lock.
func (m *Manager) commit(r worldgen.Result) error {
	ch := r.Chunk
	if err := m.world.Chunks().Add(ch); err != nil {
		return fmt.Errorf("commit chunk %v: %w", ch.ID, err)
	}
	spawns := append(r.Spawns, m.gen.SurfaceLife(m.world, ch)...)
	for _, off := range [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if n, ok := m.world.Chunks().Get(ch.ID.Offset(off[0], 0, off[1])); ok {
			for y := range world.ChunkSizeY {
				if !n.IsSliceEmpty(y) {
					n.InvalidateSlice(y)
				}
			}
			n.SetNeedsLighting(true)
		}
	}
	m.spawn(spawns)
	m.stats.generated.Add(1)
	profiling.Count("lifecycle.generated", 1)
	return nil
}

func (m *Manager) spawn(reqs []worldgen.SpawnRequest) {
	for _, req := range reqs {
		if m.spawner == nil {
			m.stats.droppedSpawns.Add(1)
			continue
		}
		if err := m.spawner.Spawn(req); err != nil {
			m.stats.droppedSpawns.Add(1)
			m.log.Warn("spawn failed", zap.String("template", req.Template), zap.Error(err))
		}
	}
}

// Update is the main-goroutine step. It commits generated chunks, processes
// reveals, plays splashes, queues dirty chunks nearest to camera first and
// advances the fluid clock by dt.
func (m *Manager) Update(dt time.Duration, camera mgl32.Vec3) {
	defer profiling.Track("lifecycle.Update")()
	m.cameraMu.Lock()
	m.camera = camera
	m.cameraMu.Unlock()

	m.genMu.Lock()
	ready := m.ready
	m.ready = nil
	for _, r := range ready {
		delete(m.pending, r.Chunk.ID)
	}
	wantGen := len(m.toGenerate) > 0
	m.genMu.Unlock()

	m.phase.Lock()
	for _, r := range ready {
		if err := m.commit(r); err != nil {
			m.log.Warn("dropping generated chunk", zap.Error(err))
		}
	}
	m.world.ProcessReveals(m.settings.RevealLimit)
	m.phase.Unlock()

	if splashes := m.sim.DrainSplashes(); len(splashes) > 0 && m.dispatcher != nil {
		m.stats.splashesPlayed.Add(int64(m.dispatcher.Dispatch(splashes)))
	}

	if wantGen {
		signal(m.genSignal)
	}
	m.enqueueDirty(camera)

	if m.paused.Load() {
		return
	}
	m.fluidAcc = min(m.fluidAcc+dt, m.settings.MaxFluidBacklog)
	if m.fluidAcc >= m.settings.FluidTick {
		m.fluidAcc -= m.settings.FluidTick
		signal(m.fluidSignal)
	}
}

// enqueueDirty scans the loaded chunks for stale meshes. Chunks already
// queued are skipped through their queued flags.
func (m *Manager) enqueueDirty(camera mgl32.Vec3) {
	var rebuild, liquid []*world.Chunk
	for _, ch := range m.world.Chunks().Chunks() {
		if ch.NeedsRebuild() && ch.TryQueueRebuild() {
			rebuild = append(rebuild, ch)
		}
		if ch.NeedsLiquidRebuild() && ch.TryQueueLiquidRebuild() {
			liquid = append(liquid, ch)
		}
	}
	if len(rebuild) > 0 {
		sortByDistance(rebuild, camera)
		m.rebuildQueue.push(rebuild, (*world.Chunk).FinishRebuild)
		signal(m.rebuildSignal)
	}
	if len(liquid) > 0 {
		sortByDistance(liquid, camera)
		m.liquidQueue.push(liquid, (*world.Chunk).FinishLiquidRebuild)
		signal(m.liquidSignal)
	}
}

// QueuedRebuilds returns the lengths of the mesh and liquid mesh queues.
func (m *Manager) QueuedRebuilds() (mesh, liquid int) {
	return m.rebuildQueue.len(), m.liquidQueue.len()
}

// PendingGeneration returns how many chunks are requested but not yet
// committed.
func (m *Manager) PendingGeneration() int {
	m.genMu.Lock()
	defer m.genMu.Unlock()
	return len(m.pending)
}

func (m *Manager) fluidTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	camera := m.Camera()
	m.phase.Lock()
	m.sim.Update(camera)
	m.phase.Unlock()
	m.stats.fluidTicks.Add(1)
}
