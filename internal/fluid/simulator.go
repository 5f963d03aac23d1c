// Package fluid runs the cellular water and lava simulation over the
// loaded chunks.
package fluid

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxel-colony/internal/profiling"
	"voxel-colony/internal/registry"
	"voxel-colony/internal/world"
)

// Transfer records liquid moved between two voxels during a tick. Mixing
// transfers carried liquid into a voxel holding the other liquid; the moved
// amount is consumed and the destination reacts on resolution.
type Transfer struct {
	From, To world.GlobalVoxelCoordinate
	Liquid   world.LiquidType
	Amount   uint8
	Fall     bool
	Mixing   bool
}

// Splash is a visual and audio cue left by falling liquid.
type Splash struct {
	Pos       mgl32.Vec3
	Liquid    world.LiquidType
	Effect    string
	Tint      mgl32.Vec4
	Particles int
	Sound     string
}

var horizontal = [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Simulator owns the liquid phase of every loaded chunk. Update must be
// called from one goroutine at a time; splashes may be drained from any.
type Simulator struct {
	world    *world.World
	settings Settings
	rng      *rand.Rand
	log      *zap.Logger
	reaction *registry.VoxelType

	cells     []int
	transfers []Transfer
	// reacting holds mixing destinations awaiting ResolveTransfers. They
	// keep their liquid in place until then.
	reacting map[world.GlobalVoxelCoordinate]struct{}

	splashMu sync.Mutex
	splashes []Splash
}

// New returns a simulator over w. seed fixes the visiting order and the
// random rolls, so runs with equal seeds are reproducible.
func New(w *world.World, settings Settings, seed uint64, log *zap.Logger) (*Simulator, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	reaction, ok := w.Types().Lookup(settings.ReactionType)
	if !ok {
		return nil, fmt.Errorf("fluid reaction type %q: %w", settings.ReactionType, registry.ErrUnknownType)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		world:    w,
		settings: settings,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		log:      log,
		reaction: reaction,
		reacting: make(map[world.GlobalVoxelCoordinate]struct{}),
	}, nil
}

func (s *Simulator) Settings() Settings { return s.settings }

// Update advances every loaded chunk by one tick, nearest to camera first,
// then resolves liquid reactions. It returns the number of cell changes.
func (s *Simulator) Update(camera mgl32.Vec3) int {
	defer profiling.Track("fluid.Update")()
	chunks := s.world.Chunks().Chunks()
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
	changed := 0
	for _, ch := range chunks {
		changed += s.UpdateChunk(ch)
	}
	s.ResolveTransfers()
	profiling.Count("fluid.changes", changed)
	return changed
}

// UpdateChunk runs one tick over the liquid cells of ch in a fresh random
// order. Each cell may evaporate, then fall, then spread to its four
// horizontal neighbours in random order. The chunk is flagged for a liquid
// mesh rebuild when anything changed or on its first pass.
func (s *Simulator) UpdateChunk(ch *world.Chunk) int {
	d := ch.Data
	s.cells = s.cells[:0]
	for y := range world.ChunkSizeY {
		if ch.IsSliceDry(y) {
			continue
		}
		base := y * world.SliceVolume
		for i := base; i < base+world.SliceVolume; i++ {
			if d.Water[i].Amount >= 1 && d.Types[i] == registry.EmptyID {
				s.cells = append(s.cells, i)
			}
		}
	}
	s.rng.Shuffle(len(s.cells), func(a, b int) { s.cells[a], s.cells[b] = s.cells[b], s.cells[a] })

	changed := 0
	for _, i := range s.cells {
		changed += s.updateCell(s.world.HandleAt(ch, i))
	}
	first := ch.TakeFirstLiquidPass()
	if changed > 0 || first {
		ch.SetNeedsLiquidRebuild(true)
	}
	return changed
}

func (s *Simulator) updateCell(h world.VoxelHandle) int {
	cell := h.Water()
	if cell.Empty() || !h.IsEmpty() {
		return 0
	}
	if _, ok := s.reacting[h.Coord]; ok {
		return 0
	}
	liquid := cell.Type
	changed := 0

	if cell.Amount < s.settings.EvaporationThreshold && s.rng.Float64() < s.settings.EvaporationChance {
		changed++
		if cell.Amount <= 1 {
			h.SetLiquid(world.WaterCell{})
			if liquid == world.LiquidLava {
				h.SetType(s.reaction)
			}
			return changed
		}
		cell.Amount--
		h.SetLiquid(cell)
	}

	if below := h.Below(); below.IsValid() && below.IsEmpty() {
		if moved := s.move(h, below, &cell, cell.Amount, true); moved > 0 {
			changed++
			s.addSplash(below, liquid, moved)
			if cell.Amount == 0 {
				return changed
			}
		}
	}

	dirs := horizontal
	s.rng.Shuffle(len(dirs), func(a, b int) { dirs[a], dirs[b] = dirs[b], dirs[a] })
	for _, dir := range dirs {
		if cell.Amount < 1 {
			break
		}
		n := h.Neighbor(dir[0], 0, dir[1])
		if !n.IsValid() || !n.IsEmpty() {
			continue
		}
		nw := n.Water()
		if nw.Amount >= cell.Amount {
			continue
		}
		free := world.LiquidCapacity - nw.Amount
		want := uint8(float64(min(free, cell.Amount)) * s.spreadRate(liquid))
		// never overshoot the level of the source
		want = min(want, (cell.Amount-nw.Amount)/2)
		if want == 0 {
			continue
		}
		if s.move(h, n, &cell, want, false) > 0 {
			changed++
		}
	}
	return changed
}

// move transfers up to want units from src to dst. Liquid entering a cell of
// the other liquid is consumed; the reaction itself happens in
// ResolveTransfers. It returns the amount moved.
func (s *Simulator) move(src, dst world.VoxelHandle, cell *world.WaterCell, want uint8, fall bool) uint8 {
	liquid := cell.Type
	dw := dst.Water()
	mixing := !dw.Empty() && dw.Type != liquid
	amount := min(want, cell.Amount)
	if !mixing {
		amount = min(amount, world.LiquidCapacity-dw.Amount)
	}
	if amount == 0 {
		return 0
	}
	cell.Amount -= amount
	if cell.Amount == 0 {
		cell.Type = world.LiquidNone
	}
	src.SetLiquid(*cell)
	if mixing {
		s.reacting[dst.Coord] = struct{}{}
	} else {
		dst.SetLiquid(world.WaterCell{Type: liquid, Amount: dw.Amount + amount})
	}
	s.transfers = append(s.transfers, Transfer{From: src.Coord, To: dst.Coord, Liquid: liquid, Amount: amount, Fall: fall, Mixing: mixing})
	return amount
}

func (s *Simulator) spreadRate(l world.LiquidType) float64 {
	if l == world.LiquidLava {
		lo, hi := s.settings.LavaSpreadMin, s.settings.LavaSpreadMax
		return lo + s.rng.Float64()*(hi-lo)
	}
	return s.settings.WaterSpreadRate
}

// ResolveTransfers drains the transfer log. The destination of every mixing
// transfer turns into the reaction type and loses its liquid, unless it is
// already solid. It returns the number of reactions.
func (s *Simulator) ResolveTransfers() int {
	reactions := 0
	for _, t := range s.transfers {
		if !t.Mixing {
			continue
		}
		dst := s.world.Handle(t.To)
		if !dst.IsValid() || !dst.IsEmpty() {
			continue
		}
		dst.SetType(s.reaction)
		dst.Chunk().SetNeedsLiquidRebuild(true)
		reactions++
	}
	s.transfers = s.transfers[:0]
	clear(s.reacting)
	if reactions > 0 {
		s.log.Debug("liquid reactions", zap.Int("count", reactions))
	}
	return reactions
}

// PendingTransfers returns the number of transfers awaiting resolution.
func (s *Simulator) PendingTransfers() int { return len(s.transfers) }

func (s *Simulator) addSplash(at world.VoxelHandle, l world.LiquidType, amount uint8) {
	sp := Splash{Pos: at.Coord.Vec3(), Liquid: l, Particles: int(amount)}
	switch l {
	case world.LiquidLava:
		sp.Effect, sp.Sound = "flame", "lava_hiss"
		sp.Tint = mgl32.Vec4{1, 0.45, 0.1, 1}
	default:
		sp.Effect, sp.Sound = "splash", "water_splash"
		sp.Tint = mgl32.Vec4{0.3, 0.5, 1, 1}
	}
	s.splashMu.Lock()
	s.splashes = append(s.splashes, sp)
	s.splashMu.Unlock()
}

// DrainSplashes returns and clears the queued splashes.
func (s *Simulator) DrainSplashes() []Splash {
	s.splashMu.Lock()
	out := s.splashes
	s.splashes = nil
	s.splashMu.Unlock()
	return out
}
