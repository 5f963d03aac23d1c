package lifecycle

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Settings tune the background workers.
type Settings struct {
	// RebuildParallelism bounds the goroutines used inside one rebuild
	// batch stage.
	RebuildParallelism int
	// MaxRebuildBatch is how many chunks one rebuild pass takes from the
	// queue. The paused flag is checked between passes.
	MaxRebuildBatch int
	// RevealLimit bounds the flood reveal started from each destroyed voxel.
	RevealLimit int
	// FluidTick is the fixed simulation step of the fluid worker.
	FluidTick time.Duration
	// MaxFluidBacklog caps the fixed-step accumulator so a long frame does
	// not queue a burst of ticks.
	MaxFluidBacklog time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		RebuildParallelism: max(runtime.NumCPU()-1, 1),
		MaxRebuildBatch:    32,
		RevealLimit:        4096,
		FluidTick:          100 * time.Millisecond,
		MaxFluidBacklog:    time.Second,
	}
}

var ErrInvalidSettings = errors.New("invalid lifecycle settings")

func (s Settings) Validate() error {
	switch {
	case s.RebuildParallelism < 1:
		return fmt.Errorf("rebuild parallelism %d: %w", s.RebuildParallelism, ErrInvalidSettings)
	case s.MaxRebuildBatch < 1:
		return fmt.Errorf("max rebuild batch %d: %w", s.MaxRebuildBatch, ErrInvalidSettings)
	case s.RevealLimit < 0:
		return fmt.Errorf("reveal limit %d: %w", s.RevealLimit, ErrInvalidSettings)
	case s.FluidTick <= 0:
		return fmt.Errorf("fluid tick %v: %w", s.FluidTick, ErrInvalidSettings)
	case s.MaxFluidBacklog < s.FluidTick:
		return fmt.Errorf("fluid backlog %v below tick %v: %w", s.MaxFluidBacklog, s.FluidTick, ErrInvalidSettings)
	}
	return nil
}
